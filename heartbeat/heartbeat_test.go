package heartbeat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestPing(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	h, err := New(server.URL, time.Minute, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	h.Ping()
	pings, failures := h.Stats()
	if hits.Load() != 1 || pings != 1 || failures != 0 {
		t.Errorf("Expected one successful ping, got hits=%d pings=%d failures=%d", hits.Load(), pings, failures)
	}
}

func TestPing_Failures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	h, _ := New(server.URL, time.Minute, nil, zap.NewNop())
	h.Ping()

	unreachable, _ := New("http://127.0.0.1:1", time.Minute, nil, zap.NewNop())
	unreachable.Ping()

	if _, failures := h.Stats(); failures != 1 {
		t.Errorf("Expected rejected ping counted as failure, got %d", failures)
	}
	if _, failures := unreachable.Stats(); failures != 1 {
		t.Errorf("Expected unreachable ping counted as failure, got %d", failures)
	}
}

func TestPing_SkippedWhenNotAlive(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	var alive atomic.Bool
	h, err := New(server.URL, time.Minute, alive.Load, zap.NewNop())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	h.Ping()
	if hits.Load() != 0 || h.Skipped() != 1 {
		t.Fatalf("Expected ping withheld, got hits=%d skipped=%d", hits.Load(), h.Skipped())
	}

	alive.Store(true)
	h.Ping()
	if pings, _ := h.Stats(); hits.Load() != 1 || pings != 1 {
		t.Errorf("Expected ping once alive, got hits=%d pings=%d", hits.Load(), pings)
	}
}

func TestNew_InvalidPeriod(t *testing.T) {
	if _, err := New("http://example.com", 0, nil, zap.NewNop()); err == nil {
		t.Error("Expected error for zero period")
	}
}

func TestStartStop(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	h, err := New(server.URL, time.Second, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	h.Start()

	deadline := time.Now().Add(5 * time.Second)
	for hits.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("heartbeat never fired")
		}
		time.Sleep(50 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	h.Stop(ctx)
}

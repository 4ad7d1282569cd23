package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mjasion/balena-home/heatexchanger/pkg/buffer"
	"github.com/mjasion/balena-home/heatexchanger/pkg/types"
	"go.uber.org/zap"
)

var fullSet = types.ReadingSet{"T1": 85.1, "T2": 45.2, "T3": 15.3, "T4": 55.4, types.EfficiencyKey: 57.3}

func fixedTime() time.Time {
	return time.Date(2025, 10, 26, 17, 10, 47, 757_000_000, time.UTC)
}

func TestNewMessage(t *testing.T) {
	msg, err := NewMessage(fullSet, fixedTime())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	data, err := msg.Marshal()
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if decoded["type"] != MessageType {
		t.Errorf("Expected type %q, got %v", MessageType, decoded["type"])
	}
	payload := decoded["data"].(map[string]any)
	if payload["temp1"] != 85.1 || payload["temp4"] != 55.4 {
		t.Errorf("Unexpected temperatures: %v", payload)
	}
	if payload["efficiency"] != 57.3 {
		t.Errorf("Expected efficiency 57.3, got %v", payload["efficiency"])
	}
	if payload["timestamp"] != "2025-10-26T17:10:47.757Z" {
		t.Errorf("Unexpected timestamp %v", payload["timestamp"])
	}
}

func TestNewMessage_WithoutEfficiency(t *testing.T) {
	msg, err := NewMessage(types.ReadingSet{"T1": 1, "T2": 2, "T3": 3, "T4": 4}, fixedTime())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	data, _ := msg.Marshal()
	if strings.Contains(string(data), "efficiency") {
		t.Errorf("Expected efficiency omitted, got %s", data)
	}
}

func TestNewMessage_Insufficient(t *testing.T) {
	tests := []types.ReadingSet{
		{},
		{"T1": 1, "T2": 2, "T3": 3},
		{"T1": 1, "T2": 2, "T3": 3, "T5": 4},
	}
	for _, rs := range tests {
		if _, err := NewMessage(rs, fixedTime()); !errors.Is(err, ErrInsufficientReadings) {
			t.Errorf("NewMessage(%v): expected ErrInsufficientReadings, got %v", rs, err)
		}
	}
}

type recordingSink struct {
	name     string
	err      error
	messages []Message
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(_ context.Context, msg Message) error {
	s.messages = append(s.messages, msg)
	return s.err
}

func TestDispatch_FanOut(t *testing.T) {
	failing := &recordingSink{name: "failing", err: errors.New("boom")}
	ok := &recordingSink{name: "ok"}
	p := New(zap.NewNop(), failing, nil, ok)

	if got := p.Sinks(); len(got) != 2 || got[0] != "failing" || got[1] != "ok" {
		t.Fatalf("Unexpected sinks %v", got)
	}

	p.Dispatch(context.Background(), fullSet)

	if len(failing.messages) != 1 || len(ok.messages) != 1 {
		t.Fatalf("Expected every sink to receive one message, got %d and %d",
			len(failing.messages), len(ok.messages))
	}
	if ok.messages[0].Data.Temp3 != 15.3 {
		t.Errorf("Unexpected message %+v", ok.messages[0])
	}
}

func TestDispatch_SkipsInsufficient(t *testing.T) {
	sink := &recordingSink{name: "sink"}
	p := New(zap.NewNop(), sink)

	p.Dispatch(context.Background(), types.ReadingSet{"T1": 1, "T2": 2})
	p.Dispatch(context.Background(), types.ReadingSet{})

	if len(sink.messages) != 0 {
		t.Errorf("Expected no publish, got %d", len(sink.messages))
	}
}

type fakeNATS struct {
	subject string
	data    []byte
	err     error
	drained bool
}

func (f *fakeNATS) Publish(subject string, data []byte) error {
	f.subject, f.data = subject, data
	return f.err
}

func (f *fakeNATS) Drain() error {
	f.drained = true
	return nil
}

func TestNATSSink(t *testing.T) {
	conn := &fakeNATS{}
	sink := newNATSSink(conn, "hx.readings", zap.NewNop())

	msg, _ := NewMessage(fullSet, fixedTime())
	if err := sink.Publish(context.Background(), msg); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if conn.subject != "hx.readings" {
		t.Errorf("Expected subject hx.readings, got %q", conn.subject)
	}
	if !strings.Contains(string(conn.data), `"type":"temperature_message"`) {
		t.Errorf("Unexpected payload %s", conn.data)
	}

	conn.err = errors.New("connection closed")
	if err := sink.Publish(context.Background(), msg); err == nil {
		t.Error("Expected publish error")
	}

	sink.Close()
	if !conn.drained {
		t.Error("Expected connection drained on close")
	}
}

func TestNewNATSSink_Unreachable(t *testing.T) {
	if _, err := NewNATSSink("nats://127.0.0.1:1", "", zap.NewNop()); err == nil {
		t.Error("Expected connection error")
	}
}

func TestMetricsSink(t *testing.T) {
	buf := buffer.New[*types.Reading](100, zap.NewNop())
	sink := NewMetricsSink(buf)

	msg, _ := NewMessage(fullSet, fixedTime())
	if err := sink.Publish(context.Background(), msg); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	readings := buf.GetAllAndClear()
	if len(readings) != 5 {
		t.Fatalf("Expected 5 buffered readings, got %d", len(readings))
	}
	var temps, effs int
	for _, r := range readings {
		switch r.Type {
		case types.ReadingTypeTemperature:
			temps++
		case types.ReadingTypeEfficiency:
			effs++
			if r.Efficiency.Percent != 57.3 {
				t.Errorf("Expected efficiency 57.3, got %v", r.Efficiency.Percent)
			}
		}
		if !r.GetTimestamp().Equal(fixedTime()) {
			t.Errorf("Unexpected timestamp %v", r.GetTimestamp())
		}
	}
	if temps != 4 || effs != 1 {
		t.Errorf("Expected 4 temperatures and 1 efficiency, got %d and %d", temps, effs)
	}
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub(4, zap.NewNop())
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	msg, _ := NewMessage(fullSet, fixedTime())
	if err := hub.Publish(context.Background(), msg); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Message
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	if got.Type != MessageType || got.Data.Temp2 != 45.2 {
		t.Errorf("Unexpected message %+v", got)
	}
}

func TestHub_UnregistersOnClose(t *testing.T) {
	hub := NewHub(4, zap.NewNop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for hub.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never unregistered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

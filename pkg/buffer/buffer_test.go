package buffer

import (
	"sync"
	"testing"
	"time"

	"github.com/mjasion/balena-home/heatexchanger/pkg/types"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func TestNew(t *testing.T) {
	buf := New[int](10, testLogger())
	if buf == nil {
		t.Fatal("Expected buffer, got nil")
	}

	if buf.Capacity() != 10 {
		t.Errorf("Expected capacity 10, got %d", buf.Capacity())
	}

	if buf.Size() != 0 {
		t.Errorf("Expected size 0, got %d", buf.Size())
	}
}

func TestNew_ClampsCapacity(t *testing.T) {
	buf := New[int](0, testLogger())
	if buf.Capacity() != 1 {
		t.Errorf("Expected capacity 1, got %d", buf.Capacity())
	}
	buf.Add(7)
	if items := buf.GetAllAndClear(); len(items) != 1 || items[0] != 7 {
		t.Errorf("Expected [7], got %v", items)
	}
}

func TestAdd_Overflow(t *testing.T) {
	buf := New[int](3, testLogger())

	for i := 1; i <= 5; i++ {
		buf.Add(i)
	}

	if buf.Size() != 3 {
		t.Errorf("Expected size 3, got %d", buf.Size())
	}
	if buf.Dropped() != 2 {
		t.Errorf("Expected 2 dropped, got %d", buf.Dropped())
	}

	items := buf.GetAllAndClear()
	expected := []int{3, 4, 5}
	if len(items) != len(expected) {
		t.Fatalf("Expected %d items, got %d", len(expected), len(items))
	}
	for i, item := range items {
		if item != expected[i] {
			t.Errorf("Expected item[%d]=%d, got %d", i, expected[i], item)
		}
	}
}

func TestAddAll_PreservesOrder(t *testing.T) {
	buf := New[int](4, testLogger())
	buf.AddAll(1, 2)
	buf.AddAll(3, 4, 5, 6)

	items := buf.GetAllAndClear()
	expected := []int{3, 4, 5, 6}
	if len(items) != len(expected) {
		t.Fatalf("Expected %d items, got %d", len(expected), len(items))
	}
	for i, item := range items {
		if item != expected[i] {
			t.Errorf("Expected item[%d]=%d, got %d", i, expected[i], item)
		}
	}
	if buf.Dropped() != 2 {
		t.Errorf("Expected 2 dropped, got %d", buf.Dropped())
	}
}

func TestGetAllAndClear_Empty(t *testing.T) {
	buf := New[int](5, testLogger())
	if items := buf.GetAllAndClear(); items != nil {
		t.Errorf("Expected nil for empty buffer, got %v", items)
	}
}

func TestGetAllAndClear_PartiallyFilledAfterWrap(t *testing.T) {
	buf := New[int](3, testLogger())
	buf.AddAll(1, 2, 3, 4)
	_ = buf.GetAllAndClear()

	buf.Add(10)
	buf.Add(11)
	items := buf.GetAllAndClear()
	if len(items) != 2 || items[0] != 10 || items[1] != 11 {
		t.Errorf("Expected [10 11], got %v", items)
	}
}

func TestReadingBuffer(t *testing.T) {
	buf := New[*types.Reading](8, testLogger())
	ts := time.Date(2025, 10, 26, 17, 10, 47, 0, time.UTC)
	buf.AddAll(types.FromReadingSet(types.ReadingSet{
		"T1":               85.0,
		"T3":               15.0,
		types.EfficiencyKey: 57.1,
	}, ts)...)

	readings := buf.GetAllAndClear()
	if len(readings) != 3 {
		t.Fatalf("Expected 3 readings, got %d", len(readings))
	}

	// Names are sorted: Efficiency, T1, T3
	if readings[0].Type != types.ReadingTypeEfficiency {
		t.Errorf("Expected efficiency reading first, got %s", readings[0].Type)
	}
	if readings[1].Temperature.SensorName != "T1" {
		t.Errorf("Expected T1 second, got %s", readings[1].Temperature.SensorName)
	}
	for _, r := range readings {
		if !r.GetTimestamp().Equal(ts) {
			t.Errorf("Expected timestamp %v, got %v", ts, r.GetTimestamp())
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	buf := New[int](100, testLogger())
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(val int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				buf.Add(val*10 + j)
			}
		}(i)
	}

	wg.Wait()

	if size := buf.Size(); size != 100 {
		t.Errorf("Expected size 100, got %d", size)
	}

	items := buf.GetAllAndClear()
	if len(items) != 100 {
		t.Errorf("Expected 100 items, got %d", len(items))
	}

	if buf.Size() != 0 {
		t.Errorf("Expected size 0 after clear, got %d", buf.Size())
	}
}

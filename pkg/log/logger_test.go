package log

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopLogger); !ok {
		t.Error("OrNoop(nil) should return NoopLogger")
	}
	var got []Event
	l := LoggerFunc(func(e Event) { got = append(got, e) })
	OrNoop(l).Log(Event{Layer: LayerWire})
	if len(got) != 1 {
		t.Errorf("OrNoop(l) did not pass through, got %d events", len(got))
	}
}

func TestStamp(t *testing.T) {
	if Stamp(Event{}).Timestamp.IsZero() {
		t.Error("Stamp() left zero timestamp")
	}
	ts := time.Unix(100, 0)
	if got := Stamp(Event{Timestamp: ts}).Timestamp; !got.Equal(ts) {
		t.Errorf("Stamp() overwrote timestamp: %v", got)
	}
}

func TestMultiLogger(t *testing.T) {
	var a, b []Event
	m := NewMultiLogger(
		LoggerFunc(func(e Event) { a = append(a, e) }),
		nil,
		LoggerFunc(func(e Event) { b = append(b, e) }),
	)
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (nil skipped)", m.Len())
	}

	m.Log(Event{Category: CategoryError})
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("fan out: a=%d b=%d", len(a), len(b))
	}
	if !a[0].Timestamp.Equal(b[0].Timestamp) || a[0].Timestamp.IsZero() {
		t.Error("sinks saw different or zero timestamps")
	}
}

func TestFileLoggerConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.flog")
	l, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				l.Log(Event{Layer: LayerTransport, Frame: &FrameEvent{Size: i*10 + j}})
			}
		}(i)
	}
	wg.Wait()

	if l.Written() != 100 {
		t.Errorf("Written() = %d, want 100", l.Written())
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	l.Log(Event{}) // ignored after close

	r, err := NewReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	events, err := r.All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(events) != 100 {
		t.Errorf("read %d events, want 100", len(events))
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.flog")
	for i := 0; i < 2; i++ {
		l, err := NewFileLogger(path)
		if err != nil {
			t.Fatal(err)
		}
		l.Log(Event{Category: CategoryState})
		l.Close()
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Fatal("empty log file")
	}

	r, _ := NewReader(path)
	defer r.Close()
	events, _ := r.All()
	if len(events) != 2 {
		t.Errorf("got %d events after reopen, want 2", len(events))
	}
}

func TestConnContext(t *testing.T) {
	ctx := WithConn(t.Context(), ConnInfo{ID: "abc", RemoteAddr: "10.0.0.2:4000"})
	got := ConnFrom(ctx)
	if got.ID != "abc" || got.RemoteAddr != "10.0.0.2:4000" {
		t.Errorf("ConnFrom() = %+v", got)
	}
	if (ConnFrom(t.Context()) != ConnInfo{}) {
		t.Error("ConnFrom() on bare context should be empty")
	}
}

package log

import (
	"io"
	"path/filepath"
	"testing"
	"time"
)

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.flog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test log: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func TestReaderIteratesEvents(t *testing.T) {
	base := time.Now()
	events := []Event{
		{Timestamp: base, ConnectionID: "conn-1", Direction: DirectionIn, Layer: LayerTransport, Category: CategoryMessage},
		{Timestamp: base.Add(time.Second), ConnectionID: "conn-1", Direction: DirectionOut, Layer: LayerTransport, Category: CategoryMessage},
		{Timestamp: base.Add(2 * time.Second), Layer: LayerService, Category: CategoryFeeding},
	}
	path := createTestLogFile(t, events)

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	var read []Event
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		read = append(read, event)
	}

	if len(read) != 3 {
		t.Fatalf("got %d events, want 3", len(read))
	}
	if read[1].Direction != DirectionOut || read[2].Category != CategoryFeeding {
		t.Errorf("events out of order: %+v", read)
	}
}

func TestReaderFilter(t *testing.T) {
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	manual := SourceManual
	feeding := CategoryFeeding
	out := DirectionOut
	wire := LayerWire
	start := base.Add(time.Minute)
	end := base.Add(3 * time.Minute)

	events := []Event{
		{Timestamp: base, ConnectionID: "a", Layer: LayerWire, Category: CategoryMessage, DeviceName: "tank"},
		{Timestamp: base.Add(time.Minute), ConnectionID: "a", Direction: DirectionOut, Layer: LayerTransport, DeviceName: "tank"},
		{Timestamp: base.Add(2 * time.Minute), Layer: LayerService, Category: CategoryFeeding,
			Feeding: &FeedingEvent{Source: SourceManual, Slot: -1}},
		{Timestamp: base.Add(3 * time.Minute), Layer: LayerService, Category: CategoryFeeding,
			Feeding: &FeedingEvent{Source: SourceSchedule, Slot: 4}},
	}
	path := createTestLogFile(t, events)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 4},
		{"connection", Filter{ConnectionID: "a"}, 2},
		{"direction", Filter{Direction: &out}, 1},
		{"layer", Filter{Layer: &wire}, 1},
		{"category", Filter{Category: &feeding}, 2},
		{"source", Filter{Source: &manual}, 1},
		{"device", Filter{DeviceName: "tank"}, 2},
		{"time window", Filter{TimeStart: &start, TimeEnd: &end}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewFilteredReader(path, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			defer r.Close()

			got, err := r.All()
			if err != nil {
				t.Fatalf("All() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "missing.flog")); err == nil {
		t.Error("NewReader() expected error for missing file")
	}
}

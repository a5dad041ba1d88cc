package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func logOne(t *testing.T, event Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	NewSlogAdapter(slog.New(handler)).Log(event)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestSlogAdapterFrameEvent(t *testing.T) {
	entry := logOne(t, Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Layer:        LayerTransport,
		Category:     CategoryMessage,
		Frame:        &FrameEvent{Size: 2, Data: []byte{0x64, 0x02}},
	})

	if entry["level"] != "DEBUG" {
		t.Errorf("level = %v, want DEBUG", entry["level"])
	}
	if entry["conn_id"] != "conn-123" {
		t.Errorf("conn_id = %v", entry["conn_id"])
	}
	if entry["data"] != "64 02" {
		t.Errorf("data = %v, want \"64 02\"", entry["data"])
	}
}

func TestSlogAdapterRequestEvent(t *testing.T) {
	entry := logOne(t, Event{
		Layer:    LayerWire,
		Category: CategoryMessage,
		Request:  &RequestEvent{Kind: RequestManualRun, Units: u8(5)},
	})
	if entry["request"] != "MANUAL_RUN" {
		t.Errorf("request = %v", entry["request"])
	}
	if entry["units"] != float64(5) {
		t.Errorf("units = %v", entry["units"])
	}
	if _, ok := entry["slot"]; ok {
		t.Error("unset slot should be omitted")
	}
}

func TestSlogAdapterFeedingEvent(t *testing.T) {
	entry := logOne(t, Event{
		Layer:    LayerService,
		Category: CategoryFeeding,
		Feeding:  &FeedingEvent{Source: SourceSchedule, Slot: 3, Duration: 5 * time.Second, Started: true},
	})
	if entry["source"] != "SCHEDULE" || entry["slot"] != float64(3) || entry["started"] != true {
		t.Errorf("entry = %v", entry)
	}
}

func TestSlogAdapterErrorEventIsWarn(t *testing.T) {
	entry := logOne(t, Event{
		Layer:    LayerService,
		Category: CategoryError,
		Error:    &ErrorEventData{Layer: LayerService, Message: "rtc hardware fault", Context: "clock poll"},
	})
	if entry["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", entry["level"])
	}
	if entry["error_context"] != "clock poll" {
		t.Errorf("error_context = %v", entry["error_context"])
	}
}

func TestHexBytes(t *testing.T) {
	if got := hexBytes([]byte{0x75}); got != "75" {
		t.Errorf("hexBytes = %q", got)
	}
	if got := hexBytes(nil); got != "" {
		t.Errorf("hexBytes(nil) = %q", got)
	}
}

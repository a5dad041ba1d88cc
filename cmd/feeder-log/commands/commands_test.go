package commands

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fishfeeder/feeder-go/pkg/log"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.flog")

	logger, err := log.NewFileLogger(path)
	require.NoError(t, err)
	for _, e := range events {
		logger.Log(e)
	}
	require.NoError(t, logger.Close())
	return path
}

func u8(v uint8) *uint8 { return &v }

func sampleEvents() []log.Event {
	ts := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	took := 150 * time.Microsecond
	return []log.Event{
		{
			Timestamp:    ts,
			ConnectionID: "0f8e2a7c-5d1b-4c9a-9f1e-123456789abc",
			Direction:    log.DirectionIn,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			RemoteAddr:   "192.168.1.20:50412",
			Request: &log.RequestEvent{
				Kind:           log.RequestCreate,
				Slot:           u8(2),
				Hour:           u8(8),
				Minute:         u8(30),
				Units:          u8(5),
				ResponseSize:   54,
				ProcessingTime: &took,
			},
		},
		{
			Timestamp: ts.Add(time.Minute),
			Layer:     log.LayerService,
			Category:  log.CategoryFeeding,
			Feeding:   &log.FeedingEvent{Source: log.SourceSchedule, Slot: 2, Duration: 500 * time.Millisecond, Started: true},
		},
		{
			Timestamp: ts.Add(2 * time.Minute),
			Layer:     log.LayerService,
			Category:  log.CategoryFeeding,
			Feeding:   &log.FeedingEvent{Source: log.SourceButton, Slot: -1, Duration: 300 * time.Millisecond, Started: false},
		},
		{
			Timestamp:   ts.Add(3 * time.Minute),
			Layer:       log.LayerService,
			Category:    log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityClock, NewState: "SYNCED", Reason: "ntp"},
		},
		{
			Timestamp: ts.Add(4 * time.Minute),
			Layer:     log.LayerService,
			Category:  log.CategoryError,
			Error:     &log.ErrorEventData{Layer: log.LayerService, Message: "rtc hardware fault", Context: "read clock"},
		},
	}
}

func TestViewFormatsEvents(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	require.NoError(t, RunView(path, FilterOptions{}, &buf))
	out := buf.String()

	assert.Contains(t, out, "[conn:0f8e2a7c] IN  WIRE CREATE")
	assert.Contains(t, out, "Remote: 192.168.1.20:50412")
	assert.Contains(t, out, "Time: 08:30")
	assert.Contains(t, out, "Units: 5 (500ms)")
	assert.Contains(t, out, "Took: 150.000us")
	assert.Contains(t, out, "Source: SCHEDULE")
	assert.Contains(t, out, "Ignored: servo busy")
	assert.Contains(t, out, "-> SYNCED")
	assert.Contains(t, out, "Context: read clock")
}

func TestViewFiltersBySource(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	require.NoError(t, RunView(path, FilterOptions{Source: "button"}, &buf))
	out := buf.String()

	assert.Contains(t, out, "Source: BUTTON")
	assert.NotContains(t, out, "SCHEDULE")
	assert.NotContains(t, out, "CREATE")
}

func TestViewRejectsBadFilter(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	for _, opts := range []FilterOptions{
		{Layer: "physical"},
		{Direction: "sideways"},
		{Category: "snapshot"},
		{Source: "cat"},
		{TimeStart: "yesterday"},
	} {
		assert.Error(t, RunView(path, opts, &bytes.Buffer{}))
	}
}

func TestStats(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	require.NoError(t, RunStats(path, &buf))
	out := buf.String()

	assert.Contains(t, out, "Total Events: 5")
	assert.Contains(t, out, "WIRE:")
	assert.Contains(t, out, "FEEDING:")
	assert.Contains(t, out, "CREATE:")
	assert.Contains(t, out, "SCHEDULE:    1 runs, 500ms total")
	assert.Contains(t, out, "BUTTON:      0 runs, 0s total, 1 ignored")
	assert.Contains(t, out, "Connections: 1")
	assert.Contains(t, out, "Remote: 192.168.1.20:50412")
	assert.Contains(t, out, "Errors: 1")
}

func TestExportJSONL(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	require.NoError(t, RunExport(path, "jsonl", "", FilterOptions{Category: "feeding"}, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var event log.Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &event))
	require.NotNil(t, event.Feeding)
	assert.Equal(t, log.SourceSchedule, event.Feeding.Source)
	assert.Equal(t, 500*time.Millisecond, event.Feeding.Duration)
}

func TestExportCSV(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	require.NoError(t, RunExport(path, "csv", "", FilterOptions{}, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "timestamp,connection_id,direction,layer,category,device,type,source,slot,duration_ms", lines[0])
	assert.Contains(t, lines[1], "CREATE,,2,")
	assert.Contains(t, lines[2], "Feeding,SCHEDULE,2,500")
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	assert.Error(t, RunExport(path, "xml", "", FilterOptions{}, &bytes.Buffer{}))
}

func TestFilterWritesMatchingEvents(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	output := filepath.Join(t.TempDir(), "errors.flog")

	n, err := RunFilter(path, output, FilterOptions{Category: "error"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	reader, err := log.NewReader(output)
	require.NoError(t, err)
	defer reader.Close()

	events, err := reader.All()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "rtc hardware fault", events[0].Error.Message)
}

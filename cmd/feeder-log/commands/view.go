package commands

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fishfeeder/feeder-go/pkg/log"
	"github.com/fishfeeder/feeder-go/pkg/schedule"
)

// RunView prints the matching events of a log file in human-readable form.
func RunView(path string, opts FilterOptions, w io.Writer) error {
	filter, err := opts.Build()
	if err != nil {
		return err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(w, event)
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s\n",
		ts, shortenConnID(event.ConnectionID), event.Direction, event.Layer, eventType(event))

	if event.RemoteAddr != "" {
		fmt.Fprintf(w, "  Remote: %s\n", event.RemoteAddr)
	}

	switch {
	case event.Frame != nil:
		fmt.Fprintf(w, "  Size: %d bytes\n", event.Frame.Size)
		if len(event.Frame.Data) > 0 {
			fmt.Fprintf(w, "  Data: %s\n", hex.EncodeToString(event.Frame.Data))
		}
	case event.Request != nil:
		formatRequestDetails(w, event.Request)
	case event.StateChange != nil:
		sc := event.StateChange
		fmt.Fprintf(w, "  Entity: %s\n", sc.Entity)
		if sc.OldState != "" {
			fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
		} else {
			fmt.Fprintf(w, "  -> %s\n", sc.NewState)
		}
		if sc.Reason != "" {
			fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
		}
	case event.Feeding != nil:
		f := event.Feeding
		fmt.Fprintf(w, "  Source: %s\n", f.Source)
		if f.Slot >= 0 {
			fmt.Fprintf(w, "  Slot: %d\n", f.Slot)
		}
		fmt.Fprintf(w, "  Duration: %s\n", f.Duration)
		if !f.Started {
			fmt.Fprintln(w, "  Ignored: servo busy")
		}
	case event.Error != nil:
		fmt.Fprintf(w, "  Layer: %s\n", event.Error.Layer)
		fmt.Fprintf(w, "  Message: %s\n", event.Error.Message)
		if event.Error.Context != "" {
			fmt.Fprintf(w, "  Context: %s\n", event.Error.Context)
		}
	}

	fmt.Fprintln(w)
}

func formatRequestDetails(w io.Writer, req *log.RequestEvent) {
	if req.Slot != nil {
		fmt.Fprintf(w, "  Slot: %d\n", *req.Slot)
	}
	if req.Hour != nil && req.Minute != nil {
		fmt.Fprintf(w, "  Time: %02d:%02d\n", *req.Hour, *req.Minute)
	}
	if req.Units != nil {
		fmt.Fprintf(w, "  Units: %d (%s)\n", *req.Units, time.Duration(*req.Units)*schedule.DurationUnit)
	}
	if req.ResponseSize > 0 {
		fmt.Fprintf(w, "  Response: %d bytes\n", req.ResponseSize)
	}
	if req.ProcessingTime != nil {
		fmt.Fprintf(w, "  Took: %s\n", formatDuration(*req.ProcessingTime))
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

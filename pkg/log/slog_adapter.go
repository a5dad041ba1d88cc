package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes events to an slog.Logger at Debug level, or Warn for
// error events.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.ConnectionID != "" {
		attrs = append(attrs,
			slog.String("conn_id", event.ConnectionID),
			slog.String("direction", event.Direction.String()),
		)
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}

	level := slog.LevelDebug
	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("size", event.Frame.Size),
			slog.String("data", hexBytes(event.Frame.Data)),
		)
	case event.Request != nil:
		r := event.Request
		attrs = append(attrs, slog.String("request", r.Kind.String()))
		for _, f := range []struct {
			key string
			v   *uint8
		}{{"slot", r.Slot}, {"hour", r.Hour}, {"minute", r.Minute}, {"units", r.Units}} {
			if f.v != nil {
				attrs = append(attrs, slog.Uint64(f.key, uint64(*f.v)))
			}
		}
		if r.ResponseSize > 0 {
			attrs = append(attrs, slog.Int("response_size", r.ResponseSize))
		}
		if r.ProcessingTime != nil {
			attrs = append(attrs, slog.Duration("processing_time", *r.ProcessingTime))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Feeding != nil:
		attrs = append(attrs,
			slog.String("source", event.Feeding.Source.String()),
			slog.Int("slot", event.Feeding.Slot),
			slog.Duration("duration", event.Feeding.Duration),
			slog.Bool("started", event.Feeding.Started),
		)
	case event.Error != nil:
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
	}

	a.logger.LogAttrs(context.Background(), level, "event", attrs...)
}

func hexBytes(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 0, len(b)*3)
	for i, c := range b {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, digits[c>>4], digits[c&0x0F])
	}
	return string(out)
}

var _ Logger = (*SlogAdapter)(nil)

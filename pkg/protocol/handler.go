package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fishfeeder/feeder-go/pkg/log"
	"github.com/fishfeeder/feeder-go/pkg/schedule"
	"github.com/fishfeeder/feeder-go/pkg/servo"
)

// ScheduleStore is the part of the schedule store the handler uses.
type ScheduleStore interface {
	All() (schedule.Schedule, error)
	Set(i int, hour, minute, duration byte) error
	Erase(i int) error
}

var _ ScheduleStore = (*schedule.Store)(nil)

// Outcome describes an applied request.
type Outcome struct {
	Request Request

	// Started is set for a manual run that started the servo.
	Started bool

	// Response is the dump to send back, nil for a manual run.
	Response []byte

	// Took is the time from a complete request to the response written.
	Took time.Duration
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	Logger      *slog.Logger
	EventLogger log.Logger
}

// Handler applies control requests to the schedule and servo.
type Handler struct {
	store  ScheduleStore
	servo  servo.Starter
	logger *slog.Logger
	events log.Logger

	mu        sync.RWMutex
	onOutcome func(Outcome)
}

// NewHandler creates a handler.
func NewHandler(store ScheduleStore, starter servo.Starter, cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		store:  store,
		servo:  starter,
		logger: cfg.Logger,
		events: log.OrNoop(cfg.EventLogger),
	}
}

// OnOutcome sets a callback invoked after each applied request.
func (h *Handler) OnOutcome(fn func(Outcome)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onOutcome = fn
}

// HandleClient reads one request from conn, applies it and writes the
// response. It does not close conn. io.EOF means the client sent nothing
// complete; ErrMalformedRequest and schedule.ErrOutOfRange mean the
// request was rejected without a response.
func (h *Handler) HandleClient(ctx context.Context, conn io.ReadWriter) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req, err := ReadRequest(conn)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			h.logError(ctx, err, "read request")
		}
		return err
	}
	received := time.Now()

	out, err := h.Apply(req)
	if err != nil {
		h.logError(ctx, err, "apply "+requestKind(req).String())
		return err
	}

	if out.Response != nil {
		if _, err := conn.Write(out.Response); err != nil {
			h.logError(ctx, err, "write response")
			return fmt.Errorf("write response: %w", err)
		}
	}
	out.Took = time.Since(received)
	h.logRequest(ctx, req, len(out.Response), out.Took)

	h.mu.RLock()
	fn := h.onOutcome
	h.mu.RUnlock()
	if fn != nil {
		fn(out)
	}
	return nil
}

// Apply performs req. Mutations complete before the dump is read.
func (h *Handler) Apply(req Request) (Outcome, error) {
	out := Outcome{Request: req}

	switch r := req.(type) {
	case Query:
	case CreateSlot:
		if err := h.store.Set(int(r.Slot), r.Hour, r.Minute, r.Duration); err != nil {
			return out, err
		}
		h.logger.Info("slot set", "slot", r.Slot, "hour", r.Hour, "minute", r.Minute, "duration", r.Duration)
	case DeleteSlot:
		if err := h.store.Erase(int(r.Slot)); err != nil {
			return out, err
		}
		h.logger.Info("slot erased", "slot", r.Slot)
	case ManualRun:
		out.Started = h.servo.Start(r.Duration())
		h.logger.Info("manual run", "duration", r.Duration(), "started", out.Started)
		return out, nil
	default:
		return out, ErrMalformedRequest
	}

	sched, err := h.store.All()
	if err != nil {
		return out, err
	}
	out.Response = EncodeSchedule(sched)
	return out, nil
}

func requestKind(req Request) log.RequestKind {
	switch req.(type) {
	case CreateSlot:
		return log.RequestCreate
	case DeleteSlot:
		return log.RequestDelete
	case ManualRun:
		return log.RequestManualRun
	default:
		return log.RequestQuery
	}
}

func (h *Handler) logRequest(ctx context.Context, req Request, respSize int, took time.Duration) {
	info := log.ConnFrom(ctx)
	ev := &log.RequestEvent{
		Kind:           requestKind(req),
		ResponseSize:   respSize,
		ProcessingTime: &took,
	}
	switch r := req.(type) {
	case CreateSlot:
		ev.Slot, ev.Hour, ev.Minute, ev.Units = &r.Slot, &r.Hour, &r.Minute, &r.Duration
	case DeleteSlot:
		ev.Slot = &r.Slot
	case ManualRun:
		ev.Units = &r.Units
	}

	h.events.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: info.ID,
		RemoteAddr:   info.RemoteAddr,
		Direction:    log.DirectionIn,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		Request:      ev,
	})
}

func (h *Handler) logError(ctx context.Context, err error, op string) {
	info := log.ConnFrom(ctx)
	h.logger.Debug("request rejected", "conn_id", info.ID, "op", op, "error", err)
	h.events.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: info.ID,
		RemoteAddr:   info.RemoteAddr,
		Layer:        log.LayerWire,
		Category:     log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerWire,
			Message: err.Error(),
			Context: op,
		},
	})
}

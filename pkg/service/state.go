package service

import (
	"maps"
	"strings"
	"time"

	"github.com/fishfeeder/feeder-go/pkg/log"
	"github.com/fishfeeder/feeder-go/pkg/metrics"
	"github.com/fishfeeder/feeder-go/pkg/notify"
	"github.com/fishfeeder/feeder-go/pkg/persistence"
)

// recordRun logs, counts and announces a servo run request.
func (s *DeviceService) recordRun(source log.FeedingSource, slot int, d time.Duration, started bool) {
	now := time.Now()

	s.events.Log(log.Event{
		Timestamp:  now,
		Layer:      log.LayerService,
		Category:   log.CategoryFeeding,
		DeviceName: s.config.Name,
		Feeding: &log.FeedingEvent{
			Source:   source,
			Slot:     slot,
			Duration: d,
			Started:  started,
		},
	})
	if m := s.currentMetrics(); m != nil {
		m.ObserveFeeding(source.String(), started)
	}
	if n := s.currentNotifier(); n != nil {
		n.Feeding(notify.FeedingNotice{
			Source:     source.String(),
			Slot:       slot,
			DurationMS: d.Milliseconds(),
			Started:    started,
			At:         now,
		})
	}

	if started {
		key := strings.ToLower(source.String())
		s.recordMu.Lock()
		s.record.LastFeeding = &persistence.FeedingRecord{
			Source:   key,
			Slot:     slot,
			Duration: d,
			At:       now,
		}
		s.record.Feedings[key]++
		s.recordMu.Unlock()
		s.saveStateLogged()
	}

	typ := EventManualRun
	if source == log.SourceSchedule {
		typ = EventFeeding
	}
	s.emitEvent(Event{Type: typ, Source: source, Slot: slot, Duration: d, Started: started})
}

// Record returns a copy of the device record.
func (s *DeviceService) Record() persistence.DeviceState {
	s.recordMu.Lock()
	defer s.recordMu.Unlock()

	rec := s.record
	rec.Feedings = maps.Clone(s.record.Feedings)
	if s.record.LastFeeding != nil {
		last := *s.record.LastFeeding
		rec.LastFeeding = &last
	}
	return rec
}

// SaveState persists the device record.
// This is called after each run, after a sync and on Stop.
func (s *DeviceService) SaveState() error {
	s.mu.RLock()
	store := s.stateStore
	s.mu.RUnlock()
	if store == nil {
		return nil // No store configured, no-op
	}

	rec := s.Record()
	return store.Save(&rec)
}

func (s *DeviceService) saveStateLogged() {
	if err := s.SaveState(); err != nil {
		s.logger.Warn("device state not saved", "error", err)
	}
}

// LoadState restores the device record from persistence.
func (s *DeviceService) LoadState() error {
	s.mu.RLock()
	store := s.stateStore
	s.mu.RUnlock()
	if store == nil {
		return nil
	}

	state, err := store.Load()
	if err != nil {
		return err
	}
	if state == nil {
		return nil // No saved state
	}
	if state.Feedings == nil {
		state.Feedings = make(map[string]uint64)
	}

	s.recordMu.Lock()
	s.record = *state
	s.recordMu.Unlock()

	s.logger.Debug("device state restored", "saved_at", state.SavedAt, "feedings", state.Feedings)
	return nil
}

// Health reports the device status for the health endpoint.
func (s *DeviceService) Health() metrics.Health {
	h := metrics.Health{
		Servo:   s.actuator.Status().String(),
		ClockOK: s.clockOK.Load(),
	}
	h.ScheduleOK = s.store.Verify() == nil
	if n := s.currentNotifier(); n != nil {
		h.MQTTConnected = n.Connected()
	}
	h.LastSync = s.Record().LastSync

	switch {
	case h.ClockOK && h.ScheduleOK:
		h.Status = "ok"
	case h.ClockOK || h.ScheduleOK:
		h.Status = "degraded"
	default:
		h.Status = "down"
	}
	return h
}

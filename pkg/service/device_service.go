package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fishfeeder/feeder-go/pkg/discovery"
	"github.com/fishfeeder/feeder-go/pkg/feeding"
	"github.com/fishfeeder/feeder-go/pkg/log"
	"github.com/fishfeeder/feeder-go/pkg/metrics"
	"github.com/fishfeeder/feeder-go/pkg/notify"
	"github.com/fishfeeder/feeder-go/pkg/persistence"
	"github.com/fishfeeder/feeder-go/pkg/protocol"
	"github.com/fishfeeder/feeder-go/pkg/rtc"
	"github.com/fishfeeder/feeder-go/pkg/schedule"
	"github.com/fishfeeder/feeder-go/pkg/servo"
	"github.com/fishfeeder/feeder-go/pkg/timesync"
	"github.com/fishfeeder/feeder-go/pkg/transport"
	"github.com/fishfeeder/feeder-go/pkg/version"
)

// DeviceService orchestrates a feeder.
type DeviceService struct {
	mu sync.RWMutex

	config DeviceConfig
	hw     Hardware
	state  ServiceState

	store       *schedule.Store
	actuator    *servo.Actuator
	coordinator *feeding.Coordinator
	handler     *protocol.Handler
	server      *transport.Server

	// Optional collaborators, set before Start.
	announcer  discovery.Announcer
	syncer     *timesync.Syncer
	notifier   *notify.Notifier
	metrics    *metrics.Metrics
	stateStore *persistence.DeviceStateStore

	eventHandlers []EventHandler

	logger *slog.Logger
	events log.Logger

	recordMu sync.Mutex
	record   persistence.DeviceState

	clockOK atomic.Bool

	// Actuator callbacks are queued here and handled off the actuation loop.
	servoNotes chan servoNote

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDeviceService creates a device service for hw.
func NewDeviceService(hw Hardware, config DeviceConfig) (*DeviceService, error) {
	if hw.RTC == nil || hw.Servo == nil {
		return nil, fmt.Errorf("%w: rtc and servo are required", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.ListenAddress == "" {
		config.ListenAddress = fmt.Sprintf(":%d", transport.DefaultPort)
	}
	if config.ConnTimeout <= 0 {
		config.ConnTimeout = transport.DefaultConnTimeout
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 250 * time.Millisecond
	}
	if config.Servo.Logger == nil {
		config.Servo.Logger = config.Logger
	}
	if config.Servo.ButtonRun <= 0 {
		config.Servo.ButtonRun = servo.DefaultButtonRun
	}

	s := &DeviceService{
		config: config,
		hw:     hw,
		logger: config.Logger,
		events: log.OrNoop(config.EventLogger),
		record: persistence.DeviceState{Feedings: make(map[string]uint64)},

		servoNotes: make(chan servoNote, servoNoteQueue),
	}
	s.clockOK.Store(true)

	s.store = schedule.NewStore(hw.RTC)
	s.actuator = servo.New(hw.Servo, hw.Button, config.Servo)
	s.coordinator = feeding.NewCoordinator(s.store, s.actuator, hw.RTC, config.Logger)
	s.handler = protocol.NewHandler(s.store, s.actuator, protocol.HandlerConfig{
		Logger:      config.Logger,
		EventLogger: config.EventLogger,
	})

	server, err := transport.NewServer(transport.HandlerFunc(s.serveClient), transport.ServerConfig{
		Address:     config.ListenAddress,
		ConnTimeout: config.ConnTimeout,
		Logger:      config.Logger,
		EventLogger: config.EventLogger,
		OnError:     s.handleClientError,
	})
	if err != nil {
		return nil, err
	}
	s.server = server

	s.coordinator.OnFeeding(func(f feeding.Feeding) {
		s.recordRun(log.SourceSchedule, f.Slot, f.Duration, f.Started)
	})
	s.handler.OnOutcome(s.handleOutcome)
	s.actuator.OnStateChange(func(from, to servo.State) {
		s.queueServoNote(servoNote{from: from, to: to})
	})
	s.actuator.OnButton(func(started bool) {
		s.queueServoNote(servoNote{button: true, started: started})
	})

	return s, nil
}

// SetAnnouncer sets the presence announcer. Call before Start.
func (s *DeviceService) SetAnnouncer(a discovery.Announcer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.announcer = a
}

// SetSyncer enables NTP time sync. Call before Start.
func (s *DeviceService) SetSyncer(syncer *timesync.Syncer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncer = syncer
}

// SetNotifier enables feeding notifications. Call before Start.
func (s *DeviceService) SetNotifier(n *notify.Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// SetMetrics enables metrics collection. Call before Start.
func (s *DeviceService) SetMetrics(m *metrics.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// SetStateStore sets the store for persisted counters. Call before Start.
func (s *DeviceService) SetStateStore(store *persistence.DeviceStateStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateStore = store
}

// State returns the current service state.
func (s *DeviceService) State() ServiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// OnEvent registers an event handler.
func (s *DeviceService) OnEvent(handler EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventHandlers = append(s.eventHandlers, handler)
}

// Store returns the schedule store.
func (s *DeviceService) Store() *schedule.Store {
	return s.store
}

// Actuator returns the servo actuator.
func (s *DeviceService) Actuator() *servo.Actuator {
	return s.actuator
}

// Clock returns the RTC.
func (s *DeviceService) Clock() rtc.Port {
	return s.hw.RTC
}

// Port returns the control server port, or 0 before Start.
func (s *DeviceService) Port() int {
	return s.server.Port()
}

// Start brings the device up: the RTC is started if halted, the schedule
// storage is checked, then the servo loop, control server, announcements
// and the clock loop begin.
func (s *DeviceService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle && s.state != StateStopped {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateStarting
	announcer, notifier := s.announcer, s.notifier
	s.mu.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.LoadState(); err != nil {
		s.logger.Warn("device state not restored", "error", err)
	}
	s.startOscillator()
	s.checkSchedule()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.servoNoteLoop(s.ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.actuator.Run(s.ctx)
	}()

	if err := s.server.Start(s.ctx); err != nil {
		s.cancel()
		s.wg.Wait()
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
		return fmt.Errorf("start control server: %w", err)
	}

	if notifier != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			notifier.Run(s.ctx)
		}()
	}

	if announcer != nil {
		info := discovery.ServiceInfo{
			Name:     s.config.Name,
			Version:  s.config.Version,
			Protocol: version.Protocol,
			Port:     s.server.Port(),
		}
		if err := announcer.Announce(s.ctx, info); err != nil {
			s.logger.Warn("announce failed", "error", err)
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.clockLoop(s.ctx)
	}()

	s.mu.Lock()
	s.state = StateRunning
	s.mu.Unlock()

	s.logger.Info("feeder started", "name", s.config.Name, "port", s.server.Port())
	return nil
}

// Stop stops the device service. A run in progress is stopped.
func (s *DeviceService) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.state = StateStopping
	announcer := s.announcer
	s.mu.Unlock()

	if announcer != nil {
		announcer.Stop()
	}
	s.cancel()
	err := s.server.Stop()
	s.wg.Wait()
	s.drainServoNotes()

	if serr := s.SaveState(); serr != nil {
		s.logger.Warn("device state not saved", "error", serr)
	}

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()

	s.logger.Info("feeder stopped")
	return err
}

// startOscillator starts a halted RTC. A halted chip has lost time, so
// the clock is logged as unsynchronised.
func (s *DeviceService) startOscillator() {
	osc, ok := s.hw.RTC.(rtc.Oscillator)
	if !ok {
		return
	}
	running, err := osc.IsRunning()
	if err != nil {
		s.hardwareFault("read oscillator", err)
		return
	}
	if running {
		return
	}
	if err := osc.Start(); err != nil {
		s.hardwareFault("start oscillator", err)
		return
	}
	s.logger.Warn("rtc oscillator was halted, started; time needs sync")
	s.logState(log.StateEntityClock, "HALTED", "RUNNING", "oscillator started")
}

// checkSchedule resets storage that fails the startup scan.
func (s *DeviceService) checkSchedule() {
	reset, err := s.store.EnsureInitialized()
	if err != nil {
		s.hardwareFault("verify schedule", err)
		return
	}
	if reset {
		s.logger.Warn("schedule storage invalid, reset to empty")
		s.logState(log.StateEntitySchedule, "CORRUPT", "EMPTY", "storage reset")
		s.emitEvent(Event{Type: EventScheduleChanged, Slot: -1})
	}
	s.refreshSlotGauge(nil)
}

func (s *DeviceService) clockLoop(ctx context.Context) {
	if s.currentSyncer() != nil {
		s.syncClock(ctx, false)
	}

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	var watcher feeding.MinuteWatcher
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, &watcher)
		}
	}
}

// tick reads the clock once. On a minute change it checks the schedule,
// and on the hour it syncs the clock unless a feeding is near. A failed
// schedule check is repeated until it succeeds or the minute passes.
func (s *DeviceService) tick(ctx context.Context, watcher *feeding.MinuteWatcher) {
	now, err := s.hw.RTC.Now()
	if err != nil {
		if s.clockOK.Swap(false) {
			s.hardwareFault("read clock", err)
		} else if m := s.currentMetrics(); m != nil {
			m.ObserveHardwareFault("read clock")
		}
		return
	}
	if !s.clockOK.Swap(true) {
		s.logger.Info("clock readable again", "time", now.String())
	}

	retrying := watcher.Pending()
	if !watcher.Observe(now) {
		return
	}
	if _, err := s.coordinator.CheckFeedingTime(now.Hour, now.Minute); err != nil {
		// Check this minute again on the next tick.
		if !retrying {
			s.hardwareFault("check feeding time", err)
		} else if m := s.currentMetrics(); m != nil {
			m.ObserveHardwareFault("check feeding time")
		}
		watcher.Retry()
		return
	}
	if now.Minute == 0 && s.currentSyncer() != nil {
		s.syncClock(ctx, true)
	}
}

// SyncClock runs one time sync now, ignoring the feeding guard.
func (s *DeviceService) SyncClock(ctx context.Context) error {
	if s.currentSyncer() == nil {
		return errors.New("time sync not configured")
	}
	return s.syncClock(ctx, false)
}

func (s *DeviceService) syncClock(ctx context.Context, guarded bool) error {
	syncer := s.currentSyncer()

	ran := true
	var err error
	if guarded {
		ran, err = syncer.SyncIfClear(ctx, s.coordinator)
	} else {
		_, err = syncer.Sync(ctx)
	}

	result := "ok"
	switch {
	case err != nil:
		result = "failed"
	case !ran:
		result = "skipped"
	}
	if m := s.currentMetrics(); m != nil {
		m.ObserveSync(result, syncer.LastSync())
	}

	if err != nil {
		s.logger.Warn("time sync failed, keeping rtc time", "error", err)
		if errors.Is(err, rtc.ErrHardwareFault) {
			s.hardwareFault("sync clock", err)
		}
		return err
	}
	if !ran {
		return nil
	}

	s.recordMu.Lock()
	s.record.LastSync = syncer.LastSync()
	s.recordMu.Unlock()
	s.saveStateLogged()

	s.logState(log.StateEntityClock, "", "SYNCED", "ntp")
	s.emitEvent(Event{Type: EventClockSynced, Slot: -1})
	return nil
}

func (s *DeviceService) serveClient(ctx context.Context, conn io.ReadWriter) error {
	if m := s.currentMetrics(); m != nil {
		m.ObserveConnection()
	}
	return s.handler.HandleClient(ctx, conn)
}

func (s *DeviceService) handleClientError(connID string, err error) {
	if m := s.currentMetrics(); m != nil {
		m.ObserveRequest("UNKNOWN", 0, false)
	}
	if errors.Is(err, rtc.ErrHardwareFault) {
		s.hardwareFault("control request", err)
	}
}

func (s *DeviceService) handleOutcome(o protocol.Outcome) {
	if m := s.currentMetrics(); m != nil {
		m.ObserveRequest(requestKind(o.Request).String(), o.Took, true)
	}

	switch r := o.Request.(type) {
	case protocol.ManualRun:
		s.recordRun(log.SourceManual, -1, r.Duration(), o.Started)
	case protocol.CreateSlot:
		s.scheduleChanged(int(r.Slot), o.Response)
	case protocol.DeleteSlot:
		s.scheduleChanged(int(r.Slot), o.Response)
	}
}

func requestKind(req protocol.Request) log.RequestKind {
	switch req.(type) {
	case protocol.CreateSlot:
		return log.RequestCreate
	case protocol.DeleteSlot:
		return log.RequestDelete
	case protocol.ManualRun:
		return log.RequestManualRun
	default:
		return log.RequestQuery
	}
}

// servoNote is a button press or state change reported by the actuator.
type servoNote struct {
	button  bool
	started bool
	from    servo.State
	to      servo.State
}

const servoNoteQueue = 64

// queueServoNote never blocks the actuator. A full queue drops the note.
func (s *DeviceService) queueServoNote(n servoNote) {
	select {
	case s.servoNotes <- n:
	default:
		s.logger.Warn("servo event queue full, dropped", "button", n.button, "to", n.to.String())
	}
}

func (s *DeviceService) servoNoteLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-s.servoNotes:
			s.handleServoNote(n)
		}
	}
}

// drainServoNotes handles notes queued after the loop exited.
func (s *DeviceService) drainServoNotes() {
	for {
		select {
		case n := <-s.servoNotes:
			s.handleServoNote(n)
		default:
			return
		}
	}
}

func (s *DeviceService) handleServoNote(n servoNote) {
	if n.button {
		s.recordRun(log.SourceButton, -1, s.config.Servo.ButtonRun, n.started)
		return
	}
	s.handleServoState(n.from, n.to)
}

func (s *DeviceService) handleServoState(from, to servo.State) {
	if m := s.currentMetrics(); m != nil {
		m.SetServoRunning(to == servo.StateRunning)
	}
	s.logState(log.StateEntityServo, from.String(), to.String(), "")
	s.emitEvent(Event{Type: EventServoState, Slot: -1, Servo: to})
}

// SetSlot writes slot i as the console would over the wire.
func (s *DeviceService) SetSlot(i int, hour, minute, units byte) error {
	if err := s.store.Set(i, hour, minute, units); err != nil {
		s.faultIfHardware("set slot", err)
		return err
	}
	s.scheduleChanged(i, nil)
	return nil
}

// EraseSlot resets slot i to unused.
func (s *DeviceService) EraseSlot(i int) error {
	if err := s.store.Erase(i); err != nil {
		s.faultIfHardware("erase slot", err)
		return err
	}
	s.scheduleChanged(i, nil)
	return nil
}

// ManualRun starts the servo for d. It returns false if a run is already
// in progress.
func (s *DeviceService) ManualRun(d time.Duration) bool {
	started := s.actuator.Start(d)
	s.recordRun(log.SourceManual, -1, d, started)
	return started
}

func (s *DeviceService) scheduleChanged(slot int, dump []byte) {
	sched, ok := s.refreshSlotGauge(dump)
	if ok {
		if n := s.currentNotifier(); n != nil {
			notice := notify.ScheduleNotice{Slot: slot, Erased: !sched[slot].IsUsed()}
			if sched[slot].IsUsed() {
				notice.Time = fmt.Sprintf("%02d:%02d", sched[slot].Hour(), sched[slot].Minute())
				notice.DurationMS = sched[slot].Duration().Milliseconds()
			}
			n.ScheduleChanged(notice)
		}
	}
	s.emitEvent(Event{Type: EventScheduleChanged, Slot: slot})
}

// refreshSlotGauge updates the used-slot gauge from dump, or from the
// store when dump is nil.
func (s *DeviceService) refreshSlotGauge(dump []byte) (schedule.Schedule, bool) {
	var (
		sched schedule.Schedule
		err   error
	)
	if dump != nil {
		sched, err = protocol.DecodeSchedule(dump)
	} else {
		sched, err = s.store.All()
	}
	if err != nil {
		s.faultIfHardware("read schedule", err)
		return sched, false
	}
	if m := s.currentMetrics(); m != nil {
		used := 0
		for _, slot := range sched {
			if slot.IsUsed() {
				used++
			}
		}
		m.SetUsedSlots(used)
	}
	return sched, true
}

func (s *DeviceService) faultIfHardware(op string, err error) {
	if errors.Is(err, rtc.ErrHardwareFault) {
		s.hardwareFault(op, err)
	}
}

func (s *DeviceService) hardwareFault(op string, err error) {
	s.logger.Warn("hardware fault", "op", op, "error", err)
	if m := s.currentMetrics(); m != nil {
		m.ObserveHardwareFault(op)
	}
	s.events.Log(log.Event{
		Timestamp:  time.Now(),
		Layer:      log.LayerService,
		Category:   log.CategoryError,
		DeviceName: s.config.Name,
		Error: &log.ErrorEventData{
			Layer:   log.LayerService,
			Message: err.Error(),
			Context: op,
		},
	})
	s.emitEvent(Event{Type: EventHardwareFault, Slot: -1, Op: op, Error: err})
}

func (s *DeviceService) logState(entity log.StateEntity, from, to, reason string) {
	s.events.Log(log.Event{
		Timestamp:  time.Now(),
		Layer:      log.LayerService,
		Category:   log.CategoryState,
		DeviceName: s.config.Name,
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: from,
			NewState: to,
			Reason:   reason,
		},
	})
}

// emitEvent sends an event to all registered handlers.
func (s *DeviceService) emitEvent(event Event) {
	s.mu.RLock()
	handlers := s.eventHandlers
	s.mu.RUnlock()
	for _, handler := range handlers {
		go handler(event)
	}
}

func (s *DeviceService) currentSyncer() *timesync.Syncer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncer
}

func (s *DeviceService) currentNotifier() *notify.Notifier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notifier
}

func (s *DeviceService) currentMetrics() *metrics.Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics
}

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/fishfeeder/feeder-go/internal/config"
	"github.com/fishfeeder/feeder-go/pkg/hal"
	"github.com/fishfeeder/feeder-go/pkg/persistence"
	"github.com/fishfeeder/feeder-go/pkg/rtc"
	"github.com/fishfeeder/feeder-go/pkg/service"
)

// hardware is the opened device hardware plus anything to release on exit.
type hardware struct {
	service.Hardware

	// SimButton is the fake button when simulating, nil otherwise.
	SimButton *hal.FakeInput

	closers []io.Closer
}

func (h *hardware) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func openHardware(cfg *config.Config, logger *slog.Logger) (*hardware, error) {
	if cfg.Hardware.Simulate {
		return openSimulated(cfg, logger)
	}
	return openPeriph(cfg, logger)
}

// openSimulated backs the RTC with a JSON image in the state directory and
// replaces the pins with fakes.
func openSimulated(cfg *config.Config, logger *slog.Logger) (*hardware, error) {
	store := persistence.NewRTCStateStore(filepath.Join(cfg.Device.StateDir, "rtc.json"))
	clock, err := rtc.OpenSimulated(store, logger)
	if err != nil {
		return nil, err
	}

	button := hal.NewFakeInput()
	logger.Info("[SIM] simulated hardware", "rtc_image", store.Path())

	return &hardware{
		Hardware: service.Hardware{
			RTC:    clock,
			Servo:  hal.NewFakePWM(),
			Button: button,
		},
		SimButton: button,
	}, nil
}

func openPeriph(cfg *config.Config, logger *slog.Logger) (*hardware, error) {
	if err := hal.Init(); err != nil {
		return nil, err
	}

	pwm, err := hal.OpenPWM(cfg.Hardware.ServoPin)
	if err != nil {
		return nil, fmt.Errorf("servo: %w", err)
	}

	bus, err := hal.OpenI2C(cfg.Hardware.I2CBus, cfg.Hardware.RTCAddress)
	if err != nil {
		return nil, fmt.Errorf("rtc: %w", err)
	}

	guard := rtc.NewGuard(rtc.GuardConfig{
		Attempts:        cfg.RTC.Attempts,
		RetryInterval:   cfg.RTC.RetryInterval,
		BreakerFailures: cfg.RTC.BreakerFailures,
		BreakerOpenFor:  cfg.RTC.BreakerOpenFor,
		Logger:          logger,
	})

	hw := &hardware{
		Hardware: service.Hardware{
			RTC:   rtc.NewDS1307(bus, guard),
			Servo: pwm,
		},
		closers: []io.Closer{bus},
	}

	// Leave Button as a nil interface when no pin is configured.
	if cfg.Hardware.ButtonPin != "" {
		in, err := hal.OpenInput(cfg.Hardware.ButtonPin)
		if err != nil {
			hw.Close()
			return nil, fmt.Errorf("button: %w", err)
		}
		hw.Button = in
	}

	logger.Info("hardware ready",
		"servo_pin", cfg.Hardware.ServoPin,
		"button_pin", cfg.Hardware.ButtonPin,
		"i2c_bus", cfg.Hardware.I2CBus,
		"rtc_address", fmt.Sprintf("0x%02x", cfg.Hardware.RTCAddress))
	return hw, nil
}

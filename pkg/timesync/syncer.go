package timesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/beevik/ntp"
	"github.com/cenkalti/backoff/v4"

	"github.com/fishfeeder/feeder-go/pkg/rtc"
)

// Defaults.
const (
	DefaultServer        = "pool.ntp.org"
	DefaultTimeout       = 5 * time.Second
	DefaultAttempts      = 4
	DefaultRetryInterval = time.Second
)

// ErrSyncFailed is returned when no attempt produced a usable time.
var ErrSyncFailed = errors.New("time sync failed")

// QueryFunc performs one NTP exchange.
type QueryFunc func(host string, opt ntp.QueryOptions) (*ntp.Response, error)

// FeedingGuard reports whether a sync may run now.
type FeedingGuard interface {
	NoFeedingTimeWithin5Min() (bool, error)
}

// Config configures a Syncer.
type Config struct {
	Server        string
	Timeout       time.Duration
	Attempts      int
	RetryInterval time.Duration
	Logger        *slog.Logger

	// Query defaults to ntp.QueryWithOptions.
	Query QueryFunc
}

// Syncer writes NTP time to a clock.
type Syncer struct {
	clock  rtc.Clock
	config Config
	logger *slog.Logger

	mu       sync.Mutex
	lastSync time.Time
}

// New creates a Syncer for clock.
func New(clock rtc.Clock, config Config) *Syncer {
	if config.Server == "" {
		config.Server = DefaultServer
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Attempts <= 0 {
		config.Attempts = DefaultAttempts
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = DefaultRetryInterval
	}
	if config.Query == nil {
		config.Query = ntp.QueryWithOptions
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Syncer{clock: clock, config: config, logger: config.Logger}
}

// LastSync returns when the clock was last set, or the zero time.
func (s *Syncer) LastSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync
}

// Sync queries the server and sets the clock to UTC.
func (s *Syncer) Sync(ctx context.Context) (rtc.DateTime, error) {
	if before, err := s.clock.Now(); err == nil {
		s.logger.Info("time sync starting", "rtc", before.String())
	}

	attempt := 0
	op := func() (time.Time, error) {
		attempt++
		resp, err := s.config.Query(s.config.Server, ntp.QueryOptions{Timeout: s.config.Timeout})
		if err == nil {
			err = resp.Validate()
		}
		if err != nil {
			if isTimeout(err) {
				s.logger.Warn("time sync timed out", "attempt", attempt, "error", err)
				return time.Time{}, err
			}
			return time.Time{}, backoff.Permanent(err)
		}
		return resp.Time, nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.config.RetryInterval), uint64(s.config.Attempts-1)),
		ctx,
	)
	now, err := backoff.RetryWithData[time.Time](op, b)
	if err != nil {
		s.logger.Warn("time sync gave up", "attempts", attempt, "error", err)
		return rtc.DateTime{}, fmt.Errorf("%w after %d attempts: %w", ErrSyncFailed, attempt, err)
	}

	dt := rtc.FromTime(now.UTC())
	if err := s.clock.SetTime(dt); err != nil {
		return rtc.DateTime{}, fmt.Errorf("%w: set clock: %w", ErrSyncFailed, err)
	}

	s.mu.Lock()
	s.lastSync = now
	s.mu.Unlock()

	s.logger.Info("time sync complete", "rtc", dt.String(), "attempts", attempt)
	return dt, nil
}

// SyncIfClear syncs unless a feeding is due within five minutes. It
// reports whether a sync ran.
func (s *Syncer) SyncIfClear(ctx context.Context, guard FeedingGuard) (bool, error) {
	clear, err := guard.NoFeedingTimeWithin5Min()
	if err != nil {
		return false, err
	}
	if !clear {
		s.logger.Info("time sync skipped, feeding due")
		return false, nil
	}
	_, err = s.Sync(ctx)
	return true, err
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

package discovery

import (
	"context"
	"errors"
	"log/slog"
)

// Group runs several announcers together. Announce succeeds if at least
// one member starts; failures are logged.
type Group struct {
	members []Announcer
	logger  *slog.Logger
}

var _ Announcer = (*Group)(nil)

// NewGroup creates a group. Nil members are skipped.
func NewGroup(logger *slog.Logger, members ...Announcer) *Group {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Group{logger: logger}
	for _, m := range members {
		if m != nil {
			g.members = append(g.members, m)
		}
	}
	return g
}

// Len returns the number of members.
func (g *Group) Len() int {
	return len(g.members)
}

// Announce starts every member.
func (g *Group) Announce(ctx context.Context, info ServiceInfo) error {
	if len(g.members) == 0 {
		return nil
	}
	var errs []error
	for _, m := range g.members {
		if err := m.Announce(ctx, info); err != nil {
			g.logger.Warn("announce failed", "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) == len(g.members) {
		return errors.Join(errs...)
	}
	return nil
}

// Stop stops every member.
func (g *Group) Stop() {
	for _, m := range g.members {
		m.Stop()
	}
}

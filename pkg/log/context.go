package log

import "context"

type connKey struct{}

// ConnInfo identifies a control connection in events.
type ConnInfo struct {
	ID         string
	RemoteAddr string
}

// WithConn returns a context carrying connection identity.
func WithConn(ctx context.Context, info ConnInfo) context.Context {
	return context.WithValue(ctx, connKey{}, info)
}

// ConnFrom returns the connection identity stored in ctx, if any.
func ConnFrom(ctx context.Context) ConnInfo {
	info, _ := ctx.Value(connKey{}).(ConnInfo)
	return info
}

package session

import "context"

// Sink is told when the session can no longer be refreshed.
type Sink interface {
	OnUnauthenticated(ctx context.Context)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(ctx context.Context)

func (f SinkFunc) OnUnauthenticated(ctx context.Context) {
	f(ctx)
}

var _ Sink = (*Service)(nil)

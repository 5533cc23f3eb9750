package sensor

import "context"

// Caller identifies who triggered a read. It is attached to the request
// context by the transport and copied into every ReadEvent.
type Caller struct {
	RequestID  string
	RemoteAddr string
}

type callerKey struct{}

// WithCaller returns a copy of ctx carrying c.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the Caller stored in ctx, or the zero value.
func CallerFrom(ctx context.Context) Caller {
	c, _ := ctx.Value(callerKey{}).(Caller)
	return c
}

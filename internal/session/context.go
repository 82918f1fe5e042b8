package session

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoSession means a component ran outside the scope that owns the
// session.
var ErrNoSession = errors.New("no session in context")

// UsageError reports a programming mistake rather than a runtime failure.
type UsageError struct {
	Op  string
	Err error
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UsageError) Unwrap() error { return e.Err }

type ctxKey struct{}

func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session carried by ctx or a *UsageError.
func FromContext(ctx context.Context) (*Session, error) {
	if ctx != nil {
		if s, ok := ctx.Value(ctxKey{}).(*Session); ok && s != nil {
			return s, nil
		}
	}
	return nil, &UsageError{Op: "session.FromContext", Err: ErrNoSession}
}

// MustFromContext is FromContext that panics on misuse.
func MustFromContext(ctx context.Context) *Session {
	s, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return s
}

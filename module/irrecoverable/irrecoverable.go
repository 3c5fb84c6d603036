// Package irrecoverable provides a context-based mechanism for propagating
// irrecoverable errors from component worker routines to their supervisor.
package irrecoverable

import (
	"context"
	"log"
	"runtime"
	"sync"
)

// Signaler sends the error out.
type Signaler struct {
	errChan   chan error
	errThrown sync.Once
}

func NewSignaler() (*Signaler, <-chan error) {
	errChan := make(chan error, 1)
	return &Signaler{errChan: errChan}, errChan
}

// Throw reports an irrecoverable error and terminates the calling goroutine.
// It is a narrow drop-in replacement for panic or log.Fatal anywhere a
// Signaler is connected. Only the first thrown error is delivered.
func (s *Signaler) Throw(err error) {
	defer runtime.Goexit()
	s.errThrown.Do(func() {
		s.errChan <- err
		close(s.errChan)
	})
}

// SignalerContext is a constrained drop-in replacement for context.Context
// that additionally carries a Signaler. Obtain one via WithSignaler.
type SignalerContext interface {
	context.Context
	Throw(err error) // delegates to the signaler
	sealed()         // private, to constrain construction to WithSignaler
}

type signalerCtx struct {
	context.Context
	*Signaler
}

func (sc *signalerCtx) sealed() {}

// WithSignaler wraps the parent context with a fresh Signaler and returns the
// channel on which at most one irrecoverable error will be delivered.
func WithSignaler(parent context.Context) (SignalerContext, <-chan error) {
	sig, errChan := NewSignaler()
	return &signalerCtx{parent, sig}, errChan
}

// Throw throws the error through ctx if it carries a Signaler, and otherwise
// fails hard: swallowing an irrecoverable error is never acceptable.
func Throw(ctx context.Context, err error) {
	signalerAbleContext, ok := ctx.(SignalerContext)
	if ok {
		signalerAbleContext.Throw(err)
	}
	log.Fatalf("irrecoverable error signaler not found for context, please implement! Unhandled irrecoverable error: %v", err)
}

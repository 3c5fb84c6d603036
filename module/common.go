package module

import (
	"errors"

	"github.com/intentgate/intentgate-go/module/irrecoverable"
)

// ErrMultipleStartup is the panic value used when Start is called more than
// once on the same component.
var ErrMultipleStartup = errors.New("component may only be started once")

// ReadyDoneAware provides an interface to wait for a component's startup and
// shutdown to complete. The Ready channel closes once startup has finished,
// the Done channel once shutdown has finished.
type ReadyDoneAware interface {
	Ready() <-chan struct{}
	Done() <-chan struct{}
}

// Startable is a component that can be started once. Irrecoverable errors
// encountered while running are thrown through the SignalerContext.
type Startable interface {
	// Start starts the component. Any irrecoverable errors encountered while
	// the component is running should be thrown with the given SignalerContext.
	// This method should only be called once, and subsequent calls should
	// panic with ErrMultipleStartup.
	Start(irrecoverable.SignalerContext)
}

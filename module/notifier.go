package module

// Notifier is a concurrency primitive for informing worker routines about the
// arrival of new work units. It behaves like a channel in that it can be
// passed by value while still sharing internal state.
//
// Notify never blocks: if a notification is already pending it is a no-op.
// The worker drains pending work after each notification, so a coalesced
// notification never loses work.
type Notifier struct {
	notifier chan struct{} // buffered channel with capacity 1
}

// NewNotifier instantiates a Notifier.
func NewNotifier() Notifier {
	return Notifier{make(chan struct{}, 1)}
}

// Notify sends a notification, dropping it if one is already pending.
func (n Notifier) Notify() {
	select {
	case n.notifier <- struct{}{}:
	default:
	}
}

// Channel returns the channel for receiving notifications.
func (n Notifier) Channel() <-chan struct{} {
	return n.notifier
}

package verification

import (
	"time"
)

// scheduledTask is a cancellable one-shot timer used for deadline and grace
// handling. A callback that races with cancel may still fire, but every
// callback re-checks the intent's state under the collector lock, so a fired
// task against an already-terminal intent is a no-op. This replaces
// flag-checking closures with an explicitly torn-down task.
type scheduledTask struct {
	timer *time.Timer
}

// scheduleAt runs f once the wall clock reaches t. If t is already in the
// past, f runs immediately on the timer goroutine.
func scheduleAt(t time.Time, f func()) *scheduledTask {
	return &scheduledTask{timer: time.AfterFunc(time.Until(t), f)}
}

// cancel stops the task if it has not fired yet.
func (s *scheduledTask) cancel() {
	if s == nil {
		return
	}
	s.timer.Stop()
}

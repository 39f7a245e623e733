package clock

import (
	"time"

	"github.com/kirillkom/patent-assistant-client/internal/core/ports"
)

// System is the wall clock backed by runtime timers.
type System struct{}

func New() System {
	return System{}
}

func (System) Now() time.Time {
	return time.Now()
}

func (System) AfterFunc(d time.Duration, fn func()) ports.Timer {
	return time.AfterFunc(d, fn)
}

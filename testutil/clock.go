package testutil

import (
	"time"

	"github.com/benbjohnson/clock"
)

// RecordingClock is a mock clock that sends the duration of every timer it
// creates to Timers. Time only moves when Add or Set is called, so a test can
// wait on Timers and then advance the clock by exactly that duration.
type RecordingClock struct {
	*clock.Mock
	Timers chan time.Duration
}

func NewRecordingClock() *RecordingClock {
	return &RecordingClock{
		Mock:   clock.NewMock(),
		Timers: make(chan time.Duration, 1024),
	}
}

func (c *RecordingClock) Timer(d time.Duration) *clock.Timer {
	t := c.Mock.Timer(d)
	c.Timers <- d
	return t
}

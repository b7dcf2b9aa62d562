package timing

import "github.com/benbjohnson/clock"

// Clock defines the time operations used for start delays and debouncing.
// It is satisfied by both the real clock and Mock.
type Clock = clock.Clock

// Timer is a timer created by a Clock
type Timer = clock.Timer

// Mock is a Clock whose time only moves when Add or Set is called
type Mock = clock.Mock

// New returns a Clock backed by the system time
func New() Clock {
	return clock.New()
}

// NewMock returns a mock clock set to the Unix epoch
func NewMock() *Mock {
	return clock.NewMock()
}

// Or returns c, or the real clock when c is nil
func Or(c Clock) Clock {
	if c == nil {
		return New()
	}
	return c
}

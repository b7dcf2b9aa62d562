package watcher

import (
	"sync"
	"time"

	"github.com/butter-bot-machines/procmux/pkg/timing"
)

// debouncer implements Debouncer on a timing.Clock
type debouncer struct {
	delay    time.Duration
	maxDelay time.Duration
	timers   map[string]*timerCtx
	mu       sync.Mutex
	done     chan struct{}
	clock    timing.Clock
}

type timerCtx struct {
	timer      *timing.Timer
	firstEvent time.Time
	gen        uint64
}

// NewDebouncer creates a debouncer that fires delay after the last event of
// a burst, and no later than maxDelay after its first event.
func NewDebouncer(delay, maxDelay time.Duration, clock timing.Clock) Debouncer {
	if maxDelay < delay {
		maxDelay = delay
	}
	return &debouncer{
		delay:    delay,
		maxDelay: maxDelay,
		timers:   make(map[string]*timerCtx),
		done:     make(chan struct{}),
		clock:    timing.Or(clock),
	}
}

// Debounce delays execution of fn until events settle
func (d *debouncer) Debounce(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	select {
	case <-d.done:
		return
	default:
	}

	now := d.clock.Now()
	ctx, ok := d.timers[key]
	if !ok {
		ctx = &timerCtx{firstEvent: now}
		d.timers[key] = ctx
	}
	if ctx.timer != nil {
		ctx.timer.Stop()
	}
	ctx.gen++
	gen := ctx.gen

	wait := d.delay
	if remaining := d.maxDelay - now.Sub(ctx.firstEvent); remaining < wait {
		wait = remaining
	}
	if wait < 0 {
		wait = 0
	}

	ctx.timer = d.clock.AfterFunc(wait, func() {
		d.mu.Lock()
		defer d.mu.Unlock()

		select {
		case <-d.done:
			return
		default:
		}

		// A newer event rescheduled this key
		if cur, ok := d.timers[key]; !ok || cur != ctx || ctx.gen != gen {
			return
		}
		delete(d.timers, key)
		go fn()
	})
}

// Stop stops the debouncer
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	select {
	case <-d.done:
		return
	default:
		close(d.done)
	}

	for _, ctx := range d.timers {
		if ctx.timer != nil {
			ctx.timer.Stop()
		}
	}
	d.timers = nil
}

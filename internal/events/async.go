package events

import (
	"context"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-irsensor/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-irsensor/internal/sensor"
)

// DefaultQueueSize is the buffer used when NewAsync is given size <= 0.
const DefaultQueueSize = 256

type queuedEvent struct {
	ctx context.Context
	ev  sensor.ReadEvent
}

// Async hands events to another observer on a single background goroutine.
//
// ObserveRead never blocks: when the queue is full the event is dropped and
// counted. Events are delivered in order, one at a time, which also keeps
// SQLite writes serial.
type Async struct {
	name    string
	next    sensor.Observer
	queue   chan queuedEvent
	logger  *logging.Logger
	dropped atomic.Uint64
}

// NewAsync wraps next. Run must be started for events to be delivered.
func NewAsync(name string, next sensor.Observer, size int, logger *logging.Logger) *Async {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Async{
		name:   name,
		next:   next,
		queue:  make(chan queuedEvent, size),
		logger: logger.With("component", "events", "observer", name),
	}
}

// ObserveRead implements sensor.Observer.
func (a *Async) ObserveRead(ctx context.Context, ev sensor.ReadEvent) {
	select {
	case a.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), ev: ev}:
	default:
		a.dropped.Add(1)
		a.logger.Warn("event queue full, dropping read event", "outcome", ev.Outcome())
	}
}

// Run delivers queued events until ctx is cancelled, then drains what is
// left and returns.
func (a *Async) Run(ctx context.Context) {
	for {
		select {
		case item := <-a.queue:
			a.deliver(item)
		case <-ctx.Done():
			for {
				select {
				case item := <-a.queue:
					a.deliver(item)
				default:
					return
				}
			}
		}
	}
}

func (a *Async) deliver(item queuedEvent) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("observer panic recovered", "panic", r)
		}
	}()
	a.next.ObserveRead(item.ctx, item.ev)
}

// Dropped returns how many events were discarded because the queue was full.
func (a *Async) Dropped() uint64 {
	return a.dropped.Load()
}

// Pending returns the number of queued, undelivered events.
func (a *Async) Pending() int {
	return len(a.queue)
}

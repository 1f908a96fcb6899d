// Package dispatcher fans settlement events out to side-effect handlers
// such as notifications. Handlers run after the publishing transaction has
// committed, so a failing handler never affects money movement.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/paydesk/settlement-engine/internal/domain/event"
)

// Handler processes one event
type Handler func(ctx context.Context, evt *event.Event) error

// Publisher is the narrow view used by workflows that only emit events
type Publisher interface {
	// DispatchAsync hands evt to every subscribed handler without waiting
	DispatchAsync(ctx context.Context, evt *event.Event)
}

// Dispatcher routes events to named handlers
type Dispatcher interface {
	Publisher

	// Subscribe registers handler under name. A second registration with
	// the same name for the same event type replaces the first.
	Subscribe(eventType event.Type, name string, handler Handler)

	// Handlers returns the handler names registered for eventType
	Handlers(eventType event.Type) []string

	// InFlight returns the number of handler runs not yet finished
	InFlight() int64

	// Close stops accepting events and waits for running handlers
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type subscription struct {
	name    string
	handler Handler
}

type eventDispatcher struct {
	mu     sync.RWMutex
	subs   map[event.Type][]subscription
	logger Logger

	// closeMu orders wg.Add against Close so Add never races Wait
	closeMu  sync.Mutex
	closed   bool
	wg       sync.WaitGroup
	inFlight atomic.Int64
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{subs: make(map[event.Type][]subscription)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *eventDispatcher) Subscribe(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	subs := d.subs[eventType]
	replaced := false
	for i := range subs {
		if subs[i].name == name {
			subs[i].handler = handler
			replaced = true
		}
	}
	if !replaced {
		d.subs[eventType] = append(subs, subscription{name: name, handler: handler})
	}
	d.mu.Unlock()

	d.info("Handler registered", "event_type", eventType, "handler_name", name, "replaced", replaced)
}

func (d *eventDispatcher) Handlers(eventType event.Type) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.subs[eventType]))
	for _, s := range d.subs[eventType] {
		names = append(names, s.name)
	}
	return names
}

func (d *eventDispatcher) InFlight() int64 {
	return d.inFlight.Load()
}

// DispatchAsync runs each handler on its own goroutine with a context that
// is detached from the caller's cancellation, so handlers outlive the
// request that published the event
func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	if evt == nil {
		return
	}
	d.mu.RLock()
	subs := append([]subscription(nil), d.subs[evt.Type]...)
	d.mu.RUnlock()

	d.closeMu.Lock()
	if d.closed {
		d.closeMu.Unlock()
		d.error("Dropping event, dispatcher is closed", "event_type", evt.Type, "event_id", evt.ID)
		return
	}
	if len(subs) == 0 {
		d.closeMu.Unlock()
		return
	}
	d.wg.Add(len(subs))
	d.inFlight.Add(int64(len(subs)))
	d.closeMu.Unlock()

	d.info("Dispatching event", "event_type", evt.Type, "event_id", evt.ID, "handler_count", len(subs))

	detached := context.WithoutCancel(ctx)
	for _, s := range subs {
		go func(s subscription) {
			defer d.wg.Done()
			defer d.inFlight.Add(-1)
			if err := d.run(detached, evt, s); err != nil {
				d.error("Handler failed", "event_type", evt.Type, "event_id", evt.ID, "handler_name", s.name, "error", err)
			}
		}(s)
	}
}

// Close shuts down the dispatcher and waits for handlers to complete
func (d *eventDispatcher) Close() error {
	d.closeMu.Lock()
	if d.closed {
		d.closeMu.Unlock()
		return fmt.Errorf("dispatcher already closed")
	}
	d.closed = true
	d.closeMu.Unlock()

	d.info("Closing dispatcher, waiting for handlers", "in_flight", d.inFlight.Load())
	d.wg.Wait()
	d.info("Dispatcher closed")
	return nil
}

// run calls one handler, turning a panic into an error
func (d *eventDispatcher) run(ctx context.Context, evt *event.Event, s subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return s.handler(ctx, evt)
}

func (d *eventDispatcher) info(msg string, keysAndValues ...interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, keysAndValues...)
	}
}

func (d *eventDispatcher) error(msg string, keysAndValues ...interface{}) {
	if d.logger != nil {
		d.logger.Error(msg, keysAndValues...)
	}
}

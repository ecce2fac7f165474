package notify

import (
	"sync"

	"github.com/Rajchodisetti/alertbot/internal/observ"
)

// Sink consumes notifications. Handle must not block the caller for long
// and never reports failure; sinks log their own errors.
type Sink interface {
	Handle(n Notification)
}

type SinkFunc func(n Notification)

func (f SinkFunc) Handle(n Notification) { f(n) }

// Fanout delivers to every sink in order.
type Fanout []Sink

func (f Fanout) Handle(n Notification) {
	for _, s := range f {
		if s != nil {
			s.Handle(n)
		}
	}
}

// Discard drops everything.
var Discard Sink = SinkFunc(func(Notification) {})

// Async hands notifications to a worker goroutine through a bounded buffer.
// When the buffer is full the notification is dropped and logged.
type Async struct {
	name  string
	next  Sink
	queue chan Notification
	wg    sync.WaitGroup
	once  sync.Once

	mu      sync.Mutex
	dropped int
}

func NewAsync(name string, next Sink, buffer int) *Async {
	if buffer <= 0 {
		buffer = 1000
	}
	a := &Async{name: name, next: next, queue: make(chan Notification, buffer)}
	a.wg.Add(1)
	go a.worker()
	return a
}

func (a *Async) Handle(n Notification) {
	select {
	case a.queue <- n:
	default:
		a.mu.Lock()
		a.dropped++
		a.mu.Unlock()
		observ.Warn("notify_dropped", map[string]any{"sink": a.name, "kind": string(n.Kind())})
	}
}

func (a *Async) worker() {
	defer a.wg.Done()
	for n := range a.queue {
		a.next.Handle(n)
	}
}

// Close stops accepting work and waits for the buffer to drain. Handle must
// not be called after Close.
func (a *Async) Close() {
	a.once.Do(func() {
		close(a.queue)
		a.wg.Wait()
	})
}

func (a *Async) Dropped() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

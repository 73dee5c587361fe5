// Package probe abstracts the hosted browsing surface the engine inspects and drives.
// A Probe evaluates scripts in the top-level document, reports navigation lifecycle
// events, and carries a one-way page-to-host message bridge.
package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrNoPage is returned when the probe has no live page to talk to.
var ErrNoPage = errors.New("probe: no page attached")

// EventKind identifies a lifecycle notification from the host.
type EventKind int

const (
	// Navigated fires when the top-level document commits a cross-document navigation.
	Navigated EventKind = iota
	// NavigatedInPage fires on a same-document URL change (history API, fragment).
	NavigatedInPage
	// DOMReady fires when the top-level document finished parsing.
	DOMReady
	// LoadFailed fires when the top-level document failed to load.
	LoadFailed
)

func (k EventKind) String() string {
	switch k {
	case Navigated:
		return "navigated"
	case NavigatedInPage:
		return "navigated-in-page"
	case DOMReady:
		return "dom-ready"
	case LoadFailed:
		return "load-failed"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is one lifecycle notification.
type Event struct {
	Kind  EventKind
	URL   string
	Error string
}

// BindingHandler receives the raw string a page script passed to a bridge binding.
type BindingHandler func(payload string)

// Probe is the host surface. Evaluate takes the source of a zero-argument JavaScript
// function (it may be async) and returns its result as raw JSON.
type Probe interface {
	Navigate(ctx context.Context, url string) error
	Evaluate(ctx context.Context, fn string) ([]byte, error)
	URL(ctx context.Context) (string, error)
	// Subscribe registers fn for lifecycle events and returns a function removing it.
	// Handlers run on a single dispatch goroutine in arrival order.
	Subscribe(fn func(Event)) (unsubscribe func())
	// Bind exposes a global function named name in every document. Calls from the page
	// are delivered to h asynchronously.
	Bind(ctx context.Context, name string, h BindingHandler) error
	GoBack(ctx context.Context) error
	GoForward(ctx context.Context) error
	Reload(ctx context.Context) error
	History(ctx context.Context) (canGoBack, canGoForward bool, err error)
	Close() error
}

// hub fans lifecycle events out to subscribers from one goroutine, so slow handlers
// never block the browser's own event loop.
type hub struct {
	mu     sync.Mutex
	next   int
	subs   map[int]func(Event)
	queue  chan Event
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

const hubBuffer = 64

func newHub(logger *zap.Logger) *hub {
	h := &hub{
		subs:   make(map[int]func(Event)),
		queue:  make(chan Event, hubBuffer),
		done:   make(chan struct{}),
		logger: logger,
	}
	go h.run()
	return h
}

func (h *hub) Subscribe(fn func(Event)) func() {
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = fn
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// publish never blocks. When the buffer is full the event is dropped and logged.
func (h *hub) publish(ev Event) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.queue <- ev:
	default:
		h.logger.Warn("Dropping lifecycle event, subscribers are not keeping up.", zap.Stringer("kind", ev.Kind))
	}
}

func (h *hub) run() {
	for {
		select {
		case <-h.done:
			return
		case ev := <-h.queue:
			h.mu.Lock()
			fns := make([]func(Event), 0, len(h.subs))
			for i := 0; i < h.next; i++ {
				if fn, ok := h.subs[i]; ok {
					fns = append(fns, fn)
				}
			}
			h.mu.Unlock()
			for _, fn := range fns {
				h.deliver(fn, ev)
			}
		}
	}
}

func (h *hub) deliver(fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Lifecycle subscriber panicked.", zap.Any("panic", r), zap.Stringer("kind", ev.Kind))
		}
	}()
	fn(ev)
}

func (h *hub) close() {
	h.once.Do(func() { close(h.done) })
}

// invoke runs a binding handler off the caller's goroutine and contains panics.
func invoke(logger *zap.Logger, name string, h BindingHandler, payload string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Panic during binding call.", zap.String("name", name), zap.Any("panic", r))
			}
		}()
		h(payload)
	}()
}

// wrapFunction turns a function source into an immediately invoked expression.
func wrapFunction(fn string) string {
	return "(" + fn + ")()"
}

// Package dispatch provides the synchronous publish/subscribe primitive
// that every stateful simulation component hangs its events on.
//
// A Hub owns a fixed set of named topics. Publishing runs every
// subscriber synchronously, in registration order, on the caller's
// stack. Subscribing or unsubscribing while a topic is mid-dispatch is
// buffered and applied once the dispatch round finishes, so the
// in-flight round always sees the subscriber list it started with.
package dispatch

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrUnknownTopic is returned when publishing or subscribing to a
	// topic that was never declared on the hub.
	ErrUnknownTopic = errors.New("unknown topic")

	// ErrReentrantPublish is returned when a callback publishes the
	// topic it is currently being dispatched on. Nested delivery order
	// would be undefined, so the hub refuses it outright.
	ErrReentrantPublish = errors.New("reentrant publish")
)

// Event is the unit delivered to subscribers.
type Event struct {
	Topic   string
	Payload any
}

// Callback handles one dispatched event. Returning false stops the
// current dispatch round before later subscribers run.
type Callback func(e Event) bool

// Subscription identifies one registered callback so it can be removed
// later. The zero value is inert.
type Subscription struct {
	topic string
	id    string
}

// Topic returns the topic this subscription is registered on.
func (s Subscription) Topic() string {
	return s.topic
}

type listener struct {
	id string
	cb Callback
}

type pendingOp struct {
	add bool
	l   listener // set when add
	id  string   // set when remove
}

// topic holds the subscriber list for one event name, plus the
// buffered mutations requested during an active dispatch.
type topic struct {
	name        string
	listeners   []listener
	dispatching bool
	pending     []pendingOp
}

func (t *topic) applyPending() {
	for _, op := range t.pending {
		if op.add {
			t.listeners = append(t.listeners, op.l)
			continue
		}
		for i, l := range t.listeners {
			if l.id == op.id {
				t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
				break
			}
		}
	}
	t.pending = nil
}

// Hub owns a set of topics keyed by name. Topics are append-only for
// the hub's lifetime. A Hub is not safe for concurrent use; the
// simulation runs on a single logical thread of control and reentrant
// callbacks are the hazard being managed, not parallelism.
type Hub struct {
	topics map[string]*topic
}

// NewHub creates a hub with the given topics declared.
func NewHub(topics ...string) *Hub {
	h := &Hub{topics: make(map[string]*topic, len(topics))}
	h.Declare(topics...)
	return h
}

// Declare registers topic names. Re-declaring an existing name is a
// no-op, and topics are never removed.
func (h *Hub) Declare(names ...string) {
	for _, name := range names {
		if _, ok := h.topics[name]; !ok {
			h.topics[name] = &topic{name: name}
		}
	}
}

// Topics returns the declared topic names in unspecified order.
func (h *Hub) Topics() []string {
	names := make([]string, 0, len(h.topics))
	for name := range h.topics {
		names = append(names, name)
	}
	return names
}

// Subscribe registers cb for future dispatches on the named topic and
// returns a handle for removal. If the topic is currently dispatching,
// the registration takes effect only after the in-flight round
// completes; cb does not receive the event already in progress.
func (h *Hub) Subscribe(name string, cb Callback) (Subscription, error) {
	t, ok := h.topics[name]
	if !ok {
		return Subscription{}, fmt.Errorf("%w: %q", ErrUnknownTopic, name)
	}
	l := listener{id: uuid.NewString(), cb: cb}
	if t.dispatching {
		t.pending = append(t.pending, pendingOp{add: true, l: l})
	} else {
		t.listeners = append(t.listeners, l)
	}
	return Subscription{topic: name, id: l.id}, nil
}

// Unsubscribe removes the callback identified by sub. Removing during
// an active dispatch of the same topic is deferred: the callback still
// receives the event already in flight, and removal takes effect once
// that round completes. Unknown or stale handles are ignored.
func (h *Hub) Unsubscribe(sub Subscription) {
	t, ok := h.topics[sub.topic]
	if !ok || sub.id == "" {
		return
	}
	if t.dispatching {
		t.pending = append(t.pending, pendingOp{id: sub.id})
		return
	}
	for i, l := range t.listeners {
		if l.id == sub.id {
			t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
			return
		}
	}
}

// SubscriberCount returns the number of callbacks registered on the
// named topic, not counting buffered additions. Useful for testing.
func (h *Hub) SubscriberCount(name string) int {
	t, ok := h.topics[name]
	if !ok {
		return 0
	}
	return len(t.listeners)
}

// Publish dispatches payload to every subscriber of the named topic in
// registration order. It returns completed=false if a callback stopped
// the round early. Publishing a topic from within its own dispatch
// fails with ErrReentrantPublish; publishing a different topic from a
// callback is allowed and delivers before the outer Publish returns.
func (h *Hub) Publish(name string, payload any) (completed bool, err error) {
	t, ok := h.topics[name]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownTopic, name)
	}
	if t.dispatching {
		return false, fmt.Errorf("%w: %q", ErrReentrantPublish, name)
	}

	t.dispatching = true
	defer func() {
		t.dispatching = false
		t.applyPending()
	}()

	e := Event{Topic: name, Payload: payload}
	for _, l := range t.listeners {
		if !l.cb(e) {
			return false, nil
		}
	}
	return true, nil
}

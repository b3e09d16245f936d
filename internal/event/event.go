// Package event defines the notifications fired around object manager
// operations and a synchronous dispatcher for them.
package event

import (
	"context"
	"sync"

	"github.com/isometry/ldapom/internal/object"
)

// Kind identifies the point at which an event fires.
type Kind string

const (
	BeforeCreate Kind = "before.create"
	AfterCreate  Kind = "after.create"
	BeforeModify Kind = "before.modify"
	AfterModify  Kind = "after.modify"
	BeforeDelete Kind = "before.delete"
	AfterDelete  Kind = "after.delete"
	BeforeMove   Kind = "before.move"
	AfterMove    Kind = "after.move"
)

// Event carries the object affected by an operation.
type Event struct {
	Kind   Kind
	Object *object.Object
}

// Dispatcher publishes events. Dispatch is fire-and-forget.
type Dispatcher interface {
	Dispatch(ctx context.Context, e Event)
}

// Handler receives dispatched events.
type Handler func(ctx context.Context, e Event)

// Bus calls subscribed handlers synchronously, in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[Kind][]Handler)}
}

// Subscribe registers h for each of kinds.
func (b *Bus) Subscribe(h Handler, kinds ...Kind) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, k := range kinds {
		b.handlers[k] = append(b.handlers[k], h)
	}
}

func (b *Bus) Dispatch(ctx context.Context, e Event) {
	b.mu.RLock()
	handlers := b.handlers[e.Kind]
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, e)
	}
}

// AllKinds lists every event kind.
func AllKinds() []Kind {
	return []Kind{
		BeforeCreate, AfterCreate,
		BeforeModify, AfterModify,
		BeforeDelete, AfterDelete,
		BeforeMove, AfterMove,
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Dispatch(context.Context, Event) {}

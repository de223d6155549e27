package federation

import (
	"context"
	"fmt"
	"sync"

	"github.com/goliatone/go-errors"
)

// HandlerDeps is the collaborator bundle handed to every activity handler.
// Handlers own their transactional boundary; nothing here spans deliveries.
type HandlerDeps struct {
	Storage   Storage
	Resolver  *Resolver
	Deliverer *Deliverer
	Languages LanguagePolicy
	Logger    Logger
}

// ActivityHandler applies one activity kind. The actor argument is the
// verified, resolved sender.
type ActivityHandler interface {
	Kind() string
	Handle(ctx context.Context, actor *Actor, envelope *Envelope, deps HandlerDeps) error
}

// Dispatcher routes verified activities to kind handlers. Dispatch over an
// unregistered kind is non-fatal: federated peers evolve vocabularies
// independently, so unknown kinds are accepted and dropped.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]ActivityHandler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: map[string]ActivityHandler{},
	}
}

// Register adds a handler for its kind; a second handler for the same kind
// is a conflict.
func (d *Dispatcher) Register(handler ActivityHandler) error {
	if handler == nil {
		return errors.New("dispatch: handler is nil", errors.CategoryBadInput)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	kind := handler.Kind()
	if _, exists := d.handlers[kind]; exists {
		return errors.New(
			fmt.Sprintf("dispatch: handler already registered for kind %q", kind),
			errors.CategoryConflict,
		)
	}
	d.handlers[kind] = handler
	return nil
}

// MustRegister is Register for wiring code that treats a conflict as a
// programming error.
func (d *Dispatcher) MustRegister(handlers ...ActivityHandler) *Dispatcher {
	for _, h := range handlers {
		if err := d.Register(h); err != nil {
			panic(err)
		}
	}
	return d
}

// Dispatch routes the envelope to its kind handler. The boolean reports
// whether any handler ran; unknown kinds return (false, nil).
func (d *Dispatcher) Dispatch(ctx context.Context, actor *Actor, envelope *Envelope, deps HandlerDeps) (bool, error) {
	d.mu.RLock()
	handler, ok := d.handlers[envelope.Kind]
	d.mu.RUnlock()

	if !ok {
		return false, nil
	}

	if err := handler.Handle(ctx, actor, envelope, deps); err != nil {
		return true, errors.Wrap(err, errors.CategoryOperation,
			fmt.Sprintf("dispatch: %s handler failed", envelope.Kind))
	}
	return true, nil
}

// Kinds returns the registered activity kinds.
func (d *Dispatcher) Kinds() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	kinds := make([]string, 0, len(d.handlers))
	for kind := range d.handlers {
		kinds = append(kinds, kind)
	}
	return kinds
}

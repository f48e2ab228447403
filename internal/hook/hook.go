// Package hook provides typed, ordered extension points owned by the
// components that fire them.
//
// Filters thread a value through every handler in registration order.
// Actions notify handlers of an event; Fire stops at the first error so a
// handler can veto, Emit logs failures and keeps going.
//
// Registration is keyed by owner: registering again under the same owner
// replaces the previous handler in place, so re-booting a plugin never
// duplicates its handler.
package hook

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-kratos/kratos/v2/log"
)

// Filter transforms a value.
type Filter[T any] func(ctx context.Context, v T) T

// Action reacts to an event. A non-nil error vetoes when fired with Fire.
type Action[T any] func(ctx context.Context, v T) error

type entry[F any] struct {
	owner string
	fn    F
}

// registry is the owner-keyed ordered list shared by Filters and Actions.
type registry[F any] struct {
	mu      sync.RWMutex
	name    string
	entries []entry[F]
}

func (r *registry[F]) add(owner string, fn F) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].owner == owner {
			r.entries[i].fn = fn
			return
		}
	}
	r.entries = append(r.entries, entry[F]{owner: owner, fn: fn})
}

func (r *registry[F]) remove(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].owner == owner {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

func (r *registry[F]) snapshot() []entry[F] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entry[F], len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of registered handlers.
func (r *registry[F]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Name returns the hook name.
func (r *registry[F]) Name() string { return r.name }

// Filters is a named value pipeline.
type Filters[T any] struct {
	registry[Filter[T]]
}

// NewFilters creates an empty pipeline.
func NewFilters[T any](name string) *Filters[T] {
	return &Filters[T]{registry: registry[Filter[T]]{name: name}}
}

// Add registers fn under owner.
func (f *Filters[T]) Add(owner string, fn Filter[T]) {
	f.add(owner, fn)
}

// Remove unregisters the handler owned by owner.
func (f *Filters[T]) Remove(owner string) {
	f.remove(owner)
}

// Apply runs initial through every handler and returns the final value.
func (f *Filters[T]) Apply(ctx context.Context, initial T) T {
	v := initial
	for _, e := range f.snapshot() {
		v = e.fn(ctx, v)
	}
	return v
}

// Actions is a named event with ordered handlers.
type Actions[T any] struct {
	registry[Action[T]]
	log *log.Helper
}

// NewActions creates an event with no handlers.
func NewActions[T any](name string, logger log.Logger) *Actions[T] {
	return &Actions[T]{
		registry: registry[Action[T]]{name: name},
		log:      log.NewHelper(log.With(logger, "hook", name)),
	}
}

// On registers fn under owner.
func (a *Actions[T]) On(owner string, fn Action[T]) {
	a.add(owner, fn)
}

// Remove unregisters the handler owned by owner.
func (a *Actions[T]) Remove(owner string) {
	a.remove(owner)
}

// Fire invokes handlers in order and returns the first error, skipping the
// rest. A panicking handler is reported as an error.
func (a *Actions[T]) Fire(ctx context.Context, v T) error {
	for _, e := range a.snapshot() {
		if err := invoke(ctx, e, v); err != nil {
			return fmt.Errorf("hook %s: handler %s: %w", a.name, e.owner, err)
		}
	}
	return nil
}

// Emit invokes every handler; failures are logged and do not stop the rest.
func (a *Actions[T]) Emit(ctx context.Context, v T) {
	for _, e := range a.snapshot() {
		if err := invoke(ctx, e, v); err != nil {
			a.log.WithContext(ctx).Errorf("handler %s failed: %v", e.owner, err)
		}
	}
}

func invoke[T any](ctx context.Context, e entry[Action[T]], v T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.fn(ctx, v)
}

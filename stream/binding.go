package stream

import (
	"context"
	"fmt"
	"strconv"
)

// BindingID identifies a Binding within one Engine. IDs are dense and
// follow registration order.
type BindingID int

// Binding describes one registered (source, handler, sinks) triple. It is
// immutable once returned by Bind.
type Binding struct {
	ID      BindingID
	Name    string
	Source  any
	Handler any
	Sinks   []any
}

// String returns the binding name, or binding-<id> when it has none.
func (b Binding) String() string {
	if b.Name != "" {
		return b.Name
	}
	return "binding-" + strconv.Itoa(int(b.ID))
}

// Bind registers a Binding on e that feeds every item of src to h and
// publishes each output to sinks in order.
func Bind[I, O any](e *Engine, src Source[I], h Handler[I, O], sinks ...any) (BindingID, error) {
	return BindNamed(e, "", src, h, sinks...)
}

// BindNamed is Bind with a diagnostic name used in logs, metrics and errors.
func BindNamed[I, O any](e *Engine, name string, src Source[I], h Handler[I, O], sinks ...any) (BindingID, error) {
	if src == nil {
		return 0, ErrNilSource
	}
	if h == nil {
		return 0, ErrNilHandler
	}
	routes, err := resolveRoutes[O](sinks)
	if err != nil {
		return 0, fmt.Errorf("bind %q: %w", name, err)
	}
	b := &boundWorker[I, O]{
		source:  src,
		handler: h,
		routes:  routes,
	}
	info := Binding{
		Name:    name,
		Source:  src,
		Handler: h,
		Sinks:   append([]any(nil), sinks...),
	}
	return e.registry.add(info, src.Reentrant(), b)
}

// runner is the type-erased worker body of a Binding.
type runner interface {
	run(ctx context.Context, w *worker) error
}

type boundWorker[I, O any] struct {
	source  Source[I]
	handler Handler[I, O]
	routes  []route[O]
}

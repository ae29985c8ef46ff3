package stream

import (
	"fmt"
	"reflect"
	"sync"
)

type entry struct {
	info   Binding
	runner runner
}

// registry is the ordered, append-only list of Bindings of one Engine. The
// Engine freezes it once at start and only reads the snapshot afterwards.
type registry struct {
	mu      sync.Mutex
	frozen  bool
	entries []entry
	// sources maps a source identity to whether it is reentrant.
	sources map[any]bool
}

func (r *registry) add(info Binding, reentrant bool, run runner) (BindingID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return 0, ErrFrozen
	}

	key, comparable := sourceIdentity(info.Source)
	if comparable {
		if _, seen := r.sources[key]; seen && !reentrant {
			return 0, fmt.Errorf("bind %q: %w", info.Name, ErrSourceShared)
		}
		if r.sources == nil {
			r.sources = make(map[any]bool)
		}
		r.sources[key] = reentrant
	}

	info.ID = BindingID(len(r.entries))
	r.entries = append(r.entries, entry{info: info, runner: run})
	return info.ID, nil
}

// freeze stops further registration and returns the registered entries.
func (r *registry) freeze() []entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
	return r.entries
}

func (r *registry) bindings() []Binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Binding, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.info
	}
	return out
}

// sourceIdentity unwraps decorators such as Limit. Sources are compared by
// reference, so only pointer-shaped sources have an identity.
func sourceIdentity(src any) (any, bool) {
	for {
		w, ok := src.(wrapper)
		if !ok {
			break
		}
		src = w.Underlying()
	}
	if src == nil {
		return nil, false
	}
	switch reflect.TypeOf(src).Kind() {
	case reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return src, true
	default:
		return nil, false
	}
}

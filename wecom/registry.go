package wecom

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// OperationFunc is a named business operation: it shapes a request for one
// corp from caller-supplied JSON parameters and returns the decoded result.
type OperationFunc func(ctx context.Context, corpID string, params []byte) (interface{}, error)

// Registry maps operation names to their implementations. Endpoint packages
// register into it explicitly; a duplicate name is rejected so two packages
// can never silently shadow each other's operations.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]OperationFunc
}

func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]OperationFunc)}
}

// Register adds a named operation. Registering a name twice returns
// ErrDuplicateOperation and leaves the first registration in place.
func (r *Registry) Register(name string, fn OperationFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ops[name]; exists {
		return errors.Wrap(ErrDuplicateOperation, name)
	}
	r.ops[name] = fn
	return nil
}

// Lookup returns the operation registered under name.
func (r *Registry) Lookup(name string) (OperationFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.ops[name]
	return fn, ok
}

// Names returns the registered operation names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package topology

import "sync"

// Binding is one queue-to-exchange association created by a subscribe call.
type Binding struct {
	Queue      string
	Exchange   string
	RoutingKey string
}

// BindingRegistry tracks the bindings this node has created so disconnect can
// unwind them in order. It is the sole source of truth for teardown: a binding
// not recorded here never gets unbound, one recorded twice gets unbound twice.
type BindingRegistry struct {
	mu       sync.Mutex
	bindings []Binding
}

// NewBindingRegistry creates an empty registry.
func NewBindingRegistry() *BindingRegistry {
	return &BindingRegistry{}
}

// Record remembers a binding for later teardown. Every subscribe call records
// its binding, duplicates included.
func (r *BindingRegistry) Record(b Binding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings = append(r.bindings, b)
}

// All returns a snapshot of the recorded bindings.
func (r *BindingRegistry) All() []Binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Binding, len(r.bindings))
	copy(out, r.bindings)
	return out
}

// Drain returns the recorded bindings and clears the registry, so a second
// teardown pass has nothing left to unbind.
func (r *BindingRegistry) Drain() []Binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.bindings
	r.bindings = nil
	return out
}

// Len returns the number of recorded bindings.
func (r *BindingRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bindings)
}

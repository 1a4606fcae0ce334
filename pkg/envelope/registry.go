// Package envelope implements the Envelope Runtime (C4): the enforcement
// gate every agent invocation dispatches through, plus the data-driven
// registry envelopes are loaded into at startup.
package envelope

import (
	"fmt"
	"sync"

	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
)

// Registry holds Envelopes as data, keyed by agent name. Envelopes are
// never module-level constants the runtime can't audit; they are
// registered here, typically from a YAML definition file at startup.
type Registry struct {
	mu   sync.RWMutex
	byName map[string]*contracts.Envelope
}

// NewRegistry creates an empty envelope registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*contracts.Envelope)}
}

// Register adds or replaces an envelope by name.
func (r *Registry) Register(env *contracts.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[env.Name] = env
}

// Lookup returns the envelope registered for an agent name.
func (r *Registry) Lookup(name string) (*contracts.Envelope, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	env, ok := r.byName[name]
	if !ok {
		return nil, contracts.NewError(contracts.KindProtocol, "envelope.Lookup",
			fmt.Sprintf("no envelope registered for agent %q", name))
	}
	return env, nil
}

// Names returns every registered agent name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	return out
}

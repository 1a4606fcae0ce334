package conductor

import (
	"context"
	"sync"

	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
)

// MemoryStore is an in-process StateStore, used in single-node mode and
// tests.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]*contracts.ConductorState
}

// NewMemoryStore creates an empty in-memory StateStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*contracts.ConductorState)}
}

func (s *MemoryStore) Get(ctx context.Context, requestID string) (*contracts.ConductorState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[requestID]
	if !ok {
		return nil, contracts.NewError(contracts.KindProtocol, "conductor.MemoryStore.Get", "no conductor state for this request")
	}
	cp := *state
	return &cp, nil
}

func (s *MemoryStore) Create(ctx context.Context, state *contracts.ConductorState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.states[state.RequestID]; exists {
		return contracts.NewError(contracts.KindProtocol, "conductor.MemoryStore.Create", "conductor state already exists")
	}
	cp := *state
	s.states[state.RequestID] = &cp
	return nil
}

func (s *MemoryStore) Save(ctx context.Context, state *contracts.ConductorState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *state
	s.states[state.RequestID] = &cp
	return nil
}

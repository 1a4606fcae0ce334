// Package conductor implements the Conductor (C5): the single global
// state machine enforcing phase order and the one-agent-per-request lock.
package conductor

import (
	"context"
	"fmt"

	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
	"github.com/IlyasuSeidu/forge-sub004/pkg/eventlog"
)

// PhaseAgent maps a Conductor phase to the agent envelope name expected
// to run in it. Phases with no entry (e.g. terminal phases) have no
// agent.
type PhaseAgent map[contracts.Phase]string

// ActionKind is the decision kind next_action returns.
type ActionKind string

const (
	ActionRunAgent   ActionKind = "run_agent"
	ActionAwaitHuman ActionKind = "await_human"
	ActionHalt       ActionKind = "halt"
)

// NextAction is the Conductor's pure scheduling decision.
type NextAction struct {
	Kind   ActionKind
	Agent  string
	Reason string
}

// StateStore persists ConductorState.
type StateStore interface {
	Get(ctx context.Context, requestID string) (*contracts.ConductorState, error)
	Create(ctx context.Context, state *contracts.ConductorState) error
	// Save persists the new ConductorState. It writes nothing else: no
	// Request record is updated and no event is written with it.
	Save(ctx context.Context, state *contracts.ConductorState) error
}

// Machine is the Conductor: one instance serves every request; state is
// looked up per call via StateStore.
type Machine struct {
	store     StateStore
	locker    Locker
	events    eventlog.Log
	phaseAgent PhaseAgent
}

// New constructs a Conductor over a StateStore, Locker, and Event Log.
func New(store StateStore, locker Locker, events eventlog.Log, phaseAgent PhaseAgent) *Machine {
	return &Machine{store: store, locker: locker, events: events, phaseAgent: phaseAgent}
}

// Initialize sets phase idea, unlocked, not awaiting. Fails if state
// already exists for this request.
func (m *Machine) Initialize(ctx context.Context, requestID string) (*contracts.ConductorState, error) {
	if existing, _ := m.store.Get(ctx, requestID); existing != nil {
		return nil, contracts.NewError(contracts.KindProtocol, "conductor.Initialize",
			"conductor state already exists for this request")
	}
	state := &contracts.ConductorState{
		RequestID: requestID,
		Phase:     contracts.PhaseIdea,
	}
	if err := m.store.Create(ctx, state); err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "conductor.Initialize", "create state", err)
	}
	return state, nil
}

// State returns the current ConductorState for a request, used by the
// Agent Host to check the entry-phase precondition (§4.4 step 1) without
// going through NextAction's scheduling decision.
func (m *Machine) State(ctx context.Context, requestID string) (*contracts.ConductorState, error) {
	state, err := m.store.Get(ctx, requestID)
	if err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "conductor.State", "load state", err)
	}
	return state, nil
}

// ValidateTransition is a pure check: is (from, to) a legal edge.
func (m *Machine) ValidateTransition(from, to contracts.Phase) error {
	if contracts.CanTransition(from, to) {
		return nil
	}
	return contracts.NewError(contracts.KindProtocol, "conductor.ValidateTransition",
		fmt.Sprintf("illegal transition %s -> %s; allowed=%v", from, to, contracts.AllowedFrom(from)))
}

// Transition validates then atomically updates state and emits
// conductor_transition.
func (m *Machine) Transition(ctx context.Context, requestID string, to contracts.Phase, byAgent string) (*contracts.ConductorState, error) {
	state, err := m.store.Get(ctx, requestID)
	if err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "conductor.Transition", "load state", err)
	}
	if err := m.ValidateTransition(state.Phase, to); err != nil {
		return nil, err
	}

	from := state.Phase
	state.Phase = to
	state.LastAgent = byAgent
	if err := m.store.Save(ctx, state); err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "conductor.Transition", "save state", err)
	}

	if _, err := m.events.Append(ctx, requestID, contracts.EventConductorTransition,
		"conductor_transition", fmt.Sprintf("%s -> %s (by %s)", from, to, byAgent)); err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "conductor.Transition", "emit event", err)
	}
	return state, nil
}

// Lock acquires the per-request lock. The caller MUST observe
// locked=false AND awaiting_human=false before calling; violating this is
// a protocol error the caller must report and abort.
func (m *Machine) Lock(ctx context.Context, requestID string) error {
	state, err := m.store.Get(ctx, requestID)
	if err != nil {
		return contracts.WrapError(contracts.KindDependency, "conductor.Lock", "load state", err)
	}
	if state.Locked || state.AwaitingHuman {
		return contracts.NewError(contracts.KindProtocol, "conductor.Lock",
			"protocol violation: attempted to lock while locked or awaiting_human")
	}
	if err := m.locker.Acquire(ctx, requestID); err != nil {
		return contracts.WrapError(contracts.KindDependency, "conductor.Lock", "acquire", err)
	}
	state.Locked = true
	if err := m.store.Save(ctx, state); err != nil {
		_ = m.locker.Release(ctx, requestID)
		return contracts.WrapError(contracts.KindDependency, "conductor.Lock", "save state", err)
	}
	return nil
}

// Unlock releases the per-request lock. Must be paired with Lock by the
// caller, including on the error path (try/finally discipline).
func (m *Machine) Unlock(ctx context.Context, requestID string) error {
	state, err := m.store.Get(ctx, requestID)
	if err != nil {
		return contracts.WrapError(contracts.KindDependency, "conductor.Unlock", "load state", err)
	}
	state.Locked = false
	if err := m.store.Save(ctx, state); err != nil {
		return contracts.WrapError(contracts.KindDependency, "conductor.Unlock", "save state", err)
	}
	return m.locker.Release(ctx, requestID)
}

// PauseForHuman sets awaiting_human=true, locked=false, and emits
// conductor_paused_for_human. The lock is released deliberately so
// external HTTP endpoints can observe state and accept approval.
func (m *Machine) PauseForHuman(ctx context.Context, requestID, reason string) error {
	state, err := m.store.Get(ctx, requestID)
	if err != nil {
		return contracts.WrapError(contracts.KindDependency, "conductor.PauseForHuman", "load state", err)
	}
	state.AwaitingHuman = true
	state.Locked = false
	if err := m.store.Save(ctx, state); err != nil {
		return contracts.WrapError(contracts.KindDependency, "conductor.PauseForHuman", "save state", err)
	}
	_ = m.locker.Release(ctx, requestID)

	_, err = m.events.Append(ctx, requestID, contracts.EventConductorPausedForHuman,
		"conductor_paused_for_human", reason)
	return err
}

// ResumeAfterHuman clears awaiting_human and emits conductor_resumed.
func (m *Machine) ResumeAfterHuman(ctx context.Context, requestID string) error {
	state, err := m.store.Get(ctx, requestID)
	if err != nil {
		return contracts.WrapError(contracts.KindDependency, "conductor.ResumeAfterHuman", "load state", err)
	}
	state.AwaitingHuman = false
	if err := m.store.Save(ctx, state); err != nil {
		return contracts.WrapError(contracts.KindDependency, "conductor.ResumeAfterHuman", "save state", err)
	}

	_, err = m.events.Append(ctx, requestID, contracts.EventConductorResumed, "conductor_resumed", "")
	return err
}

// NextAction is a pure decision over (locked, awaiting_human, phase).
func (m *Machine) NextAction(ctx context.Context, requestID string) (*NextAction, error) {
	state, err := m.store.Get(ctx, requestID)
	if err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "conductor.NextAction", "load state", err)
	}

	if state.Locked {
		return &NextAction{Kind: ActionHalt, Reason: "request is locked by another agent"}, nil
	}
	if state.AwaitingHuman {
		return &NextAction{Kind: ActionAwaitHuman, Reason: "awaiting human approval"}, nil
	}
	if contracts.IsTerminal(state.Phase) {
		return &NextAction{Kind: ActionHalt, Reason: fmt.Sprintf("phase %s is terminal", state.Phase)}, nil
	}

	agent, ok := m.phaseAgent[state.Phase]
	if !ok {
		return &NextAction{Kind: ActionHalt, Reason: fmt.Sprintf("no agent mapped for phase %s", state.Phase)}, nil
	}
	return &NextAction{Kind: ActionRunAgent, Agent: agent}, nil
}

// Cancel transitions a non-terminal request to failed, the explicit admin
// cancellation edge allowed from any non-terminal phase.
func (m *Machine) Cancel(ctx context.Context, requestID, reason string) (*contracts.ConductorState, error) {
	return m.Transition(ctx, requestID, contracts.PhaseFailed, "admin:"+reason)
}

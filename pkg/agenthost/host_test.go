package agenthost_test

import (
	"context"
	"testing"

	"github.com/IlyasuSeidu/forge-sub004/pkg/agenthost"
	"github.com/IlyasuSeidu/forge-sub004/pkg/conductor"
	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
	"github.com/IlyasuSeidu/forge-sub004/pkg/envelope"
	"github.com/IlyasuSeidu/forge-sub004/pkg/eventlog"
	"github.com/IlyasuSeidu/forge-sub004/pkg/ledger"
)

func newTestHost(t *testing.T, phaseAgent conductor.PhaseAgent) (*agenthost.Host, *conductor.Machine, *envelope.Registry, ledger.Ledger, eventlog.Log) {
	t.Helper()
	store := conductor.NewMemoryStore()
	locker := conductor.NewInProcessLocker()
	events := eventlog.NewInMemory()
	machine := conductor.New(store, locker, events, phaseAgent)
	registry := envelope.NewRegistry()
	runtime := envelope.NewRuntime(registry)
	lg := ledger.NewInMemory()
	host := agenthost.New(machine, runtime, lg, events)
	return host, machine, registry, lg, events
}

func allActions() []contracts.Action {
	return []contracts.Action{
		contracts.ActionReadArtifact, contracts.ActionCallLLM, contracts.ActionWriteArtifact,
		contracts.ActionTransition, contracts.ActionPauseForHuman, contracts.ActionEmitEvent,
	}
}

func TestHost_HappyPath_RunThenApproveAdvancesPhase(t *testing.T) {
	phaseAgent := conductor.PhaseAgent{contracts.PhaseIdea: "intent-agent"}
	host, machine, registry, _, _ := newTestHost(t, phaseAgent)

	registry.Register(&contracts.Envelope{
		Name:           "intent-agent",
		Authority:      contracts.AuthorityConstitutional,
		AllowedActions: allActions(),
		Produces:       contracts.TypeIntentAnswers,
		EntryPhase:     contracts.PhaseIdea,
		ExitEffecting:  true,
	})

	ctx := context.Background()
	if _, err := machine.Initialize(ctx, "req-1"); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	body := func(ctx context.Context, bundle agenthost.InputBundle) (agenthost.Draft, error) {
		return agenthost.Draft{Structured: map[string]string{"answer": "a todo app"}}, nil
	}

	artifact, err := host.Run(ctx, "req-1", "intent-agent", body, "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if artifact.Status != contracts.StatusAwaitingApproval {
		t.Fatalf("expected awaiting_approval, got %s", artifact.Status)
	}

	state, err := machine.State(ctx, "req-1")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if !state.AwaitingHuman {
		t.Fatal("expected conductor to be awaiting human approval")
	}

	approved, err := host.Approve(ctx, "req-1", artifact.ID, "human-1")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != contracts.StatusApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}

	state, err = machine.State(ctx, "req-1")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.Phase != contracts.PhaseBasePromptReady {
		t.Fatalf("expected phase to advance to base_prompt_ready, got %s", state.Phase)
	}
	if state.AwaitingHuman {
		t.Fatal("expected awaiting_human to clear after approval")
	}
}

func TestHost_Run_WrongPhaseFailsClosed(t *testing.T) {
	phaseAgent := conductor.PhaseAgent{contracts.PhasePlanning: "intent-agent"}
	host, machine, registry, _, _ := newTestHost(t, phaseAgent)
	registry.Register(&contracts.Envelope{
		Name:           "intent-agent",
		AllowedActions: allActions(),
		Produces:       contracts.TypeIntentAnswers,
		EntryPhase:     contracts.PhasePlanning,
	})

	ctx := context.Background()
	if _, err := machine.Initialize(ctx, "req-1"); err != nil { // phase=idea
		t.Fatalf("initialize: %v", err)
	}

	body := func(ctx context.Context, bundle agenthost.InputBundle) (agenthost.Draft, error) {
		return agenthost.Draft{Structured: map[string]string{"answer": "x"}}, nil
	}

	_, err := host.Run(ctx, "req-1", "intent-agent", body, "")
	if !contracts.IsKind(err, contracts.KindProtocol) {
		t.Fatalf("expected PROTOCOL error for wrong phase, got %v", err)
	}

	state, err := machine.State(ctx, "req-1")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.Locked {
		t.Fatal("lock must not be held after a failed run")
	}
}

func TestHost_Run_MissingRequiredInputFailsClosed(t *testing.T) {
	phaseAgent := conductor.PhaseAgent{contracts.PhaseBasePromptReady: "plan-agent"}
	host, machine, registry, _, _ := newTestHost(t, phaseAgent)
	registry.Register(&contracts.Envelope{
		Name:           "plan-agent",
		AllowedActions: allActions(),
		Produces:       contracts.TypeMasterPlan,
		EntryPhase:     contracts.PhaseBasePromptReady,
		RequiredInputs: []contracts.RequiredInput{{Role: "base_prompt", Type: contracts.TypeBasePrompt}},
	})

	ctx := context.Background()
	if _, err := machine.Initialize(ctx, "req-1"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := machine.Transition(ctx, "req-1", contracts.PhaseBasePromptReady, "test"); err != nil {
		t.Fatalf("transition: %v", err)
	}

	body := func(ctx context.Context, bundle agenthost.InputBundle) (agenthost.Draft, error) {
		return agenthost.Draft{Structured: map[string]string{"plan": "x"}}, nil
	}

	_, err := host.Run(ctx, "req-1", "plan-agent", body, "")
	if !contracts.IsKind(err, contracts.KindProtocol) {
		t.Fatalf("expected PROTOCOL error for missing required input, got %v", err)
	}
}

func TestHost_Reject_DoesNotAdvancePhase(t *testing.T) {
	phaseAgent := conductor.PhaseAgent{contracts.PhaseIdea: "intent-agent"}
	host, machine, registry, _, _ := newTestHost(t, phaseAgent)
	registry.Register(&contracts.Envelope{
		Name:           "intent-agent",
		AllowedActions: allActions(),
		Produces:       contracts.TypeIntentAnswers,
		EntryPhase:     contracts.PhaseIdea,
		ExitEffecting:  true,
	})

	ctx := context.Background()
	if _, err := machine.Initialize(ctx, "req-1"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	body := func(ctx context.Context, bundle agenthost.InputBundle) (agenthost.Draft, error) {
		return agenthost.Draft{Structured: map[string]string{"answer": "a todo app"}}, nil
	}
	artifact, err := host.Run(ctx, "req-1", "intent-agent", body, "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	rejected, err := host.Reject(ctx, "req-1", artifact.ID, "vague answer")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != contracts.StatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}

	state, err := machine.State(ctx, "req-1")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.Phase != contracts.PhaseIdea {
		t.Fatalf("expected phase to remain idea after rejection, got %s", state.Phase)
	}
}

func TestHost_Run_DedupReturnsExistingArtifact(t *testing.T) {
	phaseAgent := conductor.PhaseAgent{contracts.PhaseIdea: "intent-agent"}
	host, machine, registry, _, _ := newTestHost(t, phaseAgent)
	registry.Register(&contracts.Envelope{
		Name:           "intent-agent",
		AllowedActions: allActions(),
		Produces:       contracts.TypeIntentAnswers,
		EntryPhase:     contracts.PhaseIdea,
	})

	ctx := context.Background()
	if _, err := machine.Initialize(ctx, "req-1"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	body := func(ctx context.Context, bundle agenthost.InputBundle) (agenthost.Draft, error) {
		return agenthost.Draft{Structured: map[string]string{"answer": "a todo app"}}, nil
	}

	first, err := host.Run(ctx, "req-1", "intent-agent", body, "")
	if err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Resume: PauseForHuman released the lock but left awaiting_human set.
	// Clear it to simulate an operator retry without approving yet.
	if err := machine.ResumeAfterHuman(ctx, "req-1"); err != nil {
		t.Fatalf("resume: %v", err)
	}

	second, err := host.Run(ctx, "req-1", "intent-agent", body, "")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected dedup to return the same artifact id, got %s vs %s", second.ID, first.ID)
	}
}

// Package completion implements the Completion Auditor (spec.md §4.6): a
// pure decision function over verification outcomes, plus the artifact
// write and event emission that record its decision. Decide itself never
// touches the Conductor or the Ledger; ApplyDecision is the separate,
// explicitly impure step that enacts the decision as a phase transition.
package completion

import (
	"context"
	"fmt"

	"github.com/IlyasuSeidu/forge-sub004/pkg/conductor"
	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
	"github.com/IlyasuSeidu/forge-sub004/pkg/envelope"
	"github.com/IlyasuSeidu/forge-sub004/pkg/eventlog"
	"github.com/IlyasuSeidu/forge-sub004/pkg/hasher"
	"github.com/IlyasuSeidu/forge-sub004/pkg/ledger"
	"github.com/IlyasuSeidu/forge-sub004/pkg/protocolver"
)

// taxonomyEntry pairs an error tag with the closed non-repairable class it
// belongs to. This list is fixed: no caller may register a new class at
// runtime, per the redesigned closed taxonomy in SPEC_FULL §9.
type taxonomyEntry struct {
	Tag   string
	Class contracts.NonRepairableClass
}

var taxonomy = []taxonomyEntry{
	{Tag: "security_violation", Class: contracts.ClassSecurityViolation},
	{Tag: "unauthorized_access", Class: contracts.ClassSecurityViolation},
	{Tag: "secret_exfiltration", Class: contracts.ClassSecurityViolation},
	{Tag: "ruleset_violation", Class: contracts.ClassRulesetViolation},
	{Tag: "project_rules_conflict", Class: contracts.ClassRulesetViolation},
	{Tag: "forbidden_dependency", Class: contracts.ClassRulesetViolation},
	{Tag: "architectural_conflict", Class: contracts.ClassArchitecturalConflict},
	{Tag: "circular_dependency", Class: contracts.ClassArchitecturalConflict},
	{Tag: "layering_violation", Class: contracts.ClassArchitecturalConflict},
}

// Classify matches an error tag against the closed taxonomy. An empty or
// unmatched tag is always repairable.
func Classify(errorTag string) (contracts.NonRepairableClass, bool) {
	for _, e := range taxonomy {
		if e.Tag == errorTag {
			return e.Class, true
		}
	}
	return "", false
}

// DecisionInput is everything Decide needs: no hidden state, no clock, no
// I/O. Two calls with the same input always return the same Decision.
type DecisionInput struct {
	VerificationPassed bool
	UnitsRemaining     int
	Attempt            int
	ErrorTag           string
}

// Decide implements the five decision rules of spec.md §4.6. It is pure:
// same input, same output, no side effects.
func Decide(in DecisionInput) (contracts.CompletionDecisionKind, string) {
	if in.VerificationPassed {
		if in.UnitsRemaining > 0 {
			return contracts.DecisionProceedToNextUnit, "verification passed, units remaining"
		}
		return contracts.DecisionMarkCompleted, "verification passed, no units remaining"
	}
	if class, ok := Classify(in.ErrorTag); ok {
		return contracts.DecisionMarkFailed, fmt.Sprintf("non-repairable failure class: %s", class)
	}
	if in.Attempt >= contracts.MaxRepairAttempts {
		return contracts.DecisionEscalateToHuman, fmt.Sprintf("repair attempts exhausted (%d/%d)", in.Attempt, contracts.MaxRepairAttempts)
	}
	return contracts.DecisionRetryWithRepair, fmt.Sprintf("repairable failure, attempt %d/%d", in.Attempt, contracts.MaxRepairAttempts)
}

// Auditor wraps Decide with the single artifact write and single event
// emission spec.md §4.6 requires per invocation (P8): exactly one
// completion_decision artifact, exactly one completion_audit_<decision>
// event, and nothing else mutated.
type Auditor struct {
	runtime *envelope.Runtime
	ledger  ledger.Ledger
	events  eventlog.Log
}

// NewAuditor constructs a Completion Auditor over the Envelope Runtime,
// Ledger, and Event Log. The runtime binding is resolved fresh on every
// call to Audit, same as the Agent Host (§5): no Binding is held across
// invocations.
func NewAuditor(rt *envelope.Runtime, lg ledger.Ledger, ev eventlog.Log) *Auditor {
	return &Auditor{runtime: rt, ledger: lg, events: ev}
}

// Audit runs Decide over in, writes the resulting CompletionDecision as an
// approved artifact (the decision is deterministic and system-authored, so
// it carries no separate human approval gate), and emits exactly one
// completion_audit_<decision> event. It does not touch the Conductor;
// callers drive the resulting phase transition with ApplyDecision.
func (a *Auditor) Audit(ctx context.Context, requestID, verificationResultHash string, in DecisionInput) (*contracts.Artifact, contracts.CompletionDecisionKind, error) {
	binding, err := a.runtime.Bind("completion-auditor")
	if err != nil {
		return nil, "", err
	}

	decision, reason := Decide(in)
	class, _ := Classify(in.ErrorTag)

	record := contracts.CompletionDecision{
		RequestID:              requestID,
		VerificationResultHash: verificationResultHash,
		Decision:               decision,
		Attempt:                in.Attempt,
		NonRepairableClass:     class,
		Reason:                 reason,
	}
	content, _, err := hasher.CanonicalizeStructured(record)
	if err != nil {
		return nil, decision, contracts.WrapError(contracts.KindDependency, "completion.Audit", "canonicalise decision", err)
	}

	inputHashes := map[string]string{"verification_result": verificationResultHash}
	requestHash, err := hasher.RequestHash("completion-auditor", inputHashes, protocolver.Current)
	if err != nil {
		return nil, decision, contracts.WrapError(contracts.KindDependency, "completion.Audit", "compute request hash", err)
	}
	if existing, err := a.ledger.FindByProducerRequestHash(ctx, requestID, requestHash); err != nil {
		return nil, decision, contracts.WrapError(contracts.KindDependency, "completion.Audit", "dedup lookup", err)
	} else if existing != nil {
		return existing, decision, nil
	}

	if err := binding.CheckAction(contracts.ActionWriteArtifact); err != nil {
		return nil, decision, err
	}
	art, err := a.ledger.PutDraft(ctx, requestID, contracts.TypeCompletionDecision, content, inputHashes, "completion-auditor", protocolver.Current, requestHash)
	if err != nil {
		return nil, decision, err
	}
	approved, err := a.ledger.Approve(ctx, art.ID, "system:completion-auditor")
	if err != nil {
		return nil, decision, err
	}

	if err := binding.CheckAction(contracts.ActionEmitEvent); err != nil {
		return nil, decision, err
	}
	if _, err := a.events.Append(ctx, requestID, contracts.EventType(contracts.CompletionAuditEvent(string(decision))),
		string(decision), reason); err != nil {
		return nil, decision, contracts.WrapError(contracts.KindDependency, "completion.Audit", "emit audit event", err)
	}

	return approved, decision, nil
}

// ApplyDecision is the explicitly impure enactment step: it drives the
// Conductor transition a CompletionDecisionKind implies. It is never
// called from within Audit, preserving the Auditor's purity invariant
// (P8: Decide and Audit mutate nothing but their own artifact and event).
func ApplyDecision(ctx context.Context, machine *conductor.Machine, requestID string, decision contracts.CompletionDecisionKind) error {
	switch decision {
	case contracts.DecisionMarkCompleted:
		_, err := machine.Transition(ctx, requestID, contracts.PhaseCompleted, "completion-auditor")
		return err
	case contracts.DecisionMarkFailed:
		_, err := machine.Transition(ctx, requestID, contracts.PhaseFailed, "completion-auditor")
		return err
	case contracts.DecisionRetryWithRepair:
		_, err := machine.Transition(ctx, requestID, contracts.PhaseVerificationFailed, "completion-auditor")
		return err
	case contracts.DecisionEscalateToHuman:
		return machine.PauseForHuman(ctx, requestID, "completion auditor escalated to human after repair attempts exhausted")
	case contracts.DecisionProceedToNextUnit:
		// No transition is made: the request stays in its current
		// phase.
		return nil
	default:
		return contracts.NewError(contracts.KindProtocol, "completion.ApplyDecision", fmt.Sprintf("unknown decision %q", decision))
	}
}

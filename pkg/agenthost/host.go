// Package agenthost implements the Agent Host (C6): the one canonical
// execution template every producer agent runs through (spec.md §4.4). It
// is the only component that touches the Conductor, the Envelope Runtime,
// and the Artifact Ledger together; agent bodies themselves never call
// any of those directly.
package agenthost

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/IlyasuSeidu/forge-sub004/pkg/conductor"
	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
	"github.com/IlyasuSeidu/forge-sub004/pkg/envelope"
	"github.com/IlyasuSeidu/forge-sub004/pkg/eventlog"
	"github.com/IlyasuSeidu/forge-sub004/pkg/hasher"
	"github.com/IlyasuSeidu/forge-sub004/pkg/ledger"
	"github.com/IlyasuSeidu/forge-sub004/pkg/protocolver"
)

// InputBundle is the isolated context an agent body receives: exactly the
// approved artifacts its envelope's required_inputs roles name. A body
// that needs an artifact outside this bundle has no way to reach it --
// the Host never hands out the Ledger itself.
type InputBundle struct {
	Artifacts map[string]*contracts.Artifact
}

// Draft is the typed, not-yet-hashed output of one agent body invocation.
// Exactly one of Structured or Text is populated, matching the artifact
// type's canonicalisation path (§4.2, §9's tagged-variant strategy).
type Draft struct {
	Structured  interface{}
	Text        string
	IsText      bool
	RawOutput   map[string]interface{}
	Temperature float64
}

// Body is the pure function body of one producer agent body: given an
// isolated input bundle, it may call an LLM provider and returns a typed
// Draft. It performs no I/O against the Ledger, Conductor, or Event Log;
// that orchestration belongs entirely to the Host.
type Body func(ctx context.Context, bundle InputBundle) (Draft, error)

// Host executes agent bodies under the Envelope Runtime, writes artifacts
// via the Ledger, emits events via the Event Log, and drives Conductor
// transitions. A single Host instance serves every request; concurrency
// across distinct requests is safe because the Conductor lock is scoped
// per request (§5).
type Host struct {
	conductor *conductor.Machine
	runtime   *envelope.Runtime
	ledger    ledger.Ledger
	events    eventlog.Log
	tracer    trace.Tracer
}

// New constructs an Agent Host over its four collaborators.
func New(c *conductor.Machine, rt *envelope.Runtime, lg ledger.Ledger, ev eventlog.Log) *Host {
	return &Host{conductor: c, runtime: rt, ledger: lg, events: ev, tracer: otel.Tracer("agenthost")}
}

// Run executes the ten-step Agent Host template (spec.md §4.4 steps
// 1-9; step 10 is Approve/Reject below, since it happens on a separate,
// externally-triggered call after the human approval gate). schemaJSON
// may be empty for envelopes with no structured output schema.
func (h *Host) Run(ctx context.Context, requestID, agentName string, body Body, schemaJSON string) (*contracts.Artifact, error) {
	ctx, span := h.tracer.Start(ctx, "agenthost.Run", trace.WithAttributes(
		attribute.String("request_id", requestID),
		attribute.String("agent", agentName),
	))
	defer span.End()

	binding, err := h.runtime.Bind(agentName)
	if err != nil {
		return nil, err
	}
	env := binding.Envelope()

	// Step 1: conductor state must be exactly this envelope's entry phase.
	state, err := h.conductor.State(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if state.Phase != env.EntryPhase {
		return nil, contracts.NewError(contracts.KindProtocol, "agenthost.Run",
			fmt.Sprintf("CONDUCTOR STATE VIOLATION: agent %q expects phase %q, request is in %q", agentName, env.EntryPhase, state.Phase))
	}

	// Step 2: acquire the Conductor lock. Every failure from here on must
	// release it before returning (try/finally discipline, §4.4 failure
	// semantics).
	if err := h.conductor.Lock(ctx, requestID); err != nil {
		return nil, err
	}
	released := false
	release := func() {
		if !released {
			_ = h.conductor.Unlock(ctx, requestID)
			released = true
		}
	}
	defer release()

	if err := binding.CheckAction(contracts.ActionReadArtifact); err != nil {
		return nil, err
	}

	// Step 3: build the isolated input bundle strictly from required_inputs.
	bundle := InputBundle{Artifacts: make(map[string]*contracts.Artifact, len(env.RequiredInputs))}
	inputHashes := make(map[string]string, len(env.RequiredInputs))
	for _, req := range env.RequiredInputs {
		art, err := h.ledger.CurrentApproved(ctx, requestID, req.Type)
		if err != nil {
			return nil, contracts.WrapError(contracts.KindDependency, "agenthost.Run", "load required input", err)
		}
		if art == nil {
			return nil, contracts.NewError(contracts.KindProtocol, "agenthost.Run",
				fmt.Sprintf("missing required input: role %q type %q is not approved", req.Role, req.Type))
		}
		bundle.Artifacts[req.Role] = art
		inputHashes[req.Role] = art.ContentHash
	}

	if err := binding.CheckAction(contracts.ActionCallLLM); err != nil {
		return nil, err
	}

	// Step 4: invoke the agent body.
	draft, err := body(ctx, bundle)
	if err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "agenthost.Run", "agent body failed", err)
	}

	if err := binding.CheckDeterminism(draft.Temperature); err != nil {
		return nil, err
	}

	// Step 5: validate the draft (schema + scope).
	if draft.RawOutput != nil {
		if err := binding.ValidateOutput(schemaJSON, draft.RawOutput); err != nil {
			return nil, err
		}
	}

	// Step 6: compute request_hash and short-circuit on a duplicate.
	requestHash, err := hasher.RequestHash(agentName, inputHashes, protocolver.Current)
	if err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "agenthost.Run", "compute request hash", err)
	}
	if existing, err := h.ledger.FindByProducerRequestHash(ctx, requestID, requestHash); err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "agenthost.Run", "dedup lookup", err)
	} else if existing != nil {
		return existing, nil
	}

	if err := binding.CheckAction(contracts.ActionWriteArtifact); err != nil {
		return nil, err
	}

	// Step 7: canonicalise and write the draft via the Ledger.
	content, err := canonicalizeDraft(draft)
	if err != nil {
		return nil, contracts.WrapError(contracts.KindContract, "agenthost.Run", "canonicalise draft", err)
	}
	artifact, err := h.ledger.PutDraft(ctx, requestID, env.Produces, content, inputHashes, agentName, protocolver.Current, requestHash)
	if err != nil {
		return nil, err
	}

	// Step 8: emit <type>_generated.
	if err := binding.CheckAction(contracts.ActionEmitEvent); err != nil {
		return nil, err
	}
	if _, err := h.events.Append(ctx, requestID, contracts.EventType(contracts.GeneratedEvent(env.Produces)),
		string(env.Produces), fmt.Sprintf("%s produced artifact %s", agentName, artifact.ID)); err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "agenthost.Run", "emit generated event", err)
	}

	// Step 9: pause for human approval, then release the lock.
	if err := binding.CheckAction(contracts.ActionPauseForHuman); err != nil {
		return nil, err
	}
	if err := h.conductor.PauseForHuman(ctx, requestID, fmt.Sprintf("awaiting approval of %s", env.Produces)); err != nil {
		return nil, err
	}
	released = true // PauseForHuman already released the lock internally

	return artifact, nil
}

// Approve implements §4.4 step 10's approval branch: re-hash, mark
// approved, emit <type>_approved, resume the Conductor from its human
// pause, and -- if the producing envelope is exit-effecting -- advance to
// the next phase.
func (h *Host) Approve(ctx context.Context, requestID, artifactID, approver string) (*contracts.Artifact, error) {
	art, err := h.ledger.Get(ctx, artifactID)
	if err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "agenthost.Approve", "load artifact", err)
	}
	binding, err := h.runtime.Bind(art.Producer)
	if err != nil {
		return nil, err
	}
	env := binding.Envelope()

	approved, err := h.ledger.Approve(ctx, artifactID, approver)
	if err != nil {
		return nil, err
	}

	if err := h.conductor.ResumeAfterHuman(ctx, requestID); err != nil {
		return nil, err
	}
	if err := binding.CheckAction(contracts.ActionEmitEvent); err != nil {
		return nil, err
	}
	if _, err := h.events.Append(ctx, requestID, contracts.EventType(contracts.ApprovedEvent(art.Type)),
		string(art.Type), fmt.Sprintf("%s approved by %s", artifactID, approver)); err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "agenthost.Approve", "emit approved event", err)
	}

	if env.ExitEffecting {
		next, ok := contracts.NextPhase(env.EntryPhase)
		if !ok {
			return nil, contracts.NewError(contracts.KindProtocol, "agenthost.Approve",
				fmt.Sprintf("envelope %q is exit-effecting but phase %q has no successor", env.Name, env.EntryPhase))
		}
		if requiredStillPending(ctx, h.ledger, requestID, env.EntryPhase, art.Type) {
			// Another exit-required type for this phase is not yet
			// approved (I3); the advance happens once the last one lands.
			return approved, nil
		}
		if err := binding.CheckAction(contracts.ActionTransition); err != nil {
			return nil, err
		}
		if _, err := h.conductor.Transition(ctx, requestID, next, env.Name); err != nil {
			return nil, err
		}
	}

	return approved, nil
}

// Reject implements §4.4 step 10's rejection branch: the artifact is
// soft-deleted and the phase does not advance. The Conductor is resumed
// (awaiting_human cleared) so the same agent may be re-invoked to
// regenerate, or an operator may trigger a fresh Run with corrected input.
func (h *Host) Reject(ctx context.Context, requestID, artifactID, reason string) (*contracts.Artifact, error) {
	art, err := h.ledger.Reject(ctx, artifactID, reason)
	if err != nil {
		return nil, err
	}
	if err := h.conductor.ResumeAfterHuman(ctx, requestID); err != nil {
		return nil, err
	}
	if _, err := h.events.Append(ctx, requestID, contracts.EventType(contracts.RejectedEvent(art.Type)),
		string(art.Type), reason); err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "agenthost.Reject", "emit rejected event", err)
	}
	return art, nil
}

// requiredStillPending reports whether any other artifact type the
// Conductor requires to exit phase still lacks an approved artifact (I3),
// aside from justApproved which was just approved in this call.
func requiredStillPending(ctx context.Context, lg ledger.Ledger, requestID string, phase contracts.Phase, justApproved contracts.ArtifactType) bool {
	for _, t := range contracts.ExitRequiredTypes[phase] {
		if t == justApproved {
			continue
		}
		art, err := lg.CurrentApproved(ctx, requestID, t)
		if err != nil || art == nil {
			return true
		}
	}
	return false
}

// canonicalizeDraft serialises a Draft to its canonical byte form via the
// appropriate hasher path; the hash itself is recomputed by the Ledger,
// not duplicated here.
func canonicalizeDraft(d Draft) ([]byte, error) {
	if d.IsText {
		b, _ := hasher.CanonicalizeText(d.Text)
		return b, nil
	}
	b, _, err := hasher.CanonicalizeStructured(d.Structured)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// MarshalRawOutput is a convenience for agent bodies whose LLM call
// returns a JSON string: parse it into the map[string]interface{} shape
// the Envelope Runtime's schema and scope checks require.
func MarshalRawOutput(jsonText string) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(jsonText), &out); err != nil {
		return nil, contracts.WrapError(contracts.KindContract, "agenthost.MarshalRawOutput",
			"LLM output is not valid JSON", err)
	}
	return out, nil
}

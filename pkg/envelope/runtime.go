package envelope

import (
	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
)

// Runtime is the Envelope Runtime: it resolves an agent's envelope from
// the Registry and hands the Agent Host a fail-closed Binding for the
// duration of one invocation.
type Runtime struct {
	registry *Registry
	scope    *ScopeEvaluator
	schemas  *SchemaValidator
}

// NewRuntime constructs a Runtime over a Registry.
func NewRuntime(registry *Registry) *Runtime {
	return &Runtime{
		registry: registry,
		scope:    NewScopeEvaluator(),
		schemas:  NewSchemaValidator(),
	}
}

// Bind resolves the envelope for agentName. An unknown agent name is a
// PROTOCOL error at the caller's boundary — there is no such thing as an
// unbound Binding; if Bind fails, the caller holds no Binding at all,
// which is the runtime's fail-closed posture.
func (r *Runtime) Bind(agentName string) (*Binding, error) {
	env, err := r.registry.Lookup(agentName)
	if err != nil {
		return nil, err
	}
	return &Binding{env: env, scope: r.scope, schemas: r.schemas}, nil
}

// Binding is the per-invocation enforcement gate. It holds no state
// across invocations; a fresh Binding is created by Bind for every Agent
// Host run, matching the Conductor's one-agent-per-request-at-a-time
// scheduling model (§5).
type Binding struct {
	env     *contracts.Envelope
	scope   *ScopeEvaluator
	schemas *SchemaValidator
}

// Envelope returns the bound envelope.
func (b *Binding) Envelope() *contracts.Envelope { return b.env }

// CheckAction enforces guarantee 1: the action must be in allowed_actions
// and must not be in forbidden_actions. Fail-closed: if b is nil (no
// envelope ever bound), every action is denied.
func (b *Binding) CheckAction(action contracts.Action) error {
	if b == nil || b.env == nil {
		return contracts.NewError(contracts.KindConstitutional, "envelope.CheckAction",
			"no envelope bound; all actions denied")
	}
	if b.env.Forbids(action) {
		return contracts.NewError(contracts.KindConstitutional, "envelope.CheckAction",
			"action "+string(action)+" is forbidden by envelope "+b.env.Name)
	}
	if !b.env.Allows(action) {
		return contracts.NewError(contracts.KindConstitutional, "envelope.CheckAction",
			"action "+string(action)+" is not in allowed_actions for envelope "+b.env.Name)
	}
	return nil
}

// ValidateOutput runs guarantee 3: schema validation of the raw LLM
// output against the producer's declared shape, followed by scope rule
// evaluation (forbidden keywords, closed vocabulary, density cap).
func (b *Binding) ValidateOutput(schemaJSON string, rawOutput map[string]interface{}) error {
	if err := b.schemas.Validate(b.env.Name, schemaJSON, rawOutput); err != nil {
		return contracts.WrapError(contracts.KindContract, "envelope.ValidateOutput",
			"LLM output failed schema validation", err)
	}
	return b.scope.Evaluate(b.env, rawOutput)
}

// CheckDeterminism enforces guarantee 4: when the envelope requires
// determinism, temperature must not exceed the declared ceiling.
func (b *Binding) CheckDeterminism(temperature float64) error {
	if !b.env.Scope.Deterministic {
		return nil
	}
	max := b.env.Scope.MaxTemperature
	if max <= 0 {
		max = 0.3
	}
	if temperature > max {
		return contracts.NewError(contracts.KindConstitutional, "envelope.CheckDeterminism",
			"determinism-constrained envelope requires temperature at or below the declared ceiling")
	}
	return nil
}

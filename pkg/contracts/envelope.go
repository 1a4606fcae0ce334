// Envelope is the agent self-declaration contract: authority, allowed and
// forbidden actions, required inputs, the artifact type it produces, and
// its scope rules. Envelopes are data, registered at startup into a
// lookup keyed by agent name, never module-level constants the runtime
// can't audit.
package contracts

// Authority classifies the kind of work an agent envelope is permitted to
// perform.
type Authority string

const (
	AuthorityConstitutional    Authority = "CONSTITUTIONAL"
	AuthorityPlanning          Authority = "PLANNING"
	AuthorityVisualDesign      Authority = "VISUAL_DESIGN"
	AuthorityBehavioral        Authority = "BEHAVIORAL"
	AuthorityBuildPlanning     Authority = "BUILD_PLANNING"
	AuthorityExecutionPlanning Authority = "EXECUTION_PLANNING"
	AuthorityRoboticExecution  Authority = "ROBOTIC_EXECUTION"
	AuthorityVerification      Authority = "VERIFICATION"
	AuthorityRepairPlanning    Authority = "REPAIR_PLANNING"
	AuthorityRepairExecution  Authority = "REPAIR_EXECUTION"
	AuthorityAudit             Authority = "AUDIT"
)

// Action is a runtime-exposed operation that every agent invocation must
// dispatch through its bound Envelope.
type Action string

const (
	ActionReadArtifact  Action = "read_artifact"
	ActionCallLLM       Action = "call_llm"
	ActionWriteArtifact Action = "write_artifact"
	ActionTransition    Action = "transition"
	ActionPauseForHuman Action = "pause_for_human"
	ActionEmitEvent     Action = "emit_event"
	ActionMutateFile    Action = "mutate_file"
)

// RequiredInput binds a role name (the key an agent looks the input up by)
// to the artifact type that role must be bound to.
type RequiredInput struct {
	Role string       `json:"role"`
	Type ArtifactType `json:"type"`
}

// Scope carries the structured constraints an envelope places on an
// agent's output: a closed vocabulary, forbidden keywords, a density cap
// for visual agents, a file whitelist for the Repair Agent, and the
// determinism requirement (temperature ceiling + deterministic bundle
// serialisation).
type Scope struct {
	// ClosedVocabulary, if non-empty, is the exhaustive set of values any
	// closed-vocabulary field in the agent's output may take. A value
	// outside this set is a CANONICALIZATION FAILURE, never silently
	// mapped.
	ClosedVocabulary []string `json:"closed_vocabulary,omitempty"`

	// ForbiddenKeywords trigger a SCOPE VIOLATION if present anywhere in
	// the agent's textual output.
	ForbiddenKeywords []string `json:"forbidden_keywords,omitempty"`

	// MaxDensity bounds a visual agent's element-per-screen output; zero
	// means unbounded.
	MaxDensity int `json:"max_density,omitempty"`

	// FileWhitelist bounds the Repair Agent to a fixed set of paths.
	FileWhitelist []string `json:"file_whitelist,omitempty"`

	// Deterministic requires temperature <= MaxTemperature (a
	// MaxTemperature of zero or less means a ceiling of 0.3) and a
	// deterministic serialisation of the input bundle (P5).
	Deterministic  bool    `json:"deterministic,omitempty"`
	MaxTemperature float64 `json:"max_temperature,omitempty"`
}

// Envelope is the full declarative contract one agent must satisfy.
type Envelope struct {
	Name             string          `json:"name"`
	Authority        Authority       `json:"authority"`
	AllowedActions   []Action        `json:"allowed_actions"`
	ForbiddenActions []Action        `json:"forbidden_actions"`
	RequiredInputs   []RequiredInput `json:"required_inputs"`
	Produces         ArtifactType    `json:"produces"`
	Scope            Scope           `json:"scope"`

	// EntryPhase is the Conductor phase an agent invocation must observe
	// before it may run (§4.4 step 1).
	EntryPhase Phase `json:"entry_phase"`

	// ExitEffecting, when true, means approving this envelope's produced
	// artifact advances the Conductor to the next phase (§4.4 step 10).
	ExitEffecting bool `json:"exit_effecting"`
}

// Allows reports whether an action is in the envelope's allowed set.
func (e *Envelope) Allows(a Action) bool {
	for _, allowed := range e.AllowedActions {
		if allowed == a {
			return true
		}
	}
	return false
}

// Forbids reports whether an action is in the envelope's forbidden set.
func (e *Envelope) Forbids(a Action) bool {
	for _, forbidden := range e.ForbiddenActions {
		if forbidden == a {
			return true
		}
	}
	return false
}

package contracts

// Phase is a Conductor state in the fixed, ordered, non-cyclic phase
// sequence. The only back-edge in the graph is PhaseVerifying ->
// PhaseVerificationFailed -> PhaseBuilding (re-entry after an approved
// repair plan).
type Phase string

const (
	PhaseIdea               Phase = "idea"
	PhaseBasePromptReady    Phase = "base_prompt_ready"
	PhasePlanning           Phase = "planning"
	PhaseScreensDefined     Phase = "screens_defined"
	PhaseFlowsDefined       Phase = "flows_defined"
	PhaseDesignsReady       Phase = "designs_ready"
	PhaseRulesLocked        Phase = "rules_locked"
	PhaseBuildPromptsReady  Phase = "build_prompts_ready"
	PhaseBuilding           Phase = "building"
	PhaseVerifying          Phase = "verifying"
	PhaseCompleted          Phase = "completed"
	PhaseVerificationFailed Phase = "verification_failed"
	PhaseFailed             Phase = "failed"
)

// terminal phases never accept a transition out; the admin cancellation
// edge (Conductor.Cancel) applies to non-terminal phases only.
var terminal = map[Phase]bool{
	PhaseCompleted: true,
	PhaseFailed:    true,
}

// IsTerminal reports whether a phase is terminal.
func IsTerminal(p Phase) bool { return terminal[p] }

// ordered is the linear phase sequence, excluding the verification_failed
// back-edge and the failed sink.
var ordered = []Phase{
	PhaseIdea,
	PhaseBasePromptReady,
	PhasePlanning,
	PhaseScreensDefined,
	PhaseFlowsDefined,
	PhaseDesignsReady,
	PhaseRulesLocked,
	PhaseBuildPromptsReady,
	PhaseBuilding,
	PhaseVerifying,
	PhaseCompleted,
}

// transitions enumerates every legal (from, to) edge reachable without
// going through AWAITING_HUMAN. `failed` is reachable as an explicit admin
// cancellation from any non-terminal phase and is added programmatically
// below.
var transitions = map[Phase]map[Phase]bool{}

func init() {
	for i := 0; i < len(ordered)-1; i++ {
		transitions[ordered[i]] = map[Phase]bool{ordered[i+1]: true}
	}
	// Verification back-edge: verifying can fall to verification_failed,
	// which only re-enters via an approved repair plan.
	transitions[PhaseVerifying][PhaseVerificationFailed] = true
	transitions[PhaseVerificationFailed] = map[Phase]bool{
		PhaseBuilding: true, // repair succeeded, re-verify
	}
	// Admin cancellation: any non-terminal phase may transition to failed.
	for _, p := range ordered {
		if !IsTerminal(p) {
			transitions[p][PhaseFailed] = true
		}
	}
	transitions[PhaseVerificationFailed][PhaseFailed] = true
}

// CanTransition reports whether moving from one phase to another is legal
// per the fixed transition table. AWAITING_HUMAN is not a phase: it is a
// Conductor flag orthogonal to phase, so it never appears here.
func CanTransition(from, to Phase) bool {
	if IsTerminal(from) {
		return false
	}
	edges, ok := transitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// NextPhase returns the phase immediately following p in the linear
// sequence, used by the Agent Host to compute the exit-effecting
// transition target once a producing envelope's artifact is approved.
// The verification_failed<->building repair back-edge and the failed
// sink are never returned here: those are driven explicitly by the
// Repair sub-loop and the Completion Auditor's enactment step, not by
// the generic approve-then-advance path.
func NextPhase(p Phase) (Phase, bool) {
	for i, ph := range ordered {
		if ph == p && i+1 < len(ordered) {
			return ordered[i+1], true
		}
	}
	return "", false
}

// AllowedFrom returns the set of phases reachable from the given phase,
// used to build the "allowed=..." message on a PROTOCOL transition error.
func AllowedFrom(from Phase) []Phase {
	edges := transitions[from]
	out := make([]Phase, 0, len(edges))
	for p := range edges {
		out = append(out, p)
	}
	return out
}

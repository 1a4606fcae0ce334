package contracts

import "time"

// MutationKind is the single action a Repair Agent may apply to a file.
type MutationKind string

const (
	MutationReplaceLines   MutationKind = "replace_lines"
	MutationReplaceContent MutationKind = "replace_content"
)

// RepairAction is one bounded file mutation within a repair candidate.
type RepairAction struct {
	ID   string       `json:"id"`
	File string       `json:"file"`
	Kind MutationKind `json:"kind"`

	// StartLine/EndLine bound a replace_lines mutation (1-indexed,
	// inclusive).
	StartLine int `json:"start_line,omitempty"`
	EndLine   int `json:"end_line,omitempty"`
	NewLines  []string `json:"new_lines,omitempty"`

	// OldContent/NewContent bound a replace_content mutation; OldContent
	// must appear in the file exactly once.
	OldContent string `json:"old_content,omitempty"`
	NewContent string `json:"new_content,omitempty"`
}

// RepairCandidate is one bounded, advisory fix proposal.
type RepairCandidate struct {
	ID      string         `json:"id"`
	Summary string         `json:"summary"`
	Actions []RepairAction `json:"actions"`

	// AllowedFiles is the exhaustive file whitelist this candidate may
	// touch; every action's File must be a member.
	AllowedFiles []string `json:"allowed_files"`

	NoNewFiles       bool `json:"no_new_files"`
	NoNewDependencies bool `json:"no_new_dependencies"`
	NoScopeExpansion bool `json:"no_scope_expansion"`
}

// DraftRepairPlan is the advisory, non-executable output of the Repair
// Plan Generator.
type DraftRepairPlan struct {
	FailureSummary          string             `json:"failure_summary"`
	VerificationResultHash  string             `json:"verification_result_hash"`
	BuildPromptHash         string             `json:"build_prompt_hash"`
	ExecutionPlanHash       string             `json:"execution_plan_hash"`
	CandidateRepairs        []RepairCandidate  `json:"candidate_repairs"`
}

// ApprovedRepairPlan is the human-selected candidate, stored as a separate,
// distinctly hashed artifact.
type ApprovedRepairPlan struct {
	DraftPlanHash    string       `json:"draft_plan_hash"`
	SelectedCandidate RepairCandidate `json:"selected_candidate"`
	ApprovedBy       string       `json:"approved_by"`
}

// RepairActionOutcome records the per-action result of a repair execution.
type RepairActionOutcome struct {
	ActionID string `json:"action_id"`
	File     string `json:"file"`
	Outcome  string `json:"outcome"` // "applied" | "skipped" | "failed"
	Reason   string `json:"reason,omitempty"`
}

// RepairExecutionStatus is the terminal status of one repair execution.
type RepairExecutionStatus string

const (
	RepairSuccess RepairExecutionStatus = "SUCCESS"
	RepairFailed  RepairExecutionStatus = "FAILED"
)

// RepairExecutionLog is the immutable record of one Repair Agent run. Its
// ExecutionHash covers the approved plan hash, the Status, and each
// ActionsExecuted entry's id, file and outcome in order; it excludes
// CreatedAt and every action's Reason text, so P7 is mechanically
// checkable from the hash alone.
type RepairExecutionLog struct {
	ApprovedPlanHash       string                 `json:"approved_plan_hash"`
	VerificationResultHash string                 `json:"verification_result_hash"`
	ActionsExecuted        []RepairActionOutcome  `json:"actions_executed"`
	FilesTouched           []string               `json:"files_touched"`
	Status                 RepairExecutionStatus  `json:"status"`
	ExecutionHash          string                 `json:"execution_hash"`
	CreatedAt              time.Time              `json:"created_at"`
}

// CompletionDecisionKind is one of the five outcomes the Completion
// Auditor's pure decision function may return.
type CompletionDecisionKind string

const (
	DecisionProceedToNextUnit CompletionDecisionKind = "proceed_to_next_unit"
	DecisionMarkCompleted     CompletionDecisionKind = "mark_completed"
	DecisionRetryWithRepair   CompletionDecisionKind = "retry_with_repair"
	DecisionEscalateToHuman   CompletionDecisionKind = "escalate_to_human"
	DecisionMarkFailed        CompletionDecisionKind = "mark_failed"
)

// MaxRepairAttempts bounds the retry_with_repair loop before the
// Completion Auditor must escalate to a human.
const MaxRepairAttempts = 3

// NonRepairableClass is a closed taxonomy entry: a verification failure
// matching one of these is never eligible for retry_with_repair,
// regardless of attempt count.
type NonRepairableClass string

const (
	ClassSecurityViolation      NonRepairableClass = "security_violation"
	ClassRulesetViolation       NonRepairableClass = "ruleset_violation"
	ClassArchitecturalConflict  NonRepairableClass = "architectural_conflict"
)

// CompletionDecision is the single artifact the Completion Auditor writes
// per invocation (P8): one decision, one event, no other mutation.
type CompletionDecision struct {
	RequestID              string                  `json:"request_id"`
	VerificationResultHash string                  `json:"verification_result_hash"`
	Decision               CompletionDecisionKind  `json:"decision"`
	Attempt                int                     `json:"attempt"`
	NonRepairableClass     NonRepairableClass      `json:"non_repairable_class,omitempty"`
	Reason                 string                  `json:"reason"`
}

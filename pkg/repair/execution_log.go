package repair

import (
	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
	"github.com/IlyasuSeidu/forge-sub004/pkg/hasher"
)

// hashableAction is the subset of RepairActionOutcome that enters the
// execution hash: action id, file, and outcome. The free-text Reason
// field is excluded so a cosmetic change to a failure message never
// changes the hash of an otherwise-identical execution.
type hashableAction struct {
	ActionID string `json:"action_id"`
	File     string `json:"file"`
	Outcome  string `json:"outcome"`
}

type hashableExecutionLog struct {
	ApprovedPlanHash string           `json:"approved_plan_hash"`
	Actions          []hashableAction `json:"actions_executed"`
	Status           string           `json:"status"`
}

// HashExecutionLog computes a RepairExecutionLog's ExecutionHash. Per the
// resolved canonicalisation rule (SPEC_FULL §9), the hash covers the
// approved plan hash, the status, and the ordered actions_executed list
// (id, file, outcome only); it excludes CreatedAt and the free-text skip/failure
// reason prose, so two executions that took the same actions in the same
// order hash identically regardless of wall-clock time or message text.
func HashExecutionLog(log *contracts.RepairExecutionLog) (string, error) {
	actions := make([]hashableAction, len(log.ActionsExecuted))
	for i, a := range log.ActionsExecuted {
		actions[i] = hashableAction{ActionID: a.ActionID, File: a.File, Outcome: a.Outcome}
	}
	_, hash, err := hasher.CanonicalizeStructured(hashableExecutionLog{
		ApprovedPlanHash: log.ApprovedPlanHash,
		Actions:          actions,
		Status:           string(log.Status),
	})
	return hash, err
}

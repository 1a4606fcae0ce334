// Package repair implements the Repair sub-loop (C7, spec.md §4.5): an
// advisory plan generator with no execution power, a human selection step,
// and a bounded executor that applies exactly the approved mutations in
// order and aborts on the first failure.
package repair

import (
	"fmt"

	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
)

// GenerateInput is everything the Plan Generator needs to assemble a
// Draft Repair Plan. Candidates are supplied pre-built (typically from an
// upstream LLM call the caller makes outside this package, since the
// Generator itself holds no execution power and makes no I/O of its own).
type GenerateInput struct {
	FailureSummary          string
	VerificationResultHash  string
	BuildPromptHash         string
	ExecutionPlanHash       string
	Candidates              []contracts.RepairCandidate
}

// GenerateDraftPlan validates that every candidate's actions stay within
// its own declared allowed_files and assembles the Draft Repair Plan.
// The Generator never touches a workspace; it is pure advisory output.
func GenerateDraftPlan(in GenerateInput) (*contracts.DraftRepairPlan, error) {
	if len(in.Candidates) == 0 {
		return nil, contracts.NewError(contracts.KindProtocol, "repair.GenerateDraftPlan",
			"at least one candidate repair is required")
	}
	for _, c := range in.Candidates {
		if err := validateCandidateBounds(c); err != nil {
			return nil, err
		}
	}
	return &contracts.DraftRepairPlan{
		FailureSummary:         in.FailureSummary,
		VerificationResultHash: in.VerificationResultHash,
		BuildPromptHash:        in.BuildPromptHash,
		ExecutionPlanHash:      in.ExecutionPlanHash,
		CandidateRepairs:       in.Candidates,
	}, nil
}

// validateCandidateBounds rejects a candidate whose actions reference a
// file outside its own allowed_files whitelist (I7, REPAIR-BOUND).
func validateCandidateBounds(c contracts.RepairCandidate) error {
	allowed := make(map[string]bool, len(c.AllowedFiles))
	for _, f := range c.AllowedFiles {
		allowed[f] = true
	}
	for _, a := range c.Actions {
		if !allowed[a.File] {
			return contracts.NewError(contracts.KindRepairBound, "repair.GenerateDraftPlan",
				fmt.Sprintf("candidate %q action %q targets %q, outside its own allowed_files", c.ID, a.ID, a.File))
		}
	}
	return nil
}

// Select turns a human's single candidate choice into the Approved Repair
// Plan, a separate, distinctly hashed artifact from the Draft (§4.5).
// draftPlanHash is the content_hash of the already-stored Draft Repair
// Plan artifact; it is not recomputed here.
func Select(draftPlanHash string, draft *contracts.DraftRepairPlan, candidateID, approvedBy string) (*contracts.ApprovedRepairPlan, error) {
	for _, c := range draft.CandidateRepairs {
		if c.ID == candidateID {
			return &contracts.ApprovedRepairPlan{
				DraftPlanHash:     draftPlanHash,
				SelectedCandidate: c,
				ApprovedBy:        approvedBy,
			}, nil
		}
	}
	return nil, contracts.NewError(contracts.KindProtocol, "repair.Select",
		fmt.Sprintf("candidate %q not found in draft plan", candidateID))
}

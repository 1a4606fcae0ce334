package repair

import (
	"context"
	"fmt"
	"strings"

	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
	"github.com/IlyasuSeidu/forge-sub004/pkg/hasher"
	"github.com/IlyasuSeidu/forge-sub004/pkg/workspace"
)

// Agent is the Repair sub-loop's executor. It consumes only the Approved
// Repair Plan and a workspace.FS; it never reads the Draft Plan, the
// Ledger, or any other artifact. Execution power is scoped to exactly the
// selected candidate's declared file list.
type Agent struct {
	fs workspace.FS
}

// NewAgent constructs a Repair Agent over a workspace filesystem.
func NewAgent(fs workspace.FS) *Agent {
	return &Agent{fs: fs}
}

// Execute re-hashes plan and compares it against approvedPlanHash -- the
// content_hash the Ledger recorded when the plan was approved -- before
// touching anything. A mismatch means the plan was tampered with after
// approval and execution never begins (INTEGRITY, no file mutated).
// Actions then run in declared order; the first failure aborts execution
// immediately, and every action after it is recorded as skipped.
func (a *Agent) Execute(ctx context.Context, approvedPlanHash string, plan *contracts.ApprovedRepairPlan, verificationResultHash string) (*contracts.RepairExecutionLog, error) {
	_, recomputed, err := hasher.CanonicalizeStructured(plan)
	if err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "repair.Agent.Execute", "hash approved plan", err)
	}
	if recomputed != approvedPlanHash {
		return nil, contracts.NewError(contracts.KindIntegrity, "repair.Agent.Execute",
			"approved repair plan content_hash mismatch; refusing to execute")
	}

	cand := plan.SelectedCandidate
	allowed := make(map[string]bool, len(cand.AllowedFiles))
	for _, f := range cand.AllowedFiles {
		allowed[f] = true
	}

	outcomes := make([]contracts.RepairActionOutcome, 0, len(cand.Actions))
	var touched []string
	aborted := false

	for _, action := range cand.Actions {
		if aborted {
			outcomes = append(outcomes, contracts.RepairActionOutcome{
				ActionID: action.ID, File: action.File, Outcome: "skipped",
			})
			continue
		}

		if outcome, err := a.applyOne(ctx, action, allowed, cand.NoNewFiles); err != nil {
			outcomes = append(outcomes, contracts.RepairActionOutcome{
				ActionID: action.ID, File: action.File, Outcome: "failed", Reason: err.Error(),
			})
			aborted = true
			continue
		} else {
			outcomes = append(outcomes, outcome)
			touched = append(touched, action.File)
		}
	}

	status := contracts.RepairSuccess
	if aborted {
		status = contracts.RepairFailed
	}

	log := &contracts.RepairExecutionLog{
		ApprovedPlanHash:       approvedPlanHash,
		VerificationResultHash: verificationResultHash,
		ActionsExecuted:        outcomes,
		FilesTouched:           touched,
		Status:                 status,
	}
	hash, err := HashExecutionLog(log)
	if err != nil {
		return nil, contracts.WrapError(contracts.KindDependency, "repair.Agent.Execute", "hash execution log", err)
	}
	log.ExecutionHash = hash
	return log, nil
}

// applyOne checks the action's file-scope and structural/content
// preconditions, then applies exactly one mutation. It returns an error
// describing the first violated precondition without ever writing.
func (a *Agent) applyOne(ctx context.Context, action contracts.RepairAction, allowed map[string]bool, noNewFiles bool) (contracts.RepairActionOutcome, error) {
	if !allowed[action.File] {
		return contracts.RepairActionOutcome{}, fmt.Errorf("file %q is not in the approved plan's allowed_files", action.File)
	}

	exists, err := a.fs.Exists(ctx, action.File)
	if err != nil {
		return contracts.RepairActionOutcome{}, fmt.Errorf("check existence of %q: %w", action.File, err)
	}
	if noNewFiles && !exists {
		return contracts.RepairActionOutcome{}, fmt.Errorf("file %q does not exist and no_new_files is set", action.File)
	}

	switch action.Kind {
	case contracts.MutationReplaceLines:
		if !exists {
			return contracts.RepairActionOutcome{}, fmt.Errorf("replace_lines on nonexistent file %q", action.File)
		}
		content, err := a.fs.Read(ctx, action.File)
		if err != nil {
			return contracts.RepairActionOutcome{}, fmt.Errorf("read %q: %w", action.File, err)
		}
		lines := strings.Split(string(content), "\n")
		if action.StartLine < 1 || action.EndLine < action.StartLine || action.EndLine > len(lines) {
			return contracts.RepairActionOutcome{}, fmt.Errorf("line range [%d,%d] out of bounds for %q (%d lines)",
				action.StartLine, action.EndLine, action.File, len(lines))
		}
		updated := make([]string, 0, len(lines)-(action.EndLine-action.StartLine+1)+len(action.NewLines))
		updated = append(updated, lines[:action.StartLine-1]...)
		updated = append(updated, action.NewLines...)
		updated = append(updated, lines[action.EndLine:]...)
		if err := a.fs.Write(ctx, action.File, []byte(strings.Join(updated, "\n"))); err != nil {
			return contracts.RepairActionOutcome{}, fmt.Errorf("write %q: %w", action.File, err)
		}

	case contracts.MutationReplaceContent:
		var content []byte
		if exists {
			content, err = a.fs.Read(ctx, action.File)
			if err != nil {
				return contracts.RepairActionOutcome{}, fmt.Errorf("read %q: %w", action.File, err)
			}
		}
		count := strings.Count(string(content), action.OldContent)
		if exists && count != 1 {
			return contracts.RepairActionOutcome{}, fmt.Errorf("old_content occurs %d times in %q, expected exactly 1", count, action.File)
		}
		var newContent string
		if exists {
			newContent = strings.Replace(string(content), action.OldContent, action.NewContent, 1)
		} else {
			newContent = action.NewContent
		}
		if err := a.fs.Write(ctx, action.File, []byte(newContent)); err != nil {
			return contracts.RepairActionOutcome{}, fmt.Errorf("write %q: %w", action.File, err)
		}

	default:
		return contracts.RepairActionOutcome{}, fmt.Errorf("unknown mutation kind %q", action.Kind)
	}

	return contracts.RepairActionOutcome{ActionID: action.ID, File: action.File, Outcome: "applied"}, nil
}

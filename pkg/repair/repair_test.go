package repair_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
	"github.com/IlyasuSeidu/forge-sub004/pkg/hasher"
	"github.com/IlyasuSeidu/forge-sub004/pkg/repair"
)

// memFS is a minimal in-memory workspace.FS fixture for tests. It does no
// path checking; the tests here use only in-root paths.
type memFS struct {
	files map[string]string
}

func newMemFS(seed map[string]string) *memFS {
	files := make(map[string]string, len(seed))
	for k, v := range seed {
		files[k] = v
	}
	return &memFS{files: files}
}

func (m *memFS) Exists(ctx context.Context, path string) (bool, error) {
	_, ok := m.files[path]
	return ok, nil
}

func (m *memFS) Read(ctx context.Context, path string) ([]byte, error) {
	content, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", path)
	}
	return []byte(content), nil
}

func (m *memFS) Write(ctx context.Context, path string, content []byte) error {
	m.files[path] = string(content)
	return nil
}

func TestGenerateDraftPlan_RejectsOutOfScopeAction(t *testing.T) {
	_, err := repair.GenerateDraftPlan(repair.GenerateInput{
		FailureSummary: "type error in handler",
		Candidates: []contracts.RepairCandidate{
			{
				ID:           "c1",
				AllowedFiles: []string{"src/a.ts"},
				Actions: []contracts.RepairAction{
					{ID: "a1", File: "src/b.ts", Kind: contracts.MutationReplaceContent, OldContent: "x", NewContent: "y"},
				},
			},
		},
	})
	if !contracts.IsKind(err, contracts.KindRepairBound) {
		t.Fatalf("expected REPAIR_BOUND error, got %v", err)
	}
}

func TestSelect_UnknownCandidateFailsClosed(t *testing.T) {
	draft := &contracts.DraftRepairPlan{
		CandidateRepairs: []contracts.RepairCandidate{{ID: "c1", AllowedFiles: []string{"a.ts"}}},
	}
	_, err := repair.Select("draftHash", draft, "does-not-exist", "human-1")
	if !contracts.IsKind(err, contracts.KindProtocol) {
		t.Fatalf("expected PROTOCOL error, got %v", err)
	}
}

func buildApprovedPlan(t *testing.T) (*contracts.ApprovedRepairPlan, string) {
	t.Helper()
	candidate := contracts.RepairCandidate{
		ID:           "c1",
		Summary:      "fix off-by-one",
		AllowedFiles: []string{"src/a.ts"},
		Actions: []contracts.RepairAction{
			{ID: "a1", File: "src/a.ts", Kind: contracts.MutationReplaceContent, OldContent: "return n", NewContent: "return n + 1"},
		},
	}
	plan := &contracts.ApprovedRepairPlan{
		DraftPlanHash:     "draft-hash-abc",
		SelectedCandidate: candidate,
		ApprovedBy:        "human-1",
	}
	_, hash, err := hasher.CanonicalizeStructured(plan)
	if err != nil {
		t.Fatalf("hash plan: %v", err)
	}
	return plan, hash
}

func TestAgent_Execute_AppliesReplaceContentInOrder(t *testing.T) {
	plan, planHash := buildApprovedPlan(t)
	fs := newMemFS(map[string]string{"src/a.ts": "function f(n) { return n }"})
	agent := repair.NewAgent(fs)

	ctx := context.Background()
	log, err := agent.Execute(ctx, planHash, plan, "vr-hash")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if log.Status != contracts.RepairSuccess {
		t.Fatalf("expected SUCCESS, got %s", log.Status)
	}
	if len(log.ActionsExecuted) != 1 || log.ActionsExecuted[0].Outcome != "applied" {
		t.Fatalf("expected one applied action, got %+v", log.ActionsExecuted)
	}
	got, err := fs.Read(ctx, "src/a.ts")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "function f(n) { return n + 1 }" {
		t.Fatalf("unexpected file content: %s", got)
	}
}

func TestAgent_Execute_AbortsOnFirstFailureAndSkipsRest(t *testing.T) {
	candidate := contracts.RepairCandidate{
		ID:           "c1",
		AllowedFiles: []string{"src/a.ts", "src/b.ts"},
		Actions: []contracts.RepairAction{
			{ID: "a1", File: "src/a.ts", Kind: contracts.MutationReplaceContent, OldContent: "MISSING", NewContent: "x"},
			{ID: "a2", File: "src/b.ts", Kind: contracts.MutationReplaceContent, OldContent: "foo", NewContent: "bar"},
		},
	}
	plan := &contracts.ApprovedRepairPlan{DraftPlanHash: "d", SelectedCandidate: candidate, ApprovedBy: "human-1"}
	_, planHash, err := hasher.CanonicalizeStructured(plan)
	if err != nil {
		t.Fatalf("hash plan: %v", err)
	}

	fs := newMemFS(map[string]string{"src/a.ts": "unrelated content", "src/b.ts": "foo bar"})
	agent := repair.NewAgent(fs)

	log, err := agent.Execute(context.Background(), planHash, plan, "vr-hash")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if log.Status != contracts.RepairFailed {
		t.Fatalf("expected FAILED, got %s", log.Status)
	}
	if len(log.ActionsExecuted) != 2 {
		t.Fatalf("expected both actions recorded, got %d", len(log.ActionsExecuted))
	}
	if log.ActionsExecuted[0].Outcome != "failed" {
		t.Fatalf("expected first action to fail, got %s", log.ActionsExecuted[0].Outcome)
	}
	if log.ActionsExecuted[1].Outcome != "skipped" {
		t.Fatalf("expected second action to be skipped, got %s", log.ActionsExecuted[1].Outcome)
	}
	content, _ := fs.Read(context.Background(), "src/b.ts")
	if string(content) != "foo bar" {
		t.Fatal("second file must not have been mutated after abort")
	}
}

func TestAgent_Execute_RejectsActionOutsideAllowedFiles(t *testing.T) {
	// Constructed directly rather than through GenerateDraftPlan, to model
	// a plan that was somehow approved despite an action outside its own
	// declared allowed_files. The Agent must not trust that upstream
	// validation ran; it re-checks file scope for every action itself.
	candidate := contracts.RepairCandidate{
		ID:           "c1",
		AllowedFiles: []string{"src/a.ts"},
		Actions: []contracts.RepairAction{
			{ID: "a1", File: "src/outside.ts", Kind: contracts.MutationReplaceContent, OldContent: "x", NewContent: "y"},
		},
	}
	plan := &contracts.ApprovedRepairPlan{DraftPlanHash: "d", SelectedCandidate: candidate, ApprovedBy: "human-1"}
	_, planHash, err := hasher.CanonicalizeStructured(plan)
	if err != nil {
		t.Fatalf("hash plan: %v", err)
	}

	fs := newMemFS(map[string]string{"src/outside.ts": "z"})
	agent := repair.NewAgent(fs)
	log, err := agent.Execute(context.Background(), planHash, plan, "vr-hash")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if log.Status != contracts.RepairFailed {
		t.Fatalf("expected FAILED, got %s", log.Status)
	}
	if log.ActionsExecuted[0].Outcome != "failed" {
		t.Fatalf("expected the out-of-scope action to fail, got %+v", log.ActionsExecuted[0])
	}
	content, _ := fs.Read(context.Background(), "src/outside.ts")
	if string(content) != "z" {
		t.Fatal("out-of-scope file must not have been mutated")
	}
}

func TestAgent_Execute_RejectsLineRangeOutOfBounds(t *testing.T) {
	candidate := contracts.RepairCandidate{
		ID:           "c1",
		AllowedFiles: []string{"src/a.ts"},
		Actions: []contracts.RepairAction{
			{ID: "a1", File: "src/a.ts", Kind: contracts.MutationReplaceLines, StartLine: 10, EndLine: 12, NewLines: []string{"x"}},
		},
	}
	plan := &contracts.ApprovedRepairPlan{DraftPlanHash: "d", SelectedCandidate: candidate, ApprovedBy: "human-1"}
	_, planHash, err := hasher.CanonicalizeStructured(plan)
	if err != nil {
		t.Fatalf("hash plan: %v", err)
	}

	fs := newMemFS(map[string]string{"src/a.ts": "line one\nline two"})
	agent := repair.NewAgent(fs)
	log, err := agent.Execute(context.Background(), planHash, plan, "vr-hash")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if log.Status != contracts.RepairFailed || log.ActionsExecuted[0].Outcome != "failed" {
		t.Fatalf("expected the out-of-bounds action to fail, got %+v", log.ActionsExecuted)
	}
}

func TestAgent_Execute_PostApprovalTamperingDetectedBeforeAnyMutation(t *testing.T) {
	plan, planHash := buildApprovedPlan(t)

	fs := newMemFS(map[string]string{"src/a.ts": "function f(n) { return n }"})
	agent := repair.NewAgent(fs)

	// Inject an additional action targeting a file outside the originally
	// hashed plan, simulating tampering with the stored artifact's in-memory
	// copy after the Ledger recorded its content_hash.
	tampered := *plan
	tampered.SelectedCandidate.Actions = append(tampered.SelectedCandidate.Actions,
		contracts.RepairAction{ID: "a2", File: "src/b.ts", Kind: contracts.MutationReplaceContent, OldContent: "z", NewContent: "w"})

	_, err := agent.Execute(context.Background(), planHash, &tampered, "vr-hash")
	if !contracts.IsKind(err, contracts.KindIntegrity) {
		t.Fatalf("expected INTEGRITY error for the tampered plan, got %v", err)
	}
	content, _ := fs.Read(context.Background(), "src/a.ts")
	if string(content) != "function f(n) { return n }" {
		t.Fatal("no file should have been mutated when the approved-plan hash check fails")
	}
}

func TestHashExecutionLog_ExcludesFreeTextReason(t *testing.T) {
	base := &contracts.RepairExecutionLog{
		ApprovedPlanHash: "p",
		ActionsExecuted: []contracts.RepairActionOutcome{
			{ActionID: "a1", File: "f.ts", Outcome: "failed", Reason: "reason A"},
		},
		Status: contracts.RepairFailed,
	}
	variant := &contracts.RepairExecutionLog{
		ApprovedPlanHash: "p",
		ActionsExecuted: []contracts.RepairActionOutcome{
			{ActionID: "a1", File: "f.ts", Outcome: "failed", Reason: "a completely different reason B"},
		},
		Status: contracts.RepairFailed,
	}
	h1, err := repair.HashExecutionLog(base)
	if err != nil {
		t.Fatalf("hash base: %v", err)
	}
	h2, err := repair.HashExecutionLog(variant)
	if err != nil {
		t.Fatalf("hash variant: %v", err)
	}
	if h1 != h2 {
		t.Fatal("expected execution hash to be stable across free-text reason changes")
	}
}

package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/IlyasuSeidu/forge-sub004/pkg/agenthost"
	"github.com/IlyasuSeidu/forge-sub004/pkg/approval"
	"github.com/IlyasuSeidu/forge-sub004/pkg/auth"
	"github.com/IlyasuSeidu/forge-sub004/pkg/completion"
	"github.com/IlyasuSeidu/forge-sub004/pkg/conductor"
	"github.com/IlyasuSeidu/forge-sub004/pkg/config"
	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
	"github.com/IlyasuSeidu/forge-sub004/pkg/crypto"
	"github.com/IlyasuSeidu/forge-sub004/pkg/envelope"
	"github.com/IlyasuSeidu/forge-sub004/pkg/eventlog"
	"github.com/IlyasuSeidu/forge-sub004/pkg/hasher"
	"github.com/IlyasuSeidu/forge-sub004/pkg/ledger"
	"github.com/IlyasuSeidu/forge-sub004/pkg/llmprovider"
	"github.com/IlyasuSeidu/forge-sub004/pkg/observability"
	"github.com/IlyasuSeidu/forge-sub004/pkg/protocolver"
	"github.com/IlyasuSeidu/forge-sub004/pkg/repair"
)

// server holds every collaborator an HTTP handler needs. No handler talks
// to the Conductor, Ledger, or Envelope Runtime directly except through
// the Agent Host / Completion Auditor / Repair Agent, matching the rule
// that every runtime-exposed action dispatches through the Envelope.
type server struct {
	cfg          *config.Config
	logger       *slog.Logger
	obs          *observability.Provider
	machine      *conductor.Machine
	ledger       ledger.Ledger
	events       eventlog.Log
	registry     *envelope.Registry
	runtime      *envelope.Runtime
	host         *agenthost.Host
	auditor      *completion.Auditor
	repairAgent  *repair.Agent
	provider     llmprovider.Provider
	issuer       *approval.Issuer
	repairSigner *crypto.Ed25519Signer
}

func (s *server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /v1/requests", s.handleCreateRequest)
	mux.HandleFunc("GET /v1/requests/{id}/state", s.handleGetState)
	mux.HandleFunc("GET /v1/requests/{id}/next-action", s.handleNextAction)
	mux.HandleFunc("GET /v1/requests/{id}/events", s.handleGetEvents)
	mux.HandleFunc("GET /v1/requests/{id}/artifacts/{type}", s.handleGetArtifact)

	mux.HandleFunc("POST /v1/requests/{id}/agents/{agent}/run", s.handleRunAgent)
	mux.HandleFunc("POST /v1/requests/{id}/agents/{agent}/submit", s.handleSubmitInput)
	mux.HandleFunc("POST /v1/requests/{id}/artifacts/{artifactID}/approve", s.handleApprove)
	mux.HandleFunc("POST /v1/requests/{id}/artifacts/{artifactID}/reject", s.handleReject)

	mux.HandleFunc("POST /v1/requests/{id}/completion/audit", s.handleCompletionAudit)

	mux.HandleFunc("POST /v1/requests/{id}/repair/plan", s.handleRepairPlan)
	mux.HandleFunc("POST /v1/requests/{id}/repair/select", s.handleRepairSelect)
	mux.HandleFunc("POST /v1/requests/{id}/repair/execute", s.handleRepairExecute)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PromptText string `json:"prompt_text"`
		ProjectID  string `json:"project_id"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	requestID := uuid.NewString()
	ctx, done := s.obs.TrackConductorTransition(r.Context(), requestID, "", contracts.PhaseIdea)
	state, err := s.machine.Initialize(ctx, requestID)
	done(err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":    requestID,
		"state": state,
	})
}

func (s *server) handleGetState(w http.ResponseWriter, r *http.Request) {
	state, err := s.machine.State(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *server) handleNextAction(w http.ResponseWriter, r *http.Request) {
	action, err := s.machine.NextAction(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

func (s *server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	since := uint64(0)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid since"})
			return
		}
		since = parsed
	}
	events, err := s.events.Since(r.Context(), r.PathValue("id"), since)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	art, err := s.ledger.CurrentApproved(r.Context(), r.PathValue("id"), contracts.ArtifactType(r.PathValue("type")))
	if err != nil {
		writeError(w, err)
		return
	}
	if art == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no approved artifact of this type"})
		return
	}
	writeJSON(w, http.StatusOK, art)
}

// handleRunAgent is start_agent: it resolves the named envelope and runs
// its Body through the Agent Host's ten-step template.
func (s *server) handleRunAgent(w http.ResponseWriter, r *http.Request) {
	agentName := r.PathValue("agent")
	binding, err := s.runtime.Bind(agentName)
	if err != nil {
		writeError(w, err)
		return
	}
	env := binding.Envelope()

	requestID := r.PathValue("id")
	ctx, done := s.obs.TrackAgentRun(r.Context(), requestID, agentName)
	art, err := s.host.Run(ctx, requestID, agentName, agentBody(s.provider, env), "")
	done(err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, art)
}

// handleSubmitInput is submit_input: a human directly authors the content
// an envelope would otherwise have an LLM produce (e.g. answering the
// clarifying questions an intent agent would normally draft from a raw
// prompt). It runs the same lock/write/pause sequence as Agent Host Run,
// minus the call_llm step.
func (s *server) handleSubmitInput(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")
	agentName := r.PathValue("agent")
	var body struct {
		Content string `json:"content"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	binding, err := s.runtime.Bind(agentName)
	if err != nil {
		writeError(w, err)
		return
	}
	env := binding.Envelope()

	state, err := s.machine.State(r.Context(), requestID)
	if err != nil {
		writeError(w, err)
		return
	}
	if state.Phase != env.EntryPhase {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "request is not in this envelope's entry phase"})
		return
	}

	if err := s.machine.Lock(r.Context(), requestID); err != nil {
		writeError(w, err)
		return
	}
	released := false
	defer func() {
		if !released {
			_ = s.machine.Unlock(r.Context(), requestID)
		}
	}()

	content, _ := hasher.CanonicalizeText(body.Content)
	requestHash, err := hasher.RequestHash(agentName, map[string]string{"human_input": hasher.Hash(content)}, protocolver.Current)
	if err != nil {
		writeError(w, err)
		return
	}
	art, err := s.ledger.PutDraft(r.Context(), requestID, env.Produces, content, nil, agentName, protocolver.Current, requestHash)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.events.Append(r.Context(), requestID, contracts.EventType(contracts.GeneratedEvent(env.Produces)),
		string(env.Produces), "submitted directly by a human operator"); err != nil {
		writeError(w, err)
		return
	}
	if err := s.machine.PauseForHuman(r.Context(), requestID, "awaiting approval of "+string(env.Produces)); err != nil {
		writeError(w, err)
		return
	}
	released = true

	writeJSON(w, http.StatusAccepted, art)
}

func (s *server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Approver string `json:"approver"`
	}
	_ = decodeJSON(w, r, &body)
	if body.Approver == "" {
		body.Approver = "unknown"
	}
	art, err := s.host.Approve(r.Context(), r.PathValue("id"), r.PathValue("artifactID"), body.Approver)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.issuer.Issue(art.ContentHash, body.Approver, auth.CorrelationID(r.Context())); err != nil {
		s.logger.Warn("approval receipt issuance failed", "error", err)
	}
	writeJSON(w, http.StatusOK, art)
}

func (s *server) handleReject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Feedback string `json:"feedback"`
	}
	_ = decodeJSON(w, r, &body)
	art, err := s.host.Reject(r.Context(), r.PathValue("id"), r.PathValue("artifactID"), body.Feedback)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, art)
}

func (s *server) handleCompletionAudit(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")
	var body struct {
		VerificationPassed bool   `json:"verification_passed"`
		UnitsRemaining     int    `json:"units_remaining"`
		Attempt            int    `json:"attempt"`
		ErrorTag           string `json:"error_tag"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	report, err := s.ledger.CurrentApproved(r.Context(), requestID, contracts.TypeVerificationReport)
	if err != nil {
		writeError(w, err)
		return
	}
	verificationHash := ""
	if report != nil {
		verificationHash = report.ContentHash
	}

	_, decision, err := s.auditor.Audit(r.Context(), requestID, verificationHash, completion.DecisionInput{
		VerificationPassed: body.VerificationPassed,
		UnitsRemaining:     body.UnitsRemaining,
		Attempt:            body.Attempt,
		ErrorTag:           body.ErrorTag,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if err := completion.ApplyDecision(r.Context(), s.machine, requestID, decision); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"decision": string(decision)})
}

func (s *server) handleRepairPlan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FailureSummary string                      `json:"failure_summary"`
		Candidates     []contracts.RepairCandidate `json:"candidates"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	draft, err := repair.GenerateDraftPlan(repair.GenerateInput{
		FailureSummary: body.FailureSummary,
		Candidates:     body.Candidates,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, draft)
}

func (s *server) handleRepairSelect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DraftPlanHash string                     `json:"draft_plan_hash"`
		Draft         *contracts.DraftRepairPlan `json:"draft"`
		CandidateID   string                     `json:"candidate_id"`
		ApprovedBy    string                     `json:"approved_by"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	plan, err := repair.Select(body.DraftPlanHash, body.Draft, body.CandidateID, body.ApprovedBy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (s *server) handleRepairExecute(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ApprovedPlanHash       string                        `json:"approved_plan_hash"`
		Plan                   *contracts.ApprovedRepairPlan `json:"plan"`
		VerificationResultHash string                        `json:"verification_result_hash"`
		Attempt                int                           `json:"attempt"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	ctx, done := s.obs.TrackRepairAttempt(r.Context(), r.PathValue("id"), body.Attempt)
	execLog, err := s.repairAgent.Execute(ctx, body.ApprovedPlanHash, body.Plan, body.VerificationResultHash)
	done(err)
	if err != nil {
		writeError(w, err)
		return
	}
	signature, err := s.repairSigner.Sign([]byte(execLog.ExecutionHash))
	if err != nil {
		s.logger.Warn("repair execution log signing failed", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"log":       execLog,
		"signature": signature,
		"signed_by": s.repairSigner.KeyID,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		return true
	}
	defer func() { _ = r.Body.Close() }()
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case contracts.IsKind(err, contracts.KindProtocol), contracts.IsKind(err, contracts.KindContract):
		status = http.StatusConflict
	case contracts.IsKind(err, contracts.KindIntegrity):
		status = http.StatusUnprocessableEntity
	case contracts.IsKind(err, contracts.KindRepairBound):
		status = http.StatusForbidden
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

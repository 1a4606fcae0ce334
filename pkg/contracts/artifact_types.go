package contracts

// ArtifactType is a wire-stable, lowercase snake_case artifact type
// identifier. New types are additive only; renaming one is a breaking
// protocol version bump (see pkg/protocolver).
type ArtifactType string

const (
	TypeIntentAnswers       ArtifactType = "intent_answers"
	TypeBasePrompt          ArtifactType = "base_prompt"
	TypeMasterPlan          ArtifactType = "master_plan"
	TypeImplementationPlan  ArtifactType = "implementation_plan"
	TypeScreenIndex         ArtifactType = "screen_index"
	TypeUserRoleTable       ArtifactType = "user_role_table"
	TypeUserJourney         ArtifactType = "user_journey"
	TypeVisualExpansion     ArtifactType = "visual_expansion"
	TypeVisualNormalization ArtifactType = "visual_normalization"
	TypeVisualComposition   ArtifactType = "visual_composition"
	TypeVisualCodeRendering ArtifactType = "visual_code_rendering"
	TypeScreenMockup        ArtifactType = "screen_mockup"
	TypeProjectRules        ArtifactType = "project_rules"
	TypeBuildPrompt         ArtifactType = "build_prompt"
	TypeExecutionPlan       ArtifactType = "execution_plan"
	TypeExecutionLog        ArtifactType = "execution_log"
	TypeVerificationResult  ArtifactType = "verification_result"
	TypeVerificationReport  ArtifactType = "verification_report"
	TypeRepairPlanDraft     ArtifactType = "repair_plan_draft"
	TypeRepairPlanApproved  ArtifactType = "repair_plan_approved"
	TypeRepairExecutionLog  ArtifactType = "repair_execution_log"
	TypeCompletionDecision  ArtifactType = "completion_decision"
)

// ArtifactStatus is the lifecycle state of a single Artifact record.
type ArtifactStatus string

const (
	StatusDraft            ArtifactStatus = "draft"
	StatusAwaitingApproval ArtifactStatus = "awaiting_approval"
	StatusApproved         ArtifactStatus = "approved"
	StatusRejected         ArtifactStatus = "rejected"
)

// ExitRequiredTypes maps a phase to the artifact types that must be
// `approved` before the Conductor may advance past it (I3).
var ExitRequiredTypes = map[Phase][]ArtifactType{
	PhaseIdea:              {TypeIntentAnswers},
	PhaseBasePromptReady:   {TypeBasePrompt},
	PhasePlanning:          {TypeMasterPlan, TypeImplementationPlan},
	PhaseScreensDefined:    {TypeScreenIndex},
	PhaseFlowsDefined:      {TypeUserRoleTable, TypeUserJourney},
	PhaseDesignsReady:      {TypeVisualComposition, TypeVisualCodeRendering},
	PhaseRulesLocked:       {TypeProjectRules},
	PhaseBuildPromptsReady: {TypeBuildPrompt},
	PhaseBuilding:          {TypeExecutionPlan, TypeExecutionLog},
	PhaseVerifying:         {TypeVerificationResult, TypeVerificationReport},
}

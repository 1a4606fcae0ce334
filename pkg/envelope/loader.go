package envelope

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
)

// yamlEnvelope mirrors contracts.Envelope's shape for YAML decoding. It
// exists separately so the wire format (snake_case keys chosen for the
// definition file) stays decoupled from the Go struct's json tags.
type yamlEnvelope struct {
	Name             string   `yaml:"name"`
	Authority        string   `yaml:"authority"`
	AllowedActions   []string `yaml:"allowed_actions"`
	ForbiddenActions []string `yaml:"forbidden_actions"`
	RequiredInputs   []struct {
		Role string `yaml:"role"`
		Type string `yaml:"type"`
	} `yaml:"required_inputs"`
	Produces   string `yaml:"produces"`
	EntryPhase string `yaml:"entry_phase"`
	ExitEffecting bool `yaml:"exit_effecting"`
	Scope      struct {
		ClosedVocabulary  []string `yaml:"closed_vocabulary"`
		ForbiddenKeywords []string `yaml:"forbidden_keywords"`
		MaxDensity        int      `yaml:"max_density"`
		FileWhitelist     []string `yaml:"file_whitelist"`
		Deterministic     bool     `yaml:"deterministic"`
		MaxTemperature    float64  `yaml:"max_temperature"`
	} `yaml:"scope"`
}

// LoadRegistryFromYAML parses a YAML document of the form `envelopes: [...]`
// and registers every entry into registry. This is the startup-time path
// the Registry's own doc comment describes: envelopes are data, loaded
// once from a definition file, never hardcoded as Go constants the
// runtime can't audit or hot-reload.
func LoadRegistryFromYAML(registry *Registry, doc []byte) error {
	var parsed struct {
		Envelopes []yamlEnvelope `yaml:"envelopes"`
	}
	if err := yaml.Unmarshal(doc, &parsed); err != nil {
		return contracts.WrapError(contracts.KindProtocol, "envelope.LoadRegistryFromYAML", "parse envelope definitions", err)
	}
	for _, y := range parsed.Envelopes {
		env, err := y.toEnvelope()
		if err != nil {
			return err
		}
		registry.Register(env)
	}
	return nil
}

func (y yamlEnvelope) toEnvelope() (*contracts.Envelope, error) {
	if y.Name == "" {
		return nil, contracts.NewError(contracts.KindProtocol, "envelope.LoadRegistryFromYAML", "envelope entry missing name")
	}
	required := make([]contracts.RequiredInput, 0, len(y.RequiredInputs))
	for _, r := range y.RequiredInputs {
		required = append(required, contracts.RequiredInput{Role: r.Role, Type: contracts.ArtifactType(r.Type)})
	}
	return &contracts.Envelope{
		Name:             y.Name,
		Authority:        contracts.Authority(y.Authority),
		AllowedActions:   toActions(y.AllowedActions),
		ForbiddenActions: toActions(y.ForbiddenActions),
		RequiredInputs:   required,
		Produces:         contracts.ArtifactType(y.Produces),
		EntryPhase:       contracts.Phase(y.EntryPhase),
		ExitEffecting:    y.ExitEffecting,
		Scope: contracts.Scope{
			ClosedVocabulary:  y.Scope.ClosedVocabulary,
			ForbiddenKeywords: y.Scope.ForbiddenKeywords,
			MaxDensity:        y.Scope.MaxDensity,
			FileWhitelist:     y.Scope.FileWhitelist,
			Deterministic:     y.Scope.Deterministic,
			MaxTemperature:    y.Scope.MaxTemperature,
		},
	}, nil
}

func toActions(raw []string) []contracts.Action {
	out := make([]contracts.Action, len(raw))
	for i, a := range raw {
		out[i] = contracts.Action(a)
	}
	return out
}

// ValidateAgainstPhases checks that every registered envelope's entry_phase
// is one the Conductor actually knows about, surfacing a misconfigured
// definition file at startup instead of at first invocation. The produces
// type is not checked.
func (r *Registry) ValidateAgainstPhases() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, env := range r.byName {
		found := false
		for _, p := range append([]contracts.Phase{}, allKnownPhases()...) {
			if env.EntryPhase == p {
				found = true
				break
			}
		}
		if !found {
			return contracts.NewError(contracts.KindProtocol, "envelope.ValidateAgainstPhases",
				fmt.Sprintf("envelope %q declares unknown entry_phase %q", name, env.EntryPhase))
		}
	}
	return nil
}

func allKnownPhases() []contracts.Phase {
	return []contracts.Phase{
		contracts.PhaseIdea, contracts.PhaseBasePromptReady, contracts.PhasePlanning,
		contracts.PhaseScreensDefined, contracts.PhaseFlowsDefined, contracts.PhaseDesignsReady,
		contracts.PhaseRulesLocked, contracts.PhaseBuildPromptsReady, contracts.PhaseBuilding,
		contracts.PhaseVerifying, contracts.PhaseVerificationFailed,
	}
}

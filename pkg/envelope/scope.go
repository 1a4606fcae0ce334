package envelope

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
)

// ScopeEvaluator evaluates an envelope's Scope rules against an agent's
// parsed output: forbidden keywords, closed vocabularies, and density
// caps. Forbidden-keyword checks are compiled CEL programs, cached by
// expression; the closed-vocabulary and density checks are plain Go.
type ScopeEvaluator struct {
	env      *cel.Env
	mu       sync.Mutex
	prgCache map[string]cel.Program
}

// NewScopeEvaluator builds a CEL environment over a single dynamic
// "output" variable, the parsed agent output bundle.
func NewScopeEvaluator() *ScopeEvaluator {
	celEnv, err := cel.NewEnv(
		cel.Variable("output", cel.DynType),
	)
	if err != nil {
		// The environment has no user input at construction time; a
		// failure here means the CEL declarations themselves are broken.
		panic(fmt.Sprintf("envelope: cel environment: %v", err))
	}
	return &ScopeEvaluator{env: celEnv, prgCache: make(map[string]cel.Program)}
}

func (s *ScopeEvaluator) program(expr string) (cel.Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prg, ok := s.prgCache[expr]; ok {
		return prg, nil
	}
	ast, issues := s.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := s.env.Program(ast)
	if err != nil {
		return nil, err
	}
	s.prgCache[expr] = prg
	return prg, nil
}

// Evaluate checks the forbidden-keyword and closed-vocabulary rules of
// env.Scope against the parsed output. Closed-vocabulary violations are a
// CANONICALIZATION FAILURE; forbidden keywords and density overflows are
// SCOPE VIOLATIONs. Both are surfaced as CoreError{Kind: CONSTITUTIONAL}.
func (s *ScopeEvaluator) Evaluate(env *contracts.Envelope, output map[string]interface{}) error {
	flat := flattenStrings(output)

	for _, kw := range env.Scope.ForbiddenKeywords {
		expr := fmt.Sprintf(`output.contains(%q)`, kw)
		prg, err := s.program(expr)
		if err != nil {
			return contracts.WrapError(contracts.KindConstitutional, "envelope.Evaluate",
				"failed to compile forbidden-keyword rule", err)
		}
		out, _, err := prg.Eval(map[string]interface{}{"output": flat})
		if err == nil && out.Value() == true {
			return contracts.NewError(contracts.KindConstitutional, "envelope.Evaluate",
				fmt.Sprintf("SCOPE VIOLATION: forbidden keyword %q present in output", kw))
		}
	}

	if len(env.Scope.ClosedVocabulary) > 0 {
		allowed := make(map[string]bool, len(env.Scope.ClosedVocabulary))
		for _, v := range env.Scope.ClosedVocabulary {
			allowed[v] = true
		}
		for _, val := range extractEnumValues(output) {
			if !allowed[val] {
				return contracts.NewError(contracts.KindConstitutional, "envelope.Evaluate",
					fmt.Sprintf("CANONICALIZATION FAILURE: value %q outside closed vocabulary", val))
			}
		}
	}

	if env.Scope.MaxDensity > 0 {
		if count := countElements(output); count > env.Scope.MaxDensity {
			return contracts.NewError(contracts.KindConstitutional, "envelope.Evaluate",
				fmt.Sprintf("SCOPE VIOLATION: output density %d exceeds cap %d", count, env.Scope.MaxDensity))
		}
	}

	return nil
}

// flattenStrings concatenates every string value in a parsed JSON object
// into one searchable blob, used for the forbidden-keyword check.
func flattenStrings(v interface{}) string {
	var sb strings.Builder
	var walk func(interface{})
	walk = func(v interface{}) {
		switch t := v.(type) {
		case string:
			sb.WriteString(t)
			sb.WriteByte(' ')
		case map[string]interface{}:
			for _, vv := range t {
				walk(vv)
			}
		case []interface{}:
			for _, vv := range t {
				walk(vv)
			}
		}
	}
	walk(v)
	return sb.String()
}

// extractEnumValues returns every string leaf value, the candidate set
// checked against a closed vocabulary.
func extractEnumValues(v interface{}) []string {
	var out []string
	var walk func(interface{})
	walk = func(v interface{}) {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		case map[string]interface{}:
			for _, vv := range t {
				walk(vv)
			}
		case []interface{}:
			for _, vv := range t {
				walk(vv)
			}
		}
	}
	walk(v)
	return out
}

// countElements counts list elements anywhere in the output, the density
// proxy for visual agents (elements-per-screen).
func countElements(v interface{}) int {
	count := 0
	var walk func(interface{})
	walk = func(v interface{}) {
		switch t := v.(type) {
		case map[string]interface{}:
			for _, vv := range t {
				walk(vv)
			}
		case []interface{}:
			count += len(t)
			for _, vv := range t {
				walk(vv)
			}
		}
	}
	walk(v)
	return count
}

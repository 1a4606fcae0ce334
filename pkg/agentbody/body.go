// Package agentbody builds agenthost.Body closures over an
// llmprovider.Provider. It is the thin seam between the two: the core
// never decides what an agent body does with its inputs beyond "compose a
// prompt from the bundle, call the provider, hand the raw text back" --
// everything downstream (schema checks, scope enforcement, hashing) stays
// the Envelope Runtime's and Agent Host's job.
package agentbody

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/IlyasuSeidu/forge-sub004/pkg/agenthost"
	"github.com/IlyasuSeidu/forge-sub004/pkg/llmprovider"
)

// Generic returns a Body that renders bundle into a deterministic prompt,
// calls provider once, and wraps the response as a text Draft. systemPrompt
// should describe the one artifact type the calling envelope produces;
// temperature is passed to the provider unchanged (the orchestrator passes
// the envelope's max_temperature for envelopes whose scope pins
// determinism).
func Generic(provider llmprovider.Provider, systemPrompt string, temperature float64) agenthost.Body {
	return func(ctx context.Context, bundle agenthost.InputBundle) (agenthost.Draft, error) {
		prompt, err := renderBundle(bundle)
		if err != nil {
			return agenthost.Draft{}, fmt.Errorf("agentbody: render input bundle: %w", err)
		}
		resp, err := provider.Complete(ctx, llmprovider.Request{
			SystemPrompt: systemPrompt,
			UserPrompt:   prompt,
			Temperature:  temperature,
		})
		if err != nil {
			return agenthost.Draft{}, fmt.Errorf("agentbody: provider completion: %w", err)
		}
		return agenthost.Draft{Text: resp.Content, IsText: true, Temperature: temperature}, nil
	}
}

// Structured is like Generic but additionally unmarshals the provider's
// response as JSON, populating RawOutput so the Agent Host runs it
// through schema validation before it is ever hashed into the Ledger.
func Structured(provider llmprovider.Provider, systemPrompt string, temperature float64) agenthost.Body {
	return func(ctx context.Context, bundle agenthost.InputBundle) (agenthost.Draft, error) {
		prompt, err := renderBundle(bundle)
		if err != nil {
			return agenthost.Draft{}, fmt.Errorf("agentbody: render input bundle: %w", err)
		}
		resp, err := provider.Complete(ctx, llmprovider.Request{
			SystemPrompt: systemPrompt,
			UserPrompt:   prompt,
			Temperature:  temperature,
		})
		if err != nil {
			return agenthost.Draft{}, fmt.Errorf("agentbody: provider completion: %w", err)
		}
		var raw map[string]interface{}
		if err := json.Unmarshal([]byte(resp.Content), &raw); err != nil {
			return agenthost.Draft{}, fmt.Errorf("agentbody: provider response is not valid JSON: %w", err)
		}
		return agenthost.Draft{Structured: raw, RawOutput: raw, Temperature: temperature}, nil
	}
}

// renderBundle produces a stable textual view of an input bundle: role
// names sorted, each artifact's canonical content inlined verbatim. Bundle
// roles are already isolated to exactly what the envelope declared, so
// nothing here decides what the agent is and isn't allowed to see.
func renderBundle(bundle agenthost.InputBundle) (string, error) {
	roles := make([]string, 0, len(bundle.Artifacts))
	for role := range bundle.Artifacts {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	view := make(map[string]string, len(roles))
	for _, role := range roles {
		view[role] = string(bundle.Artifacts[role].Content)
	}
	out, err := json.Marshal(view)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

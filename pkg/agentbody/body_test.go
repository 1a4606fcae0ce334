package agentbody_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IlyasuSeidu/forge-sub004/pkg/agentbody"
	"github.com/IlyasuSeidu/forge-sub004/pkg/agenthost"
	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
	"github.com/IlyasuSeidu/forge-sub004/pkg/llmprovider"
)

func stubProvider(content string) llmprovider.Provider {
	return llmprovider.Func(func(ctx context.Context, req llmprovider.Request) (*llmprovider.Response, error) {
		return &llmprovider.Response{Content: content}, nil
	})
}

func TestGeneric_WrapsProviderResponseAsText(t *testing.T) {
	bundle := agenthost.InputBundle{
		Artifacts: map[string]*contracts.Artifact{
			"intent_answers": {Content: []byte("some approved content")},
		},
	}

	body := agentbody.Generic(stubProvider("plain text output"), "you are the intent agent", 0.5)
	draft, err := body(context.Background(), bundle)
	require.NoError(t, err)

	assert.True(t, draft.IsText)
	assert.Equal(t, "plain text output", draft.Text)
	assert.Equal(t, 0.5, draft.Temperature)
}

func TestGeneric_PropagatesProviderError(t *testing.T) {
	failing := llmprovider.Func(func(ctx context.Context, req llmprovider.Request) (*llmprovider.Response, error) {
		return nil, assert.AnError
	})
	body := agentbody.Generic(failing, "system", 0)
	_, err := body(context.Background(), agenthost.InputBundle{Artifacts: map[string]*contracts.Artifact{}})
	assert.Error(t, err)
}

func TestStructured_UnmarshalsJSONResponse(t *testing.T) {
	body := agentbody.Structured(stubProvider(`{"field": "value", "count": 3}`), "system", 0)
	draft, err := body(context.Background(), agenthost.InputBundle{Artifacts: map[string]*contracts.Artifact{}})
	require.NoError(t, err)

	require.NotNil(t, draft.RawOutput)
	assert.Equal(t, "value", draft.RawOutput["field"])
	assert.Equal(t, float64(3), draft.RawOutput["count"])
}

func TestStructured_RejectsNonJSONResponse(t *testing.T) {
	body := agentbody.Structured(stubProvider("not json at all"), "system", 0)
	_, err := body(context.Background(), agenthost.InputBundle{Artifacts: map[string]*contracts.Artifact{}})
	assert.Error(t, err)
}

package llmprovider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IlyasuSeidu/forge-sub004/pkg/llmprovider"
)

func TestOpenAICompatible_CompleteSendsExpectedRequest(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "hello from the model"}},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	defer server.Close()

	client := llmprovider.NewOpenAICompatible(server.URL, "test-key", "gpt-test")
	resp, err := client.Complete(context.Background(), llmprovider.Request{
		SystemPrompt: "system text",
		UserPrompt:   "user text",
		Temperature:  0.3,
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "gpt-test", gotBody["model"])
	assert.Equal(t, "hello from the model", resp.Content)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestOpenAICompatible_OmitsAuthHeaderWhenAPIKeyEmpty(t *testing.T) {
	var sawAuthHeader bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuthHeader = r.Header.Get("Authorization") != ""
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "ok"}},
			},
		})
	}))
	defer server.Close()

	client := llmprovider.NewOpenAICompatible(server.URL, "", "gpt-test")
	_, err := client.Complete(context.Background(), llmprovider.Request{SystemPrompt: "s", UserPrompt: "u"})
	require.NoError(t, err)
	assert.False(t, sawAuthHeader)
}

func TestOpenAICompatible_NonOKStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := llmprovider.NewOpenAICompatible(server.URL, "", "gpt-test")
	_, err := client.Complete(context.Background(), llmprovider.Request{SystemPrompt: "s", UserPrompt: "u"})
	assert.Error(t, err)
}

func TestOpenAICompatible_EmptyChoicesIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"choices": []map[string]interface{}{}})
	}))
	defer server.Close()

	client := llmprovider.NewOpenAICompatible(server.URL, "", "gpt-test")
	_, err := client.Complete(context.Background(), llmprovider.Request{SystemPrompt: "s", UserPrompt: "u"})
	assert.Error(t, err)
}

package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"provision-fc-go/internal/config"
	"provision-fc-go/pkg/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.Init("error", "console", "")
	m.Run()
}

func newTestClient(baseURL string) Client {
	return NewClient(config.LLMConfig{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Model:   "gpt-4o-mini",
		Generation: config.LLMGenerationConfig{
			Temperature: 0.7,
			MaxTokens:   300,
		},
		Prompt: config.LLMPromptConfig{Persona: "You are a football coach."},
	})
}

func TestAsk_ParsesAnswerAndTokenUsage(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "越位规则如下。"}}],
			"usage": {"total_tokens": 58}
		}`))
	}))
	defer server.Close()

	answer, err := newTestClient(server.URL).Ask(context.Background(), "什么是越位？")
	require.NoError(t, err)
	assert.Equal(t, "越位规则如下。", answer.Content)
	assert.Equal(t, 58, answer.TokensUsed)

	// 请求携带 system 人设与用户问题两条消息
	messages, ok := gotBody["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 2)
	first := messages[0].(map[string]interface{})
	assert.Equal(t, "system", first["role"])
	assert.Equal(t, false, gotBody["stream"])
}

func TestAsk_Non200ReturnsAPIErrorWithBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Ask(context.Background(), "q")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)

	details, ok := apiErr.Details().(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, details, "error")
}

func TestAPIError_DetailsFallsBackToString(t *testing.T) {
	apiErr := &APIError{Status: "502 Bad Gateway", Body: []byte("upstream timeout")}
	assert.Equal(t, "upstream timeout", apiErr.Details())
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"provision-fc-go/internal/service"
	"provision-fc-go/pkg/llm"
	"provision-fc-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.Init("error", "console", "")
	gin.SetMode(gin.TestMode)
	m.Run()
}

type stubAskService struct {
	result       *service.AskResult
	err          error
	lastQuestion string
	lastIsVIP    bool
	calls        int
}

func (s *stubAskService) Ask(_ context.Context, question string, isVIP bool) (*service.AskResult, error) {
	s.calls++
	s.lastQuestion = question
	s.lastIsVIP = isVIP
	return s.result, s.err
}

func (s *stubAskService) StreamAnswer(_ context.Context, _ string, _ llm.MessageWriter) error {
	return nil
}

func newAskRouter(svc service.AskService) *gin.Engine {
	r := gin.New()
	r.POST("/api/ask-ai", NewAskHandler(svc).Ask)
	return r
}

func doAsk(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/ask-ai", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAsk_MissingQuestionReturns400(t *testing.T) {
	svc := &stubAskService{}
	r := newAskRouter(svc)

	for _, body := range []string{`{}`, `{"question": ""}`, `{"question": "   "}`, `{"prompt": "  "}`, `not-json`} {
		w := doAsk(t, r, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body: %s", body)
		assert.JSONEq(t, `{"error": "Question or prompt is required"}`, w.Body.String())
	}
	assert.Zero(t, svc.calls)
}

func TestAsk_QuestionFieldPreferred(t *testing.T) {
	svc := &stubAskService{result: &service.AskResult{Answer: "ok", TokensUsed: 7}}
	r := newAskRouter(svc)

	w := doAsk(t, r, `{"question": "什么是越位？", "prompt": "ignored"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "什么是越位？", svc.lastQuestion)
}

func TestAsk_PromptIsFallbackAlias(t *testing.T) {
	svc := &stubAskService{result: &service.AskResult{Answer: "ok", TokensUsed: 7}}
	r := newAskRouter(svc)

	w := doAsk(t, r, `{"prompt": "什么是角球？"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "什么是角球？", svc.lastQuestion)
}

func TestAsk_IsVIPDefaultsToFalse(t *testing.T) {
	svc := &stubAskService{result: &service.AskResult{Answer: "ok"}}
	r := newAskRouter(svc)

	doAsk(t, r, `{"question": "q"}`)
	assert.False(t, svc.lastIsVIP)

	doAsk(t, r, `{"question": "q", "isVIP": true}`)
	assert.True(t, svc.lastIsVIP)
}

func TestAsk_SuccessResponseShape(t *testing.T) {
	url := "https://minio.local/audio/key.mp3?sig=abc"
	svc := &stubAskService{result: &service.AskResult{Answer: "答案文本", TokensUsed: 42, AudioURL: &url}}
	r := newAskRouter(svc)

	w := doAsk(t, r, `{"question": "q", "isVIP": true}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "答案文本", resp["answer"])
	assert.Equal(t, float64(42), resp["tokens_used"])
	assert.Equal(t, url, resp["audio_url"])
}

func TestAsk_AudioURLIsNullWhenAbsent(t *testing.T) {
	svc := &stubAskService{result: &service.AskResult{Answer: "答案", TokensUsed: 5}}
	r := newAskRouter(svc)

	w := doAsk(t, r, `{"question": "q"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	_, present := resp["audio_url"]
	assert.True(t, present)
	assert.Nil(t, resp["audio_url"])
}

func TestAsk_APIErrorReturns500WithProviderDetails(t *testing.T) {
	svc := &stubAskService{err: &llm.APIError{
		Status: "429 Too Many Requests",
		Body:   []byte(`{"error": {"message": "rate limited"}}`),
	}}
	r := newAskRouter(svc)

	w := doAsk(t, r, `{"question": "q"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Failed to get response from AI", resp["error"])
	// 上游返回的 JSON 负载被原样透传为结构化 details
	details, ok := resp["details"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, details, "error")
}

func TestAsk_GenericErrorReturns500WithMessageDetails(t *testing.T) {
	svc := &stubAskService{err: assertAnError{}}
	r := newAskRouter(svc)

	w := doAsk(t, r, `{"question": "q"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Failed to get response from AI", resp["error"])
	assert.Equal(t, "network unreachable", resp["details"])
}

type assertAnError struct{}

func (assertAnError) Error() string { return "network unreachable" }

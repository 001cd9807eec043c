package service

import (
	"context"
	"errors"
	"testing"

	"provision-fc-go/internal/model"
	"provision-fc-go/pkg/llm"
	"provision-fc-go/pkg/log"
	"provision-fc-go/pkg/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.Init("error", "console", "")
	m.Run()
}

type fakeEmbeddingClient struct {
	vector []float32
	err    error
	calls  int
	lastIn string
}

func (f *fakeEmbeddingClient) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	f.calls++
	f.lastIn = text
	return f.vector, f.err
}

type fakeLLMClient struct {
	answer *llm.Answer
	err    error
	calls  int
	chunks []string
}

func (f *fakeLLMClient) Ask(_ context.Context, _ string) (*llm.Answer, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

func (f *fakeLLMClient) StreamChatMessages(_ context.Context, _ []llm.Message, _ *llm.GenerationParams, writer llm.MessageWriter) error {
	if f.err != nil {
		return f.err
	}
	for _, chunk := range f.chunks {
		if err := writer.WriteMessage(1, []byte(chunk)); err != nil {
			return err
		}
	}
	return nil
}

type fakeTTSClient struct {
	audio []byte
	err   error
	calls int
}

func (f *fakeTTSClient) Synthesize(_ context.Context, _ string) ([]byte, error) {
	f.calls++
	return f.audio, f.err
}

type fakeAudioStore struct {
	objectName string
	url        string
	err        error
	calls      int
}

func (f *fakeAudioStore) SaveAudio(_ context.Context, _ string, _ []byte) (string, string, error) {
	f.calls++
	if f.err != nil {
		return "", "", f.err
	}
	return f.objectName, f.url, nil
}

type fakeProducer struct {
	err   error
	tasks []tasks.AnswerPersistTask
}

func (f *fakeProducer) Produce(task tasks.AnswerPersistTask) error {
	f.tasks = append(f.tasks, task)
	return f.err
}

func newFixture() (*fakeEmbeddingClient, *fakeLLMClient, *fakeTTSClient, *fakeAudioStore, *fakeProducer, AskService) {
	embedder := &fakeEmbeddingClient{vector: []float32{0.1, 0.2, 0.3}}
	llmClient := &fakeLLMClient{answer: &llm.Answer{Content: "越位是进攻球员比球和倒数第二名防守球员更接近球门线。", TokensUsed: 42}}
	ttsClient := &fakeTTSClient{audio: []byte("mp3-bytes")}
	audioStore := &fakeAudioStore{objectName: "audio/key.mp3", url: "https://minio.local/audio/key.mp3?sig=abc"}
	producer := &fakeProducer{}
	svc := NewAskService(embedder, llmClient, ttsClient, audioStore, producer)
	return embedder, llmClient, ttsClient, audioStore, producer, svc
}

func TestAsk_EmptyQuestionRejectedBeforeAnyCall(t *testing.T) {
	embedder, llmClient, _, _, producer, svc := newFixture()

	for _, q := range []string{"", "   ", "\t\n"} {
		result, err := svc.Ask(context.Background(), q, false)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, ErrEmptyQuestion)
	}
	assert.Zero(t, embedder.calls)
	assert.Zero(t, llmClient.calls)
	assert.Empty(t, producer.tasks)
}

func TestAsk_SuccessWithoutVIP(t *testing.T) {
	_, _, ttsClient, _, producer, svc := newFixture()

	result, err := svc.Ask(context.Background(), "什么是越位？", false)
	require.NoError(t, err)
	assert.Equal(t, "越位是进攻球员比球和倒数第二名防守球员更接近球门线。", result.Answer)
	assert.Equal(t, 42, result.TokensUsed)
	assert.Nil(t, result.AudioURL)
	assert.Empty(t, result.Degradations)
	// 非 VIP 不触发语音合成
	assert.Zero(t, ttsClient.calls)

	require.Len(t, producer.tasks, 1)
	task := producer.tasks[0]
	assert.Equal(t, model.KeyForQuestion("什么是越位？"), task.QuestionKey)
	assert.Equal(t, "什么是越位？", task.Question)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, task.Embedding)
	assert.Empty(t, task.AudioObject)
	assert.Equal(t, 42, task.TokensUsed)
}

func TestAsk_VIPGetsAudioURL(t *testing.T) {
	_, _, ttsClient, audioStore, producer, svc := newFixture()

	result, err := svc.Ask(context.Background(), "什么是越位？", true)
	require.NoError(t, err)
	require.NotNil(t, result.AudioURL)
	assert.Equal(t, "https://minio.local/audio/key.mp3?sig=abc", *result.AudioURL)
	assert.Equal(t, 1, ttsClient.calls)
	assert.Equal(t, 1, audioStore.calls)

	require.Len(t, producer.tasks, 1)
	assert.Equal(t, "audio/key.mp3", producer.tasks[0].AudioObject)
}

func TestAsk_EmbeddingFailureDegradesButSucceeds(t *testing.T) {
	embedder, _, _, _, producer, svc := newFixture()
	embedder.err = errors.New("embedding backend down")
	embedder.vector = nil

	result, err := svc.Ask(context.Background(), "什么是越位？", false)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Answer)
	require.Len(t, result.Degradations, 1)
	assert.Contains(t, result.Degradations[0], "embedding failed")

	// 任务照常入队，但不携带向量
	require.Len(t, producer.tasks, 1)
	assert.Nil(t, producer.tasks[0].Embedding)
}

func TestAsk_EmbeddingInputIsNormalized(t *testing.T) {
	embedder, _, _, _, producer, svc := newFixture()

	_, err := svc.Ask(context.Background(), "  What Is OFFSIDE?  ", false)
	require.NoError(t, err)
	// 向量化使用小写并裁剪后的文本，但持久化键仍基于原始文本
	assert.Equal(t, "what is offside?", embedder.lastIn)
	require.Len(t, producer.tasks, 1)
	assert.Equal(t, model.KeyForQuestion("  What Is OFFSIDE?  "), producer.tasks[0].QuestionKey)
}

func TestAsk_CompletionFailureAbortsRequest(t *testing.T) {
	_, llmClient, ttsClient, _, producer, svc := newFixture()
	llmClient.err = &llm.APIError{Status: "500 Internal Server Error", Body: []byte(`{"error":"upstream"}`)}

	result, err := svc.Ask(context.Background(), "什么是越位？", true)
	assert.Nil(t, result)
	var apiErr *llm.APIError
	require.ErrorAs(t, err, &apiErr)

	// 补全失败后不再有任何后续动作
	assert.Zero(t, ttsClient.calls)
	assert.Empty(t, producer.tasks)
}

func TestAsk_TTSFailureDegradesForVIP(t *testing.T) {
	_, _, ttsClient, audioStore, producer, svc := newFixture()
	ttsClient.err = errors.New("tts unavailable")

	result, err := svc.Ask(context.Background(), "什么是越位？", true)
	require.NoError(t, err)
	assert.Nil(t, result.AudioURL)
	require.Len(t, result.Degradations, 1)
	assert.Contains(t, result.Degradations[0], "speech synthesis failed")
	assert.Zero(t, audioStore.calls)

	require.Len(t, producer.tasks, 1)
	assert.Empty(t, producer.tasks[0].AudioObject)
}

func TestAsk_AudioUploadFailureDegradesForVIP(t *testing.T) {
	_, _, _, audioStore, producer, svc := newFixture()
	audioStore.err = errors.New("minio unreachable")

	result, err := svc.Ask(context.Background(), "什么是越位？", true)
	require.NoError(t, err)
	assert.Nil(t, result.AudioURL)
	require.Len(t, result.Degradations, 1)
	assert.Contains(t, result.Degradations[0], "audio upload failed")
	assert.Empty(t, producer.tasks[0].AudioObject)
}

func TestAsk_EnqueueFailureDoesNotFailRequest(t *testing.T) {
	_, _, _, _, producer, svc := newFixture()
	producer.err = errors.New("kafka down")

	result, err := svc.Ask(context.Background(), "什么是越位？", false)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Answer)
	require.Len(t, result.Degradations, 1)
	assert.Contains(t, result.Degradations[0], "persist enqueue failed")
}

func TestAsk_SameQuestionProducesSameKey(t *testing.T) {
	_, _, _, _, producer, svc := newFixture()

	_, err := svc.Ask(context.Background(), "角球规则", false)
	require.NoError(t, err)
	_, err = svc.Ask(context.Background(), "角球规则", false)
	require.NoError(t, err)

	require.Len(t, producer.tasks, 2)
	assert.Equal(t, producer.tasks[0].QuestionKey, producer.tasks[1].QuestionKey)
}

type recordingWriter struct {
	messages [][]byte
}

func (w *recordingWriter) WriteMessage(_ int, data []byte) error {
	w.messages = append(w.messages, append([]byte(nil), data...))
	return nil
}

func TestStreamAnswer_ChunksWrappedAndFullAnswerEnqueued(t *testing.T) {
	_, llmClient, _, _, producer, svc := newFixture()
	llmClient.chunks = []string{"越位是", "进攻球员", "越过防线。"}

	writer := &recordingWriter{}
	err := svc.StreamAnswer(context.Background(), "什么是越位？", writer)
	require.NoError(t, err)

	require.Len(t, writer.messages, 3)
	assert.JSONEq(t, `{"chunk":"越位是"}`, string(writer.messages[0]))

	require.Len(t, producer.tasks, 1)
	assert.Equal(t, "越位是进攻球员越过防线。", producer.tasks[0].Answer)
	assert.Nil(t, producer.tasks[0].Embedding)
}

func TestStreamAnswer_EmptyStreamSkipsEnqueue(t *testing.T) {
	_, _, _, _, producer, svc := newFixture()

	writer := &recordingWriter{}
	err := svc.StreamAnswer(context.Background(), "什么是越位？", writer)
	require.NoError(t, err)
	assert.Empty(t, producer.tasks)
}

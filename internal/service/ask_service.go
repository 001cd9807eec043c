// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"provision-fc-go/internal/model"
	"provision-fc-go/pkg/llm"
	"provision-fc-go/pkg/log"
	"provision-fc-go/pkg/tasks"
	"provision-fc-go/pkg/tts"
)

// ErrEmptyQuestion 表示问题文本为空，任何外部调用发生之前即被拒绝。
var ErrEmptyQuestion = errors.New("question must not be empty")

// AskService 定义了问答操作的接口。
type AskService interface {
	// Ask 执行一次完整的问答：尽力而为的向量化、必须成功的补全、
	// VIP 可选的语音合成，以及 fire-and-forget 的持久化入队。
	Ask(ctx context.Context, question string, isVIP bool) (*AskResult, error)
	// StreamAnswer 以流式方式回答问题，并在结束后入队持久化。
	StreamAnswer(ctx context.Context, question string, writer llm.MessageWriter) error
}

// AskResult 是一次成功问答的结果。
// 三个外部调用的失败容忍度不同：embedding 与语音合成失败只记入
// Degradations 并继续；只有补全失败会让整个请求出错。
type AskResult struct {
	Answer       string
	TokensUsed   int
	AudioURL     *string  // isVIP 为 false 或合成/上传失败时为 nil
	Degradations []string // 本次请求中被降级吞掉的步骤说明
}

// TaskProducer 发送持久化任务到消息队列。
type TaskProducer interface {
	Produce(task tasks.AnswerPersistTask) error
}

// AudioStore 保存合成音频并返回对象名与带签名的访问 URL。
type AudioStore interface {
	SaveAudio(ctx context.Context, questionKey string, audio []byte) (objectName, url string, err error)
}

type askService struct {
	embeddingClient EmbeddingClient
	llmClient       llm.Client
	ttsClient       tts.Client
	audioStore      AudioStore
	producer        TaskProducer
}

// EmbeddingClient 是本服务对向量化客户端的最小依赖。
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// NewAskService 创建一个新的 AskService 实例。
func NewAskService(
	embeddingClient EmbeddingClient,
	llmClient llm.Client,
	ttsClient tts.Client,
	audioStore AudioStore,
	producer TaskProducer,
) AskService {
	return &askService{
		embeddingClient: embeddingClient,
		llmClient:       llmClient,
		ttsClient:       ttsClient,
		audioStore:      audioStore,
		producer:        producer,
	}
}

// Ask 协调一次问答的完整流程。
func (s *askService) Ask(ctx context.Context, question string, isVIP bool) (*AskResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	questionKey := model.KeyForQuestion(question)
	log.Infof("[AskService] 开始处理问题, key: %s, isVIP: %v", questionKey, isVIP)
	result := &AskResult{}

	// 步骤1: 向量化（尽力而为）。向量目前仅用于相似问题检索的写入侧，
	// 失败绝不能阻断用户问答。
	vector := s.embedQuestion(ctx, question, result)

	// 步骤2: 补全（必须成功）。这是唯一会让请求整体失败的外部调用。
	answer, err := s.llmClient.Ask(ctx, question)
	if err != nil {
		log.Errorf("[AskService] 补全调用失败, key: %s, error: %v", questionKey, err)
		return nil, err
	}
	result.Answer = answer.Content
	result.TokensUsed = answer.TokensUsed
	log.Infof("[AskService] 补全成功, key: %s, tokens: %d", questionKey, answer.TokensUsed)

	// 步骤3: VIP 语音合成（尽力而为）。
	var audioObject string
	if isVIP {
		audioObject = s.synthesizeSpeech(ctx, questionKey, answer.Content, result)
	}

	// 步骤4: 持久化入队（fire-and-forget）。
	// 响应不等待落库；入队失败只记录日志，已生成的答案照常返回。
	task := tasks.AnswerPersistTask{
		QuestionKey: questionKey,
		Question:    question,
		Answer:      answer.Content,
		Embedding:   vector,
		AudioObject: audioObject,
		TokensUsed:  answer.TokensUsed,
		AskedAtUnix: time.Now().Unix(),
	}
	if err := s.producer.Produce(task); err != nil {
		log.Errorf("[AskService] 持久化任务入队失败, key: %s, error: %v", questionKey, err)
		result.Degradations = append(result.Degradations, "persist enqueue failed: "+err.Error())
	}

	if len(result.Degradations) > 0 {
		log.Warnf("[AskService] 请求完成但存在降级, key: %s, degradations: %v", questionKey, result.Degradations)
	}
	return result, nil
}

// embedQuestion 对小写并裁剪后的问题文本做向量化，失败时返回 nil 并记录降级。
func (s *askService) embedQuestion(ctx context.Context, question string, result *AskResult) []float32 {
	normalized := strings.ToLower(strings.TrimSpace(question))
	vector, err := s.embeddingClient.CreateEmbedding(ctx, normalized)
	if err != nil {
		log.Warnf("[AskService] 向量化失败（已降级）: %v", err)
		result.Degradations = append(result.Degradations, "embedding failed: "+err.Error())
		return nil
	}
	return vector
}

// synthesizeSpeech 为 VIP 合成语音并上传，失败时返回空串并记录降级。
func (s *askService) synthesizeSpeech(ctx context.Context, questionKey, answerText string, result *AskResult) string {
	audio, err := s.ttsClient.Synthesize(ctx, answerText)
	if err != nil {
		log.Warnf("[AskService] 语音合成失败（已降级）, key: %s, error: %v", questionKey, err)
		result.Degradations = append(result.Degradations, "speech synthesis failed: "+err.Error())
		return ""
	}

	objectName, url, err := s.audioStore.SaveAudio(ctx, questionKey, audio)
	if err != nil {
		log.Warnf("[AskService] 音频上传失败（已降级）, key: %s, error: %v", questionKey, err)
		result.Degradations = append(result.Degradations, "audio upload failed: "+err.Error())
		return ""
	}

	result.AudioURL = &url
	log.Infof("[AskService] 音频已保存, key: %s, object: %s", questionKey, objectName)
	return objectName
}

// StreamAnswer 以流式方式回答问题。完整答案在流结束后入队持久化；
// 流式路径不做向量化与语音合成。
func (s *askService) StreamAnswer(ctx context.Context, question string, writer llm.MessageWriter) error {
	if strings.TrimSpace(question) == "" {
		return ErrEmptyQuestion
	}

	questionKey := model.KeyForQuestion(question)
	messages := []llm.Message{{Role: "user", Content: question}}

	// 拦截 writer 以捕获完整答案
	answerBuilder := &strings.Builder{}
	interceptor := &writerInterceptor{next: writer, captured: answerBuilder}

	if err := s.llmClient.StreamChatMessages(ctx, messages, nil, interceptor); err != nil {
		return err
	}

	fullAnswer := answerBuilder.String()
	if len(fullAnswer) == 0 {
		return nil
	}

	task := tasks.AnswerPersistTask{
		QuestionKey: questionKey,
		Question:    question,
		Answer:      fullAnswer,
		AskedAtUnix: time.Now().Unix(),
	}
	if err := s.producer.Produce(task); err != nil {
		// 只记录错误，不返回给客户端，因为流式响应已经成功
		log.Errorf("[AskService] 流式问答持久化入队失败, key: %s, error: %v", questionKey, err)
	}
	return nil
}

// writerInterceptor 是对 llm.MessageWriter 的封装，用于捕获写入的消息。
// 分块在下发前被包装为 {"chunk":"..."}。
type writerInterceptor struct {
	next     llm.MessageWriter
	captured *strings.Builder
}

// WriteMessage 满足 llm.MessageWriter 接口。
func (w *writerInterceptor) WriteMessage(messageType int, data []byte) error {
	w.captured.Write(data)
	payload := map[string]string{"chunk": string(data)}
	b, _ := json.Marshal(payload)
	return w.next.WriteMessage(messageType, b)
}

// Package pipeline 定义了问答持久化的核心流程。
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"provision-fc-go/internal/config"
	"provision-fc-go/internal/model"
	"provision-fc-go/internal/repository"
	"provision-fc-go/pkg/es"
	"provision-fc-go/pkg/log"
	"provision-fc-go/pkg/tasks"
)

// Persister 消费 Kafka 中的问答持久化任务，写入 MySQL 与 Elasticsearch。
// 提问路径在补全成功后即响应，落库完全由这里异步完成。
type Persister struct {
	answerRepo  repository.AnswerRepository
	recentCache repository.RecentAnswersCache
	esCfg       config.ElasticsearchConfig
	embedModel  string
}

// NewPersister 创建一个新的 Persister 实例。
func NewPersister(
	answerRepo repository.AnswerRepository,
	recentCache repository.RecentAnswersCache,
	esCfg config.ElasticsearchConfig,
	embeddingCfg config.EmbeddingConfig,
) *Persister {
	return &Persister{
		answerRepo:  answerRepo,
		recentCache: recentCache,
		esCfg:       esCfg,
		embedModel:  embeddingCfg.Model,
	}
}

// Process 是持久化任务的主函数，实现 kafka.TaskProcessor。
func (p *Persister) Process(ctx context.Context, task tasks.AnswerPersistTask) error {
	log.Infof("[Persister] 开始持久化问答, key: %s", task.QuestionKey)

	askedAt := time.Unix(task.AskedAtUnix, 0)

	// 步骤1: 写入 MySQL（以 question_key 为冲突键整行覆盖）
	record := &model.AnswerRecord{
		QuestionKey: task.QuestionKey,
		Question:    task.Question,
		Answer:      task.Answer,
		TokensUsed:  task.TokensUsed,
	}
	if len(task.Embedding) > 0 {
		embeddingJSON, err := json.Marshal(task.Embedding)
		if err != nil {
			return fmt.Errorf("序列化向量失败: %w", err)
		}
		s := string(embeddingJSON)
		record.Embedding = &s
	}
	if task.AudioObject != "" {
		audio := task.AudioObject
		record.AudioObject = &audio
	}

	if err := p.answerRepo.Upsert(record); err != nil {
		log.Errorf("[Persister] 写入 MySQL 失败, key: %s, error: %v", task.QuestionKey, err)
		return fmt.Errorf("写入问答记录失败: %w", err)
	}
	log.Infof("[Persister] 步骤1: MySQL 写入成功, key: %s", task.QuestionKey)

	// 步骤2: 索引到 Elasticsearch（文档 ID 与行键一致，同题覆盖）
	doc := model.QuestionDocument{
		QuestionKey: task.QuestionKey,
		Question:    task.Question,
		Answer:      task.Answer,
		Vector:      task.Embedding,
		AudioObject: task.AudioObject,
		TokensUsed:  task.TokensUsed,
		AskedAt:     askedAt,
	}
	if len(task.Embedding) > 0 {
		doc.ModelVersion = p.embedModel
	}
	if err := es.IndexQuestion(ctx, p.esCfg.IndexName, doc); err != nil {
		log.Errorf("[Persister] 索引到 Elasticsearch 失败, key: %s, error: %v", task.QuestionKey, err)
		return fmt.Errorf("索引问答文档失败: %w", err)
	}
	log.Infof("[Persister] 步骤2: Elasticsearch 索引成功, key: %s", task.QuestionKey)

	// 步骤3: 使最近问答缓存失效，下一次读取回源
	if err := p.recentCache.Invalidate(ctx); err != nil {
		// 缓存失效失败不影响持久化结果
		log.Warnf("[Persister] 最近问答缓存失效失败: %v", err)
	}

	log.Infof("[Persister] 持久化完成, key: %s", task.QuestionKey)
	return nil
}

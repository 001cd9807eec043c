// Package service 提供了问答记录查询相关的业务逻辑。
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"provision-fc-go/internal/config"
	"provision-fc-go/internal/model"
	"provision-fc-go/internal/repository"
	"provision-fc-go/pkg/es"
	"provision-fc-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
)

// AnswerService 接口定义了问答记录的查询与管理操作。
type AnswerService interface {
	// GetRecentAnswers 返回最近的问答列表，优先读 Redis 缓存，未命中回源 MySQL。
	GetRecentAnswers(ctx context.Context, limit int) ([]model.RecentAnswerDTO, error)
	// SearchSimilar 将查询向量化后在 ES 中做 knn 检索，返回语义相近的已答问题。
	SearchSimilar(ctx context.Context, query string, topK int) ([]model.SimilarQuestionDTO, error)
	// ListAnswers 分页列出全部问答记录（运营后台用）。
	ListAnswers(ctx context.Context, page, size int) ([]model.AnswerRecord, int64, error)
	// DeleteAnswer 删除一条问答记录（MySQL 与 ES 同时删除）。
	DeleteAnswer(ctx context.Context, questionKey string) error
}

type answerService struct {
	answerRepo      repository.AnswerRepository
	recentCache     repository.RecentAnswersCache
	embeddingClient EmbeddingClient
	esClient        *elasticsearch.Client
	esCfg           config.ElasticsearchConfig
}

// NewAnswerService 创建一个新的 AnswerService 实例。
func NewAnswerService(
	answerRepo repository.AnswerRepository,
	recentCache repository.RecentAnswersCache,
	embeddingClient EmbeddingClient,
	esClient *elasticsearch.Client,
	esCfg config.ElasticsearchConfig,
) AnswerService {
	return &answerService{
		answerRepo:      answerRepo,
		recentCache:     recentCache,
		embeddingClient: embeddingClient,
		esClient:        esClient,
		esCfg:           esCfg,
	}
}

// GetRecentAnswers 返回最近的问答列表。
func (s *answerService) GetRecentAnswers(ctx context.Context, limit int) ([]model.RecentAnswerDTO, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	cached, hit, err := s.recentCache.GetRecent(ctx)
	if err != nil {
		// 缓存故障不致命，回源数据库
		log.Warnf("[AnswerService] 读取最近问答缓存失败: %v", err)
	}
	if hit {
		if len(cached) > limit {
			cached = cached[:limit]
		}
		return cached, nil
	}

	records, err := s.answerRepo.FindRecent(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent answers: %w", err)
	}

	dtos := make([]model.RecentAnswerDTO, 0, len(records))
	for _, r := range records {
		dtos = append(dtos, model.RecentAnswerDTO{
			Question: r.Question,
			Answer:   r.Answer,
			AskedAt:  model.LocalTime(r.UpdatedAt),
		})
	}

	// 回填缓存，失败只记日志
	if err := s.recentCache.SetRecent(ctx, dtos); err != nil {
		log.Warnf("[AnswerService] 回填最近问答缓存失败: %v", err)
	}
	return dtos, nil
}

// SearchSimilar 执行相似问题检索。
// 与提问路径不同，这里向量化失败是致命的：没有向量就没有检索结果。
func (s *answerService) SearchSimilar(ctx context.Context, query string, topK int) ([]model.SimilarQuestionDTO, error) {
	if topK <= 0 || topK > 20 {
		topK = 5
	}
	log.Infof("[AnswerService] 开始相似问题检索, query: '%s', topK: %d", query, topK)

	// 步骤1: 向量化查询
	queryVector, err := s.embeddingClient.CreateEmbedding(ctx, query)
	if err != nil {
		log.Errorf("[AnswerService] 向量化查询失败: %v", err)
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}

	// 步骤2: 构建 knn 查询
	var buf bytes.Buffer
	esQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   queryVector,
			"k":              topK,
			"num_candidates": topK * 10,
		},
		"size": topK,
	}
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	// 步骤3: 执行搜索
	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(ctx),
		s.esClient.Search.WithIndex(s.esCfg.IndexName),
		s.esClient.Search.WithBody(&buf),
	)
	if err != nil {
		log.Errorf("[AnswerService] 向 Elasticsearch 发送检索请求失败: %v", err)
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[AnswerService] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.String())
	}

	// 步骤4: 解析结果
	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.QuestionDocument `json:"_source"`
				Score  float64                `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	results := make([]model.SimilarQuestionDTO, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		results = append(results, model.SimilarQuestionDTO{
			QuestionKey: hit.Source.QuestionKey,
			Question:    hit.Source.Question,
			Answer:      hit.Source.Answer,
			Score:       hit.Score,
		})
	}
	log.Infof("[AnswerService] 相似问题检索完成, 返回 %d 条结果", len(results))
	return results, nil
}

// ListAnswers 分页列出问答记录。
func (s *answerService) ListAnswers(ctx context.Context, page, size int) ([]model.AnswerRecord, int64, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return s.answerRepo.FindWithPagination((page-1)*size, size)
}

// DeleteAnswer 同时删除 MySQL 行与 ES 文档，并使最近问答缓存失效。
func (s *answerService) DeleteAnswer(ctx context.Context, questionKey string) error {
	if err := s.answerRepo.DeleteByKey(questionKey); err != nil {
		return fmt.Errorf("failed to delete answer record: %w", err)
	}

	if err := es.DeleteQuestion(ctx, s.esCfg.IndexName, questionKey); err != nil {
		// MySQL 已删除，ES 清理失败只记日志，避免半删状态反复回滚
		log.Errorf("[AnswerService] 删除 ES 问答文档失败, key: %s, error: %v", questionKey, err)
	}

	if err := s.recentCache.Invalidate(ctx); err != nil {
		log.Warnf("[AnswerService] 最近问答缓存失效失败: %v", err)
	}

	log.Infof("[AnswerService] 问答记录已删除, key: %s", questionKey)
	return nil
}

// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"provision-fc-go/internal/model"

	"github.com/go-redis/redis/v8"
)

const (
	recentAnswersKey = "answers:recent"
	recentAnswersTTL = 24 * time.Hour
)

// RecentAnswersCache 定义了最近问答列表的 Redis 缓存操作接口。
type RecentAnswersCache interface {
	// GetRecent 读取缓存的最近问答列表；缓存未命中时返回 (nil, false, nil)。
	GetRecent(ctx context.Context) ([]model.RecentAnswerDTO, bool, error)
	SetRecent(ctx context.Context, answers []model.RecentAnswerDTO) error
	Invalidate(ctx context.Context) error
}

type redisRecentAnswersCache struct {
	redisClient *redis.Client
}

// NewRecentAnswersCache 创建一个新的 RecentAnswersCache 实例。
func NewRecentAnswersCache(redisClient *redis.Client) RecentAnswersCache {
	return &redisRecentAnswersCache{redisClient: redisClient}
}

// GetRecent 从 Redis 获取最近问答列表。
func (r *redisRecentAnswersCache) GetRecent(ctx context.Context) ([]model.RecentAnswerDTO, bool, error) {
	jsonData, err := r.redisClient.Get(ctx, recentAnswersKey).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get recent answers: %w", err)
	}
	var answers []model.RecentAnswerDTO
	if err := json.Unmarshal([]byte(jsonData), &answers); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal recent answers: %w", err)
	}
	return answers, true, nil
}

// SetRecent 在 Redis 中更新最近问答列表。
func (r *redisRecentAnswersCache) SetRecent(ctx context.Context, answers []model.RecentAnswerDTO) error {
	// 保留最近 50 条
	if len(answers) > 50 {
		answers = answers[:50]
	}
	jsonData, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("failed to marshal recent answers: %w", err)
	}
	if err := r.redisClient.Set(ctx, recentAnswersKey, jsonData, recentAnswersTTL).Err(); err != nil {
		return fmt.Errorf("failed to set recent answers: %w", err)
	}
	return nil
}

// Invalidate 删除缓存，下一次读取回源 MySQL。
func (r *redisRecentAnswersCache) Invalidate(ctx context.Context) error {
	return r.redisClient.Del(ctx, recentAnswersKey).Err()
}

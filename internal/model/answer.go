// Package model 包含了应用的数据模型定义。
package model

import (
	"crypto/md5"
	"fmt"
	"time"
)

// AnswerRecord 对应于数据库中的 'answers' 表，每个问题一条记录。
// 行键是原始问题文本的 MD5：问题文本不做任何规范化，大小写或空白不同的
// 两个问题会落在不同的行；完全相同的问题文本则整行覆盖（last-write-wins）。
type AnswerRecord struct {
	QuestionKey string    `gorm:"type:varchar(32);primaryKey;column:question_key" json:"questionKey"`
	Question    string    `gorm:"type:text;not null" json:"question"`
	Answer      string    `gorm:"type:text;not null" json:"answer"`
	Embedding   *string   `gorm:"type:longtext" json:"embedding"` // JSON 序列化的向量，embedding 失败时为 NULL
	AudioObject *string   `gorm:"type:varchar(255);column:audio_object" json:"audioObject"`
	TokensUsed  int       `gorm:"not null;default:0;column:tokens_used" json:"tokensUsed"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (AnswerRecord) TableName() string {
	return "answers"
}

// KeyForQuestion 根据原始问题文本计算行键。
// 输入完全不做裁剪或小写处理，以保持“原文即键”的覆盖语义。
func KeyForQuestion(question string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(question)))
}

// RecentAnswerDTO 定义了返回给前端的最近问答结构。
type RecentAnswerDTO struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	AskedAt  LocalTime `json:"askedAt"`
}

// SimilarQuestionDTO 定义了相似问题搜索的单条结果。
type SimilarQuestionDTO struct {
	QuestionKey string  `json:"questionKey"`
	Question    string  `json:"question"`
	Answer      string  `json:"answer"`
	Score       float64 `json:"score"`
}

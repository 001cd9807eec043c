// Package model 定义了与存储结构对应的 Go 结构体。
package model

import "time"

// QuestionDocument 代表存储在 Elasticsearch 中的问答文档。
// 向量为问题文本的 embedding，用于相似问题的 knn 检索；
// embedding 失败时该字段缺省，文档仍会被索引。
type QuestionDocument struct {
	QuestionKey  string    `json:"question_key"` // 原始问题文本的 MD5，与 MySQL 行键一致
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
	Vector       []float32 `json:"vector,omitempty"`
	ModelVersion string    `json:"model_version,omitempty"`
	AudioObject  string    `json:"audio_object,omitempty"`
	TokensUsed   int       `json:"tokens_used"`
	AskedAt      time.Time `json:"asked_at"`
}

// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// AnswerPersistTask 表示一次成功问答之后待落库的数据。
// 生产者在完成 LLM 调用后发送该任务，由持久化消费者异步写入 MySQL 与 ES。
type AnswerPersistTask struct {
	QuestionKey string    `json:"question_key"`
	Question    string    `json:"question"`
	Answer      string    `json:"answer"`
	Embedding   []float32 `json:"embedding,omitempty"`
	AudioObject string    `json:"audio_object,omitempty"`
	TokensUsed  int       `json:"tokens_used"`
	AskedAtUnix int64     `json:"asked_at_unix"`
}

package service

import (
	"context"
	"fmt"
	"time"

	"provision-fc-go/internal/config"
	"provision-fc-go/pkg/kafka"
	"provision-fc-go/pkg/storage"
	"provision-fc-go/pkg/tasks"
)

// minioAudioStore 将合成音频落到 MinIO，并返回带签名的下载 URL。
type minioAudioStore struct {
	minioCfg config.MinIOConfig
	ttsCfg   config.TTSConfig
}

// NewMinioAudioStore 创建一个基于 MinIO 的 AudioStore。
func NewMinioAudioStore(minioCfg config.MinIOConfig, ttsCfg config.TTSConfig) AudioStore {
	return &minioAudioStore{minioCfg: minioCfg, ttsCfg: ttsCfg}
}

// SaveAudio 上传音频对象并生成签名 URL。
// 对象名由问题行键决定，同题重复提问时音频也同样覆盖写。
func (s *minioAudioStore) SaveAudio(ctx context.Context, questionKey string, audio []byte) (string, string, error) {
	format := s.ttsCfg.Format
	if format == "" {
		format = "mp3"
	}
	objectName := fmt.Sprintf("audio/%s.%s", questionKey, format)

	if err := storage.UploadObject(ctx, s.minioCfg.BucketName, objectName, audio, "audio/mpeg"); err != nil {
		return "", "", fmt.Errorf("failed to upload audio object: %w", err)
	}

	expireHours := s.ttsCfg.URLExpireHours
	if expireHours <= 0 {
		expireHours = 24
	}
	url, err := storage.GetPresignedURL(s.minioCfg.BucketName, objectName, time.Duration(expireHours)*time.Hour)
	if err != nil {
		return "", "", fmt.Errorf("failed to presign audio url: %w", err)
	}

	return objectName, url, nil
}

// kafkaTaskProducer 是 TaskProducer 的 Kafka 实现。
type kafkaTaskProducer struct{}

// NewKafkaTaskProducer 创建一个基于全局 Kafka 生产者的 TaskProducer。
func NewKafkaTaskProducer() TaskProducer {
	return &kafkaTaskProducer{}
}

// Produce 发送持久化任务。
func (p *kafkaTaskProducer) Produce(task tasks.AnswerPersistTask) error {
	return kafka.ProduceAnswerTask(task)
}

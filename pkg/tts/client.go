// Package tts provides a client for interacting with text-to-speech models.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"provision-fc-go/internal/config"
	"provision-fc-go/pkg/log"
)

// Client defines the interface for a text-to-speech client.
type Client interface {
	// Synthesize 将给定文本合成为语音，返回音频二进制内容。
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type openAICompatibleClient struct {
	cfg    config.TTSConfig
	client *http.Client
}

// NewClient creates a new text-to-speech client from the config.
func NewClient(cfg config.TTSConfig) Client {
	return &openAICompatibleClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format,omitempty"`
}

// Synthesize calls the OpenAI-compatible speech API and returns the raw audio bytes.
func (c *openAICompatibleClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	log.Infof("[TTSClient] 开始调用语音合成 API, model: %s, voice: %s, input_len: %d", c.cfg.Model, c.cfg.Voice, len(text))
	reqBody := speechRequest{
		Model:          c.cfg.Model,
		Input:          text,
		Voice:          c.cfg.Voice,
		ResponseFormat: c.cfg.Format,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/audio/speech", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create speech request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[TTSClient] 调用语音合成 API 失败, error: %v", err)
		return nil, fmt.Errorf("failed to call speech api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		log.Errorf("[TTSClient] 语音合成 API 返回非 200 状态码: %s, body: %s", resp.Status, string(bodyBytes))
		return nil, fmt.Errorf("speech api returned non-200 status: %s", resp.Status)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read speech response: %w", err)
	}
	if len(audio) == 0 {
		log.Warnf("[TTSClient] 语音合成 API 返回了空的音频数据")
		return nil, fmt.Errorf("received empty audio from api")
	}

	log.Infof("[TTSClient] 成功获取合成音频, 大小: %d 字节", len(audio))
	return audio, nil
}

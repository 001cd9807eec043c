// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"provision-fc-go/internal/service"
	"provision-fc-go/pkg/llm"
	"provision-fc-go/pkg/log"
	"provision-fc-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// AskHandler 负责处理提问相关的 API 请求。
type AskHandler struct {
	askService service.AskService
	// 流式连接的一次性令牌，key: token, value: 过期时间
	streamTokens sync.Map
}

// NewAskHandler 创建一个新的 AskHandler 实例。
func NewAskHandler(askService service.AskService) *AskHandler {
	return &AskHandler{askService: askService}
}

// AskRequest 定义了提问 API 的请求体结构。
// question 为首选字段，prompt 为历史版本客户端保留的别名。
type AskRequest struct {
	Question string `json:"question"`
	Prompt   string `json:"prompt"`
	IsVIP    bool   `json:"isVIP"`
}

// Ask 处理 POST /api/ask-ai。
func (h *AskHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Question or prompt is required"})
		return
	}

	// question 优先，prompt 兜底；两者都为空则在任何外部调用前拒绝
	question := req.Question
	if strings.TrimSpace(question) == "" {
		question = req.Prompt
	}
	if strings.TrimSpace(question) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Question or prompt is required"})
		return
	}

	result, err := h.askService.Ask(c.Request.Context(), question, req.IsVIP)
	if err != nil {
		log.Errorf("[AskHandler] 问答失败, error: %v", err)
		var apiErr *llm.APIError
		if errors.As(err, &apiErr) {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to get response from AI",
				"details": apiErr.Details(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get response from AI",
			"details": err.Error(),
		})
		return
	}

	// audio_url 仅在 VIP 且合成与上传都成功时非空
	var audioURL interface{}
	if result.AudioURL != nil {
		audioURL = *result.AudioURL
	}
	c.JSON(http.StatusOK, gin.H{
		"answer":      result.Answer,
		"tokens_used": result.TokensUsed,
		"audio_url":   audioURL,
	})
}

// GetStreamToken 返回一个用于建立流式连接的一次性令牌。
func (h *AskHandler) GetStreamToken(c *gin.Context) {
	streamToken := "WSS_ASK_" + token.GenerateRandomString(16)
	h.streamTokens.Store(streamToken, time.Now().Add(5*time.Minute))
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"streamToken": streamToken}})
}

// Stream 处理一个传入的流式问答 WebSocket 连接。
// 客户端发送问题文本，服务端以 {"chunk":"..."} 分块下发答案。
func (h *AskHandler) Stream(c *gin.Context) {
	tokenString := c.Param("token")
	expiry, ok := h.streamTokens.Load(tokenString)
	if !ok || time.Now().After(expiry.(time.Time)) {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的流式令牌", "data": nil})
		return
	}
	// 一次性令牌，升级成功前即作废
	h.streamTokens.Delete(tokenString)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Info("流式问答 WebSocket 连接已建立")

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		question := strings.TrimSpace(string(message))
		if question == "" {
			sendStreamError(conn, "Question or prompt is required")
			continue
		}

		if err := h.askService.StreamAnswer(c.Request.Context(), question, conn); err != nil {
			log.Errorf("处理流式响应失败: %v", err)
			sendStreamError(conn, "AI服务暂时不可用，请稍后重试")
		}
		sendCompletion(conn)
	}
}

// sendStreamError 发送统一的 JSON 错误消息。
func sendStreamError(conn *websocket.Conn, msg string) {
	b, _ := json.Marshal(map[string]string{"error": msg})
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

// sendCompletion 发送完成通知 JSON。
func sendCompletion(conn *websocket.Conn) {
	notif := map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"timestamp": time.Now().UnixMilli(),
	}
	b, _ := json.Marshal(notif)
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

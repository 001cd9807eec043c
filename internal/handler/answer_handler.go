package handler

import (
	"net/http"
	"strconv"

	"provision-fc-go/internal/service"
	"provision-fc-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AnswerHandler 结构体定义了问答记录相关的处理器。
type AnswerHandler struct {
	answerService service.AnswerService
}

// NewAnswerHandler 创建一个新的 AnswerHandler 实例。
func NewAnswerHandler(answerService service.AnswerService) *AnswerHandler {
	return &AnswerHandler{
		answerService: answerService,
	}
}

// GetRecent 处理最近问答列表请求。
func (h *AnswerHandler) GetRecent(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "20")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 20
	}

	answers, err := h.answerService.GetRecentAnswers(c.Request.Context(), limit)
	if err != nil {
		log.Errorf("[AnswerHandler] 获取最近问答失败, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取最近问答失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 200, "data": answers, "message": "success"})
}

// SearchSimilar 是处理相似问题检索请求的 Gin 处理函数。
func (h *AnswerHandler) SearchSimilar(c *gin.Context) {
	query := c.Query("query")
	log.Infof("[AnswerHandler] 收到相似问题检索请求, query: %s", query)

	if query == "" {
		log.Warnf("[AnswerHandler] 检索请求失败: query 参数为空")
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的查询参数"})
		return
	}
	topKStr := c.DefaultQuery("topK", "5")
	topK, err := strconv.Atoi(topKStr)
	if err != nil || topK <= 0 {
		topK = 5
	}

	results, err := h.answerService.SearchSimilar(c.Request.Context(), query, topK)
	if err != nil {
		log.Errorf("[AnswerHandler] 相似问题检索服务返回错误, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "检索失败"})
		return
	}

	log.Infof("[AnswerHandler] 相似问题检索成功, query: '%s', 返回 %d 条结果", query, len(results))
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": results, "message": "success"})
}

// ListAnswers 处理运营后台的问答记录分页列表请求。
func (h *AnswerHandler) ListAnswers(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page <= 0 {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", "20"))
	if err != nil || size <= 0 {
		size = 20
	}

	records, total, err := h.answerService.ListAnswers(c.Request.Context(), page, size)
	if err != nil {
		log.Errorf("[AnswerHandler] 分页查询问答记录失败, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询问答记录失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 200,
		"data": gin.H{
			"records": records,
			"total":   total,
			"page":    page,
			"size":    size,
		},
		"message": "success",
	})
}

// DeleteAnswer 处理运营后台删除问答记录的请求。
func (h *AnswerHandler) DeleteAnswer(c *gin.Context) {
	questionKey := c.Param("key")
	if questionKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的记录标识"})
		return
	}

	if err := h.answerService.DeleteAnswer(c.Request.Context(), questionKey); err != nil {
		log.Errorf("[AnswerHandler] 删除问答记录失败, key: %s, error: %v", questionKey, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除问答记录失败"})
		return
	}

	log.Infof("[AnswerHandler] 问答记录已删除, key: %s", questionKey)
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": nil, "message": "success"})
}

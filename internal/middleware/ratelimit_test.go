package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"provision-fc-go/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newLimitedRouter(cfg config.RateLimitConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/ask-ai", RateLimitMiddleware(cfg), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"answer": "ok"})
	})
	return r
}

func hit(r *gin.Engine) int {
	req := httptest.NewRequest(http.MethodPost, "/api/ask-ai", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit_BurstThenRejects(t *testing.T) {
	r := newLimitedRouter(config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 3})

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(r), "request %d within burst", i)
	}
	assert.Equal(t, http.StatusTooManyRequests, hit(r))
}

func TestRateLimit_DisabledPassesEverything(t *testing.T) {
	r := newLimitedRouter(config.RateLimitConfig{Enabled: false})

	for i := 0; i < 20; i++ {
		assert.Equal(t, http.StatusOK, hit(r))
	}
}

func TestRateLimit_PerClientIsolation(t *testing.T) {
	r := newLimitedRouter(config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1})

	reqA := httptest.NewRequest(http.MethodPost, "/api/ask-ai", nil)
	reqA.RemoteAddr = "10.0.0.1:1234"
	wA := httptest.NewRecorder()
	r.ServeHTTP(wA, reqA)
	assert.Equal(t, http.StatusOK, wA.Code)

	// 同一 IP 第二次被限
	wA2 := httptest.NewRecorder()
	r.ServeHTTP(wA2, reqA)
	assert.Equal(t, http.StatusTooManyRequests, wA2.Code)

	// 另一 IP 不受影响
	reqB := httptest.NewRequest(http.MethodPost, "/api/ask-ai", nil)
	reqB.RemoteAddr = "10.0.0.2:1234"
	wB := httptest.NewRecorder()
	r.ServeHTTP(wB, reqB)
	assert.Equal(t, http.StatusOK, wB.Code)
}

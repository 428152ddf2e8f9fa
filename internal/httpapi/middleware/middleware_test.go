package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestIPLimiters_SweepsIdleClients(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := newIPLimiters(1, 1, time.Minute, func() time.Time { return now })

	l.get("10.0.0.1")
	l.get("10.0.0.2")
	assert.Equal(t, 2, l.len())

	now = now.Add(30 * time.Second)
	l.get("10.0.0.2")

	// 10.0.0.1 has been quiet for a full minute, 10.0.0.2 only for 30s
	now = now.Add(30 * time.Second)
	l.get("10.0.0.3")
	assert.Equal(t, 2, l.len())

	now = now.Add(2 * time.Minute)
	l.get("10.0.0.3")
	assert.Equal(t, 1, l.len())
}

func TestIPLimiters_SameBucketWhileActive(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := newIPLimiters(1, 1, time.Minute, func() time.Time { return now })

	first := l.get("10.0.0.1")
	now = now.Add(59 * time.Second)
	assert.Same(t, first, l.get("10.0.0.1"))
}

func TestRateLimit_RejectsOverBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(0.001, 1))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func() int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "10.0.0.9:1234"
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, do())
	assert.Equal(t, http.StatusTooManyRequests, do())
}

package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/healthchat/internal/common"
	"github.com/suPer8Hu/healthchat/internal/config"
	"github.com/suPer8Hu/healthchat/internal/httpapi/handlers"
	"github.com/suPer8Hu/healthchat/internal/httpapi/middleware"
	"go.uber.org/zap"
)

func NewRouter(cfg config.Config, h *handlers.Handler, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", "Accept-Language", "Idempotency-Key", middleware.RequestIDHeader},
		ExposeHeaders:   []string{middleware.RequestIDHeader},
		MaxAge:          12 * time.Hour,
	}))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	// model calls are rate limited per client
	limited := r.Group("/")
	limited.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	limited.POST("/chat", middleware.OptionalAuth(cfg.JWTSecret), h.Chat)
	limited.POST("/predict", h.Predict)

	// JWT required
	authGroup := limited.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me/chat", h.GetMyChat)
	authGroup.POST("/me/chat/messages", h.SendMyChatMessage)
	authGroup.DELETE("/me/chat", h.DeleteMyChat)
	authGroup.POST("/predict/jobs", h.SubmitPredictJob)
	authGroup.GET("/predict/jobs/:job_id", h.GetPredictJob)
	return r
}

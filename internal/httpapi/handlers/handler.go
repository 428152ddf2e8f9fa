package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/healthchat/internal/chatlog"
	"github.com/suPer8Hu/healthchat/internal/common"
	"github.com/suPer8Hu/healthchat/internal/gateway"
	"github.com/suPer8Hu/healthchat/internal/httpapi/middleware"
	"github.com/suPer8Hu/healthchat/internal/predict"
	"go.uber.org/zap"
)

// Gateway is the relay's view of *gateway.Gateway.
type Gateway interface {
	Reply(ctx context.Context, userID string, log chatlog.Log) (string, error)
	PredictRisk(ctx context.Context, m gateway.HealthMetrics) (gateway.RiskAssessment, error)
}

// TurnLock serializes hosted chat turns per user across relay instances.
type TurnLock interface {
	AcquireTurn(ctx context.Context, userID string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseTurn(ctx context.Context, userID, token string) error
}

type Handler struct {
	Gateway Gateway
	// Chats and Turns back the /me/chat endpoints; both nil disables them.
	Chats  *chatlog.Store
	Turns  TurnLock
	Jobs   *predict.Service
	Logger *zap.Logger

	// TurnTTL bounds how long a crashed turn keeps the lock.
	TurnTTL time.Duration
}

func NewHandler(gw Gateway, chats *chatlog.Store, turns TurnLock, jobs *predict.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Gateway: gw,
		Chats:   chats,
		Turns:   turns,
		Jobs:    jobs,
		Logger:  logger,
		TurnTTL: 2 * time.Minute,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, http.StatusOK, gin.H{"message": "pong"})
}

func userIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// failGateway maps a gateway failure to 502 and anything else to 500.
func (h *Handler) failGateway(c *gin.Context, op string, err error) {
	var ge *gateway.GatewayError
	var mre *gateway.MalformedReplyError
	switch {
	case errors.As(err, &mre):
		h.Logger.Warn(op+" malformed reply", zap.Error(err), zap.String("request_id", c.GetString(middleware.RequestIDKey)))
		common.Fail(c, http.StatusBadGateway, 50201, "malformed model reply")
	case errors.As(err, &ge):
		h.Logger.Warn(op+" gateway failure", zap.Error(err), zap.String("request_id", c.GetString(middleware.RequestIDKey)))
		common.Fail(c, http.StatusBadGateway, 50202, "failed to get a reply from the model")
	default:
		h.Logger.Error(op+" failed", zap.Error(err), zap.String("request_id", c.GetString(middleware.RequestIDKey)))
		common.Fail(c, http.StatusInternalServerError, 50000, "internal server error")
	}
}

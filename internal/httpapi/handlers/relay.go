package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/healthchat/internal/chatlog"
	"github.com/suPer8Hu/healthchat/internal/common"
	"github.com/suPer8Hu/healthchat/internal/gateway"
)

type chatReq struct {
	Message string      `json:"message"`
	History chatlog.Log `json:"history"`
}

// Chat relays one conversation turn. The log is the optional history plus
// the new message; a signed-in caller also gets their context documents.
func (h *Handler) Chat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 40001, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		common.Fail(c, http.StatusBadRequest, 40002, "Message is required")
		return
	}

	userMsg, err := chatlog.NewMessage(chatlog.SenderUser, req.Message, time.Now())
	if err != nil {
		h.failGateway(c, "chat", err)
		return
	}
	log := append(req.History.Clone(), userMsg)

	uid, _ := userIDFromContext(c)
	reply, err := h.Gateway.Reply(c.Request.Context(), uid, log)
	if err != nil {
		h.failGateway(c, "chat", err)
		return
	}
	common.OK(c, http.StatusOK, gin.H{"response": reply})
}

// Predict runs a single-turn health-risk assessment.
func (h *Handler) Predict(c *gin.Context) {
	var m gateway.HealthMetrics
	if err := c.ShouldBindJSON(&m); err != nil {
		common.Fail(c, http.StatusBadRequest, 40001, "invalid request body")
		return
	}
	if missing := m.Missing(); len(missing) > 0 {
		common.Fail(c, http.StatusBadRequest, 40003, "missing fields: "+strings.Join(missing, ", "))
		return
	}

	ra, err := h.Gateway.PredictRisk(c.Request.Context(), m)
	if err != nil {
		h.failGateway(c, "predict", err)
		return
	}
	common.OK(c, http.StatusOK, ra)
}

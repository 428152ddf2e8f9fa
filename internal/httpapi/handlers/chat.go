package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/healthchat/internal/auth"
	"github.com/suPer8Hu/healthchat/internal/chatlog"
	"github.com/suPer8Hu/healthchat/internal/common"
	"github.com/suPer8Hu/healthchat/internal/session"
	"go.uber.org/zap"
)

// Relay-hosted chat: the log lives in the relay's store and every turn runs
// through a session.Controller bound to the caller.

func (h *Handler) hostedChatEnabled(c *gin.Context) bool {
	if h.Chats == nil || h.Turns == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "hosted chat is not configured")
		return false
	}
	return true
}

func (h *Handler) newController(c *gin.Context, uid string) *session.Controller {
	ctrl := session.NewController(auth.Session{UserID: uid}, h.Chats, h.Gateway, session.Options{
		Language: c.GetHeader("Accept-Language"),
		Logger:   h.Logger,
	})
	ctrl.Mount(c.Request.Context())
	return ctrl
}

// acquire takes the user's turn lock or answers 409. The returned release
// must be called when ok.
func (h *Handler) acquire(c *gin.Context, uid string) (release func(), ok bool) {
	token, got, err := h.Turns.AcquireTurn(c.Request.Context(), uid, h.TurnTTL)
	if err != nil {
		h.Logger.Error("turn lock", zap.String("user_id", uid), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to acquire chat turn")
		return nil, false
	}
	if !got {
		common.Fail(c, http.StatusConflict, 40901, "a reply is already pending")
		return nil, false
	}
	return func() {
		if err := h.Turns.ReleaseTurn(context.WithoutCancel(c.Request.Context()), uid, token); err != nil {
			h.Logger.Warn("release turn", zap.String("user_id", uid), zap.Error(err))
		}
	}, true
}

func (h *Handler) GetMyChat(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	if !h.hostedChatEnabled(c) {
		return
	}
	common.OK(c, http.StatusOK, gin.H{"messages": h.Chats.Load(c.Request.Context(), uid)})
}

type sendMyMessageReq struct {
	Message string `json:"message"`
}

func (h *Handler) SendMyChatMessage(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	if !h.hostedChatEnabled(c) {
		return
	}
	var req sendMyMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 40001, "invalid request body")
		return
	}

	release, ok := h.acquire(c, uid)
	if !ok {
		return
	}
	defer release()

	ctrl := h.newController(c, uid)
	err := ctrl.Submit(c.Request.Context(), req.Message)

	var ve *session.ValidationError
	var se *chatlog.StoreError
	switch {
	case err == nil:
		log := ctrl.Log()
		common.OK(c, http.StatusOK, gin.H{
			"reply":    log[len(log)-1].Text,
			"messages": log,
		})
	case errors.As(err, &ve):
		common.Fail(c, http.StatusBadRequest, 40002, noticeText(ctrl, ve.Error()))
	case errors.Is(err, session.ErrEmptyReply):
		h.Logger.Warn("hosted chat empty reply", zap.String("user_id", uid))
		common.Fail(c, http.StatusBadGateway, 50203, noticeText(ctrl, "empty model reply"))
	case errors.As(err, &se):
		h.Logger.Error("hosted chat save", zap.String("user_id", uid), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50003, noticeText(ctrl, "failed to save chat history"))
	default:
		h.failGateway(c, "hosted chat", err)
	}
}

func noticeText(ctrl *session.Controller, fallback string) string {
	if n := ctrl.Notice(); n != nil {
		return n.Text
	}
	return fallback
}

func (h *Handler) DeleteMyChat(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	if !h.hostedChatEnabled(c) {
		return
	}
	confirmed := c.Query("confirm") == "true"
	if !confirmed {
		common.Fail(c, http.StatusBadRequest, 40004, "deleting chat history requires confirm=true")
		return
	}

	release, ok := h.acquire(c, uid)
	if !ok {
		return
	}
	defer release()

	ctrl := h.newController(c, uid)
	deleted, err := ctrl.Delete(c.Request.Context(), session.ConfirmFunc(func(context.Context, string) bool {
		return confirmed
	}))
	if err != nil {
		h.Logger.Error("hosted chat clear", zap.String("user_id", uid), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50004, noticeText(ctrl, "failed to delete chat history"))
		return
	}
	common.OK(c, http.StatusOK, gin.H{"deleted": deleted})
}

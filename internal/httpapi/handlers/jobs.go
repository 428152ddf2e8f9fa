package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/healthchat/internal/common"
	"github.com/suPer8Hu/healthchat/internal/gateway"
	"github.com/suPer8Hu/healthchat/internal/predict"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (h *Handler) SubmitPredictJob(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	if h.Jobs == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50302, "prediction jobs are not configured")
		return
	}

	var m gateway.HealthMetrics
	if err := c.ShouldBindJSON(&m); err != nil {
		common.Fail(c, http.StatusBadRequest, 40001, "invalid request body")
		return
	}

	job, created, err := h.Jobs.Submit(c.Request.Context(), uid, m, c.GetHeader("Idempotency-Key"))
	if err != nil {
		var mfe *predict.MissingFieldsError
		if errors.As(err, &mfe) {
			common.Fail(c, http.StatusBadRequest, 40003, "missing fields: "+strings.Join(mfe.Fields, ", "))
			return
		}
		h.Logger.Error("submit predict job", zap.String("user_id", uid), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50005, "failed to enqueue prediction")
		return
	}

	status := http.StatusAccepted
	if !created {
		status = http.StatusOK
	}
	common.OK(c, status, gin.H{"job_id": job.ID, "status": job.Status})
}

func (h *Handler) GetPredictJob(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	if h.Jobs == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50302, "prediction jobs are not configured")
		return
	}

	job, err := h.Jobs.Get(c.Request.Context(), uid, c.Param("job_id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "job not found")
			return
		}
		h.Logger.Error("get predict job", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50006, "failed to load job")
		return
	}
	common.OK(c, http.StatusOK, job.View())
}

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/sms-archive/internal/common"
	"github.com/suPer8Hu/sms-archive/internal/httpapi/middleware"
	"github.com/suPer8Hu/sms-archive/internal/imports"
	"go.uber.org/zap"
)

func (h *Handler) CreateImport(c *gin.Context) {
	var req imports.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	req.IdempotencyKey = strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(req.IdempotencyKey) > 128 {
		common.Fail(c, http.StatusBadRequest, 10005, "idempotency key too long")
		return
	}
	if h.Publisher == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "import queue unavailable")
		return
	}

	subject := c.GetString(middleware.SubjectKey)
	job, created, err := h.Imports.Submit(c.Request.Context(), h.Publisher, subject, req)
	if err != nil {
		if errors.Is(err, imports.ErrInvalidRequest) {
			common.Fail(c, http.StatusBadRequest, 10006, err.Error())
			return
		}
		h.Log.Error("submit import",
			zap.String("subject", subject),
			zap.String("format", req.Format),
			zap.Error(err),
		)
		common.Fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
		return
	}

	common.OK(c, gin.H{"job_id": job.ID, "created": created})
}

func (h *Handler) GetImport(c *gin.Context) {
	id := c.Param("id")
	if id == "" || len(id) > 26 {
		common.Fail(c, http.StatusBadRequest, 10002, "invalid id")
		return
	}
	job, err := h.Imports.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, imports.ErrJobNotFound) {
			common.Fail(c, http.StatusNotFound, 40405, "job not found")
			return
		}
		h.internalError(c, "get import", err)
		return
	}
	common.OK(c, gin.H{"job": job})
}

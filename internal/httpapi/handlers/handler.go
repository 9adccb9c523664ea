package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/sms-archive/internal/archive"
	"github.com/suPer8Hu/sms-archive/internal/common"
	"github.com/suPer8Hu/sms-archive/internal/imports"
	"go.uber.org/zap"
)

// ETagCache remembers content hashes of served media files.
type ETagCache interface {
	GetETag(ctx context.Context, path string, size int64, modTime time.Time) (string, bool, error)
	SetETag(ctx context.Context, path string, size int64, modTime time.Time, etag string) error
}

type Handler struct {
	Archive   *archive.Repo
	Imports   *imports.Service
	Publisher imports.Publisher // nil when the queue is unreachable
	ETags     ETagCache         // nil disables caching
	Log       *zap.Logger
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

// pathID parses a positive numeric route parameter, writing the 400 itself.
func pathID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		common.Fail(c, http.StatusBadRequest, 10002, "invalid "+name)
		return 0, false
	}
	return id, true
}

// queryUint returns 0 for an absent parameter.
func queryUint(c *gin.Context, name string) (uint64, bool) {
	v := c.Query(name)
	if v == "" {
		return 0, true
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10003, "invalid "+name)
		return 0, false
	}
	return n, true
}

func (h *Handler) internalError(c *gin.Context, where string, err error) {
	h.Log.Error(where,
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", c.GetString("request_id")),
	)
	common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
}

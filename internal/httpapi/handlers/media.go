package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/sms-archive/internal/archive"
	"github.com/suPer8Hu/sms-archive/internal/common"
	"github.com/suPer8Hu/sms-archive/internal/media"
	"go.uber.org/zap"
)

func (h *Handler) GetMedia(c *gin.Context) {
	id, okk := pathID(c, "id")
	if !okk {
		return
	}
	md, err := h.Archive.GetMediaView(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40403, "media not found")
			return
		}
		h.internalError(c, "get media", err)
		return
	}
	common.OK(c, gin.H{"media": md})
}

// GetMediaFile serves the stored bytes. Conditional requests are answered by
// http.ServeContent from the ETag and Last-Modified headers set here.
func (h *Handler) GetMediaFile(c *gin.Context) {
	id, okk := pathID(c, "id")
	if !okk {
		return
	}
	ctx := c.Request.Context()
	md, err := h.Archive.GetMedia(ctx, id)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40403, "media not found")
			return
		}
		h.internalError(c, "get media", err)
		return
	}
	if md.FilePath == nil || *md.FilePath == "" {
		common.Fail(c, http.StatusNotFound, 40404, "media file missing")
		return
	}
	path := *md.FilePath

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			common.Fail(c, http.StatusNotFound, 40404, "media file missing")
			return
		}
		h.internalError(c, "open media file", err)
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		h.internalError(c, "stat media file", err)
		return
	}
	if fi.IsDir() {
		common.Fail(c, http.StatusNotFound, 40404, "media file missing")
		return
	}

	etag, err := h.etag(ctx, f, fi)
	if err != nil {
		h.internalError(c, "hash media file", err)
		return
	}

	var contentType string
	if md.ContentType != nil && *md.ContentType != "" {
		contentType = *md.ContentType
	} else {
		contentType = media.GuessContentType(path)
	}
	c.Header("Content-Type", contentType)
	c.Header("ETag", etag)
	c.Header("Last-Modified", fi.ModTime().UTC().Format(http.TimeFormat))
	c.Header("Cache-Control", "private, max-age=86400")

	http.ServeContent(c.Writer, c.Request, fi.Name(), fi.ModTime(), f)
}

// etag returns the quoted sha256 of f, consulting the cache first. Cache
// errors are logged and otherwise ignored. f is left positioned at the start.
func (h *Handler) etag(ctx context.Context, f *os.File, fi os.FileInfo) (string, error) {
	path := f.Name()
	if h.ETags != nil {
		tag, hit, err := h.ETags.GetETag(ctx, path, fi.Size(), fi.ModTime())
		if err != nil {
			h.Log.Warn("etag cache get", zap.String("path", path), zap.Error(err))
		} else if hit {
			return tag, nil
		}
	}

	sum := sha256.New()
	if _, err := io.Copy(sum, f); err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	tag := `"` + hex.EncodeToString(sum.Sum(nil)) + `"`

	if h.ETags != nil {
		if err := h.ETags.SetETag(ctx, path, fi.Size(), fi.ModTime(), tag); err != nil {
			h.Log.Warn("etag cache set", zap.String("path", path), zap.Error(err))
		}
	}
	return tag, nil
}

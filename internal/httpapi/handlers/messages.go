package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/sms-archive/internal/archive"
	"github.com/suPer8Hu/sms-archive/internal/common"
)

func (h *Handler) GetMessage(c *gin.Context) {
	id, okk := pathID(c, "id")
	if !okk {
		return
	}
	msg, err := h.Archive.GetMessageView(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "message not found")
			return
		}
		h.internalError(c, "get message", err)
		return
	}
	common.OK(c, gin.H{"message": msg})
}

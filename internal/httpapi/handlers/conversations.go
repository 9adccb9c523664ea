package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/sms-archive/internal/archive"
	"github.com/suPer8Hu/sms-archive/internal/common"
)

func (h *Handler) ListConversations(c *gin.Context) {
	search := strings.TrimSpace(c.Query("search"))
	convs, err := h.Archive.ListConversations(c.Request.Context(), search)
	if err != nil {
		h.internalError(c, "list conversations", err)
		return
	}
	common.OK(c, gin.H{"conversations": convs})
}

func (h *Handler) GetConversation(c *gin.Context) {
	id, okk := pathID(c, "id")
	if !okk {
		return
	}
	conv, err := h.Archive.GetConversationView(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "conversation not found")
			return
		}
		h.internalError(c, "get conversation", err)
		return
	}
	common.OK(c, gin.H{"conversation": conv})
}

// conversationExists writes the 404 or 500 itself when it returns false.
func (h *Handler) conversationExists(c *gin.Context, id uint64) bool {
	if _, err := h.Archive.GetConversation(c.Request.Context(), id); err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "conversation not found")
			return false
		}
		h.internalError(c, "get conversation", err)
		return false
	}
	return true
}

func (h *Handler) ListMessages(c *gin.Context) {
	id, okk := pathID(c, "id")
	if !okk {
		return
	}
	limit, okk := queryUint(c, "limit")
	if !okk {
		return
	}
	before, okk := queryUint(c, "before")
	if !okk {
		return
	}
	after, okk := queryUint(c, "after")
	if !okk {
		return
	}
	if !h.conversationExists(c, id) {
		return
	}

	page, err := h.Archive.ListMessages(c.Request.Context(), id, archive.PageCursor{
		Limit:    int(min(limit, 1000)),
		BeforeID: before,
		AfterID:  after,
	})
	if err != nil {
		h.internalError(c, "list messages", err)
		return
	}
	common.OK(c, page)
}

func (h *Handler) SearchMessages(c *gin.Context) {
	id, okk := pathID(c, "id")
	if !okk {
		return
	}
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		common.Fail(c, http.StatusBadRequest, 10004, "q required")
		return
	}
	if !h.conversationExists(c, id) {
		return
	}

	msgs, err := h.Archive.SearchMessages(c.Request.Context(), id, q)
	if err != nil {
		h.internalError(c, "search messages", err)
		return
	}
	common.OK(c, gin.H{"messages": msgs})
}

func (h *Handler) ListConversationMedia(c *gin.Context) {
	id, okk := pathID(c, "id")
	if !okk {
		return
	}
	limit, okk := queryUint(c, "limit")
	if !okk {
		return
	}
	offset, okk := queryUint(c, "offset")
	if !okk {
		return
	}
	if !h.conversationExists(c, id) {
		return
	}

	page, err := h.Archive.ListConversationMedia(c.Request.Context(), id, int(min(limit, 1000)), int(min(offset, 1<<31-1)))
	if err != nil {
		h.internalError(c, "list media", err)
		return
	}
	common.OK(c, page)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/convo-platform/internal/activity"
	"github.com/suPer8Hu/convo-platform/internal/conversation"
)

// ownedVersion resolves a version to its conversation and enforces
// ownership, hiding other users' versions.
func (h *Handler) ownedVersion(c *gin.Context, uid uint64, versionID string) (*conversation.Version, bool) {
	v, err := h.ConvSvc.GetVersion(c.Request.Context(), versionID)
	if err != nil {
		svcFail(c, err)
		return nil, false
	}
	conv, err := h.ConvSvc.GetConversation(c.Request.Context(), v.ConversationID)
	if err != nil {
		svcFail(c, err)
		return nil, false
	}
	if conv.UserID != uid {
		fail(c, http.StatusNotFound, 40400, "version not found")
		return nil, false
	}
	return v, true
}

type appendMessageReq struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content" binding:"required"`
}

func (h *Handler) AppendMessage(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req appendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	versionID := c.Param("version_id")
	v, found := h.ownedVersion(c, uid, versionID)
	if !found {
		return
	}

	m, err := h.ConvSvc.AppendMessage(c.Request.Context(), versionID, req.Role, req.Content)
	if err != nil {
		svcFail(c, err)
		return
	}

	h.audit(c, uid, activity.ActionMessageSend, "message", m.ID,
		map[string]any{"conversation_id": v.ConversationID, "version_id": versionID})

	ok(c, gin.H{
		"message_id": m.ID,
		"role":       m.Role.Name,
		"created_at": m.CreatedAt,
	})
}

type updateMessageReq struct {
	Content *string `json:"content"`
	Role    *string `json:"role"`
}

func (h *Handler) UpdateMessage(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req updateMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Content == nil && req.Role == nil {
		fail(c, http.StatusBadRequest, 10002, "nothing to update")
		return
	}

	versionID := c.Param("version_id")
	if _, found := h.ownedVersion(c, uid, versionID); !found {
		return
	}

	m, err := h.ConvSvc.UpdateMessage(c.Request.Context(), versionID, c.Param("message_id"), req.Content, req.Role)
	if err != nil {
		svcFail(c, err)
		return
	}

	ok(c, gin.H{
		"message_id": m.ID,
		"role":       m.Role.Name,
		"content":    m.Content,
	})
}

func (h *Handler) ListVersionMessages(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	versionID := c.Param("version_id")
	if _, found := h.ownedVersion(c, uid, versionID); !found {
		return
	}

	msgs, err := h.ConvSvc.ListVersionMessages(c.Request.Context(), versionID)
	if err != nil {
		svcFail(c, err)
		return
	}

	out := make([]gin.H, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, gin.H{
			"id":         m.ID,
			"role":       m.Role.Name,
			"content":    m.Content,
			"created_at": m.CreatedAt,
		})
	}
	ok(c, gin.H{"messages": out})
}

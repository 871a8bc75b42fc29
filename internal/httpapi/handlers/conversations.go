package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/convo-platform/internal/activity"
	"github.com/suPer8Hu/convo-platform/internal/conversation"
)

type createConversationReq struct {
	Title string `json:"title" binding:"required"`
}

func (h *Handler) CreateConversation(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req createConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	conv, err := h.ConvSvc.CreateConversation(c.Request.Context(), uid, req.Title)
	if err != nil {
		svcFail(c, err)
		return
	}

	h.audit(c, uid, activity.ActionConversationCreate, "conversation", conv.ID,
		map[string]any{"title": conv.Title})

	ok(c, gin.H{"conversation_id": conv.ID})
}

func (h *Handler) ListConversations(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	convs, err := h.ConvSvc.ListConversations(c.Request.Context(), uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	ok(c, gin.H{"conversations": convs})
}

func (h *Handler) GetConversation(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	if _, found := h.ownedConversation(c, uid, c.Param("conversation_id")); !found {
		return
	}

	view, err := h.ConvSvc.ConversationView(c.Request.Context(), c.Param("conversation_id"))
	if err != nil {
		svcFail(c, err)
		return
	}
	ok(c, view)
}

type renameConversationReq struct {
	Title string `json:"title" binding:"required"`
}

func (h *Handler) RenameConversation(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req renameConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	id := c.Param("conversation_id")
	if _, found := h.ownedConversation(c, uid, id); !found {
		return
	}

	if err := h.ConvSvc.RenameConversation(c.Request.Context(), id, req.Title); err != nil {
		svcFail(c, err)
		return
	}

	h.audit(c, uid, activity.ActionConversationEdit, "conversation", id,
		map[string]any{"title": req.Title})

	ok(c, gin.H{"conversation_id": id})
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	id := c.Param("conversation_id")
	if _, found := h.ownedConversation(c, uid, id); !found {
		return
	}

	if err := h.ConvSvc.DeleteConversation(c.Request.Context(), id); err != nil {
		svcFail(c, err)
		return
	}

	h.audit(c, uid, activity.ActionConversationDelete, "conversation", id, nil)

	ok(c, gin.H{"deleted": true})
}

type upsertVersionReq struct {
	ID            *string            `json:"id"`
	ParentVersion *string            `json:"parent_version"`
	RootMessage   *string            `json:"root_message"`
	Messages      []upsertMessageReq `json:"messages"`
}

type upsertMessageReq struct {
	ID      *string `json:"id"`
	Role    string  `json:"role"`
	Content string  `json:"content"`
}

// UpsertVersion creates a version (no id) or updates one in place (id set),
// reconciling its message list the same way.
func (h *Handler) UpsertVersion(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req upsertVersionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	convID := c.Param("conversation_id")
	if _, found := h.ownedConversation(c, uid, convID); !found {
		return
	}

	spec := conversation.VersionSpec{
		ID:              req.ID,
		ParentVersionID: req.ParentVersion,
		RootMessageID:   req.RootMessage,
	}
	for _, m := range req.Messages {
		spec.Messages = append(spec.Messages, conversation.MessageSpec{
			ID:      m.ID,
			Role:    m.Role,
			Content: m.Content,
		})
	}

	v, err := h.ConvSvc.ReplaceOrCreateVersion(c.Request.Context(), convID, spec)
	if err != nil {
		svcFail(c, err)
		return
	}

	view, err := h.ConvSvc.VersionView(c.Request.Context(), v)
	if err != nil {
		svcFail(c, err)
		return
	}
	ok(c, view)
}

type setActiveVersionReq struct {
	VersionID string `json:"version_id" binding:"required"`
}

func (h *Handler) SetActiveVersion(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req setActiveVersionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	convID := c.Param("conversation_id")
	if _, found := h.ownedConversation(c, uid, convID); !found {
		return
	}

	if err := h.ConvSvc.SetActiveVersion(c.Request.Context(), convID, req.VersionID); err != nil {
		svcFail(c, err)
		return
	}
	ok(c, gin.H{"active_version": req.VersionID})
}

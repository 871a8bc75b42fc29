package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/convo-platform/internal/activity"
	"github.com/suPer8Hu/convo-platform/internal/files"
)

// UploadFile registers a multipart upload, rejecting byte-identical
// duplicates with 409.
func (h *Handler) UploadFile(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, 10003, "file is required")
		return
	}

	var convID *string
	if v := c.PostForm("conversation_id"); v != "" {
		if _, found := h.ownedConversation(c, uid, v); !found {
			return
		}
		convID = &v
	}

	src, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, 10004, "cannot read upload")
		return
	}
	defer src.Close()

	f, err := h.FileSvc.Create(c.Request.Context(), files.CreateInput{
		Content:        src,
		Filename:       fh.Filename,
		Size:           fh.Size,
		UserID:         uid,
		ConversationID: convID,
	})
	if err != nil {
		svcFail(c, err)
		return
	}

	h.audit(c, uid, activity.ActionFileUpload, "file", f.ID,
		map[string]any{"filename": f.Filename, "file_hash": f.FileHash})

	ok(c, gin.H{
		"file_id":   f.ID,
		"file_hash": f.FileHash,
		"status":    f.Status,
	})
}

func (h *Handler) ListFiles(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	out, err := h.FileSvc.ListByOwner(c.Request.Context(), uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	ok(c, gin.H{"files": out})
}

func (h *Handler) GetFile(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	f, err := h.FileSvc.Get(c.Request.Context(), c.Param("file_id"))
	if err != nil {
		svcFail(c, err)
		return
	}
	if f.UserID != uid {
		// hide existence
		fail(c, http.StatusNotFound, 40400, "file not found")
		return
	}

	h.audit(c, uid, activity.ActionFileAccess, "file", f.ID, nil)

	ok(c, f)
}

func (h *Handler) ListActivity(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.Activity.ListByUser(c.Request.Context(), uid, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	ok(c, gin.H{"activity": entries})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/convo-platform/internal/activity"
)

// GetSummary serves the cached summary, falling back to the persisted one.
func (h *Handler) GetSummary(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	convID := c.Param("conversation_id")
	conv, found := h.ownedConversation(c, uid, convID)
	if !found {
		return
	}

	text, has := h.SumSvc.GetCachedSummary(c.Request.Context(), convID)
	if !has {
		fail(c, http.StatusNotFound, 40403, "summary not available")
		return
	}

	ok(c, gin.H{
		"conversation_id":      convID,
		"summary":              text,
		"is_summary_stale":     conv.IsSummaryStale,
		"summary_generated_at": conv.SummaryGeneratedAt,
	})
}

// RegenerateSummary enqueues a regeneration job; without a broker it runs
// inline so small deployments still work.
func (h *Handler) RegenerateSummary(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	convID := c.Param("conversation_id")
	if _, found := h.ownedConversation(c, uid, convID); !found {
		return
	}

	h.audit(c, uid, activity.ActionSummaryRegenerate, "conversation", convID, nil)

	if h.Rabbit != nil {
		if err := h.Rabbit.PublishSummaryJob(c.Request.Context(), convID); err != nil {
			h.Log.Error().Err(err).Str("conversation_id", convID).Msg("enqueue summary job failed")
			fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
			return
		}
		ok(c, gin.H{"queued": true})
		return
	}

	generated := h.SumSvc.UpdateConversationSummary(c.Request.Context(), convID)
	ok(c, gin.H{"queued": false, "generated": generated})
}

package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/suPer8Hu/convo-platform/internal/activity"
	"github.com/suPer8Hu/convo-platform/internal/ai"
	"github.com/suPer8Hu/convo-platform/internal/common"
	"github.com/suPer8Hu/convo-platform/internal/config"
	"github.com/suPer8Hu/convo-platform/internal/conversation"
	"github.com/suPer8Hu/convo-platform/internal/files"
	"github.com/suPer8Hu/convo-platform/internal/httpapi/middleware"
	"github.com/suPer8Hu/convo-platform/internal/store/rabbitmq"
	"github.com/suPer8Hu/convo-platform/internal/store/redisstore"
	"github.com/suPer8Hu/convo-platform/internal/summary"
)

type Handler struct {
	DB       *gorm.DB
	Cfg      config.Config
	Redis    *redisstore.Store
	Rabbit   *rabbitmq.Publisher
	ConvSvc  *conversation.Service
	SumSvc   *summary.Service
	FileSvc  *files.Service
	Activity *activity.Recorder
	Log      zerolog.Logger
}

// NewHandler wires the whole service graph: repo, summary engine with its
// cache, file registry, activity recorder, and the summary hooks on the
// conversation service. Rabbit may be nil; regeneration then runs inline.
func NewHandler(db *gorm.DB, cfg config.Config, rds *redisstore.Store, rabbit *rabbitmq.Publisher, log zerolog.Logger) *Handler {
	repo := conversation.NewRepo(db)
	convSvc := conversation.NewService(repo, log)

	summarizer, err := ai.SummarizerFromConfig(cfg)
	if err != nil {
		panic(fmt.Sprintf("unsupported AI_PROVIDER=%q: %v", cfg.AIProvider, err))
	}

	sumSvc := summary.NewService(repo, rds, summarizer, log)
	convSvc.RegisterCreateHook(sumSvc.CreateHook())
	convSvc.RegisterAppendHook(sumSvc.AppendHook())
	if cfg.MarkStaleOnEdit {
		convSvc.RegisterEditHook(sumSvc.EditHook())
	}

	return &Handler{
		DB:       db,
		Cfg:      cfg,
		Redis:    rds,
		Rabbit:   rabbit,
		ConvSvc:  convSvc,
		SumSvc:   sumSvc,
		FileSvc:  files.NewService(db, log),
		Activity: activity.NewRecorder(db, log),
		Log:      log,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	ok(c, gin.H{"message": "pong"})
}

// audit records one activity row with the request's client metadata.
func (h *Handler) audit(c *gin.Context, uid uint64, action, resourceType, resourceID string, details map[string]any) {
	h.Activity.Record(c.Request.Context(), activity.Entry{
		UserID:       &uid,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		IPAddress:    c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
	})
}

// ok and fail are package-local shorthands for the shared envelope.
func ok(c *gin.Context, data any) {
	common.OK(c, data)
}

func fail(c *gin.Context, httpStatus int, code int, msg string) {
	common.Fail(c, httpStatus, code, msg)
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

// svcFail maps domain sentinels onto the response envelope.
func svcFail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, conversation.ErrNotFound), errors.Is(err, files.ErrNotFound):
		fail(c, http.StatusNotFound, 40400, err.Error())
	case errors.Is(err, conversation.ErrValidation):
		fail(c, http.StatusBadRequest, 40001, err.Error())
	case errors.Is(err, conversation.ErrInvalidReference):
		fail(c, http.StatusBadRequest, 40002, err.Error())
	case errors.Is(err, files.ErrDuplicateContent):
		fail(c, http.StatusConflict, 40901, err.Error())
	case errors.Is(err, files.ErrInvalidTransition):
		fail(c, http.StatusConflict, 40902, err.Error())
	default:
		fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}

// ownedConversation loads the conversation and hides its existence from
// other users.
func (h *Handler) ownedConversation(c *gin.Context, uid uint64, id string) (*conversation.Conversation, bool) {
	conv, err := h.ConvSvc.GetConversation(c.Request.Context(), id)
	if err != nil {
		svcFail(c, err)
		return nil, false
	}
	if conv.UserID != uid {
		fail(c, http.StatusNotFound, 40400, "conversation not found")
		return nil, false
	}
	return conv, true
}

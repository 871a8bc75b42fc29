package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/suPer8Hu/convo-platform/internal/common"
	"github.com/suPer8Hu/convo-platform/internal/config"
	"github.com/suPer8Hu/convo-platform/internal/httpapi/handlers"
	"github.com/suPer8Hu/convo-platform/internal/httpapi/middleware"
	"github.com/suPer8Hu/convo-platform/internal/store/rabbitmq"
	"github.com/suPer8Hu/convo-platform/internal/store/redisstore"
)

func NewRouter(db *gorm.DB, cfg config.Config, rds *redisstore.Store, rabbit *rabbitmq.Publisher, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h := handlers.NewHandler(db, cfg, rds, rabbit, log)

	r.GET("/ping", h.Ping)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))

	// conversations and the version tree
	authGroup.POST("/conversations", h.CreateConversation)
	authGroup.GET("/conversations", h.ListConversations)
	authGroup.GET("/conversations/:conversation_id", h.GetConversation)
	authGroup.PATCH("/conversations/:conversation_id", h.RenameConversation)
	authGroup.DELETE("/conversations/:conversation_id", h.DeleteConversation)
	authGroup.PUT("/conversations/:conversation_id/versions", h.UpsertVersion)
	authGroup.POST("/conversations/:conversation_id/active-version", h.SetActiveVersion)

	// messages within a version
	authGroup.POST("/versions/:version_id/messages", h.AppendMessage)
	authGroup.GET("/versions/:version_id/messages", h.ListVersionMessages)
	authGroup.PATCH("/versions/:version_id/messages/:message_id", h.UpdateMessage)

	// summaries
	authGroup.GET("/conversations/:conversation_id/summary", h.GetSummary)
	authGroup.POST("/conversations/:conversation_id/summary", h.RegenerateSummary)

	// uploads and audit trail
	authGroup.POST("/files", h.UploadFile)
	authGroup.GET("/files", h.ListFiles)
	authGroup.GET("/files/:file_id", h.GetFile)
	authGroup.GET("/activity", h.ListActivity)

	return r
}

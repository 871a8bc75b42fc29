package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Action names are stable identifiers, treat them as part of the log schema.
const (
	ActionFileUpload         = "file_upload"
	ActionFileDelete         = "file_delete"
	ActionFileAccess         = "file_access"
	ActionConversationCreate = "conversation_create"
	ActionConversationDelete = "conversation_delete"
	ActionConversationEdit   = "conversation_edit"
	ActionMessageSend        = "message_send"
	ActionSummaryGenerate    = "summary_generate"
	ActionSummaryRegenerate  = "summary_regenerate"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ActivityLog is one audit row. UserID is nullable: background jobs act on
// nobody's behalf, and rows outlive their user.
type ActivityLog struct {
	ID           string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID       *uint64           `gorm:"index:idx_activity_user_time,priority:1" json:"user_id"`
	Action       string            `gorm:"type:varchar(50);not null;index:idx_activity_action_time,priority:1" json:"action"`
	ResourceType string            `gorm:"type:varchar(50);not null;index:idx_activity_resource,priority:1" json:"resource_type"`
	ResourceID   *string           `gorm:"type:varchar(100);index:idx_activity_resource,priority:2" json:"resource_id"`
	Details      datatypes.JSONMap `json:"details"`
	IPAddress    *string           `gorm:"type:varchar(45)" json:"ip_address,omitempty"`
	UserAgent    string            `gorm:"type:text" json:"user_agent,omitempty"`
	Status       string            `gorm:"type:varchar(20);not null;default:'success'" json:"status"`
	Timestamp    time.Time         `gorm:"index;index:idx_activity_user_time,priority:2;index:idx_activity_action_time,priority:2" json:"timestamp"`
}

func (ActivityLog) TableName() string { return "activity_logs" }

type Entry struct {
	UserID       *uint64
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]any
	IPAddress    string
	UserAgent    string
	Failed       bool
}

// Recorder appends audit rows. Recording is strictly best-effort: a failed
// insert is logged and swallowed so it can never fail the user action.
type Recorder struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewRecorder(db *gorm.DB, log zerolog.Logger) *Recorder {
	return &Recorder{db: db, log: log}
}

func (r *Recorder) Record(ctx context.Context, e Entry) {
	status := StatusSuccess
	if e.Failed {
		status = StatusFailed
	}

	row := ActivityLog{
		ID:           uuid.NewString(),
		UserID:       e.UserID,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		Details:      datatypes.JSONMap(e.Details),
		UserAgent:    e.UserAgent,
		Status:       status,
		Timestamp:    time.Now().UTC(),
	}
	if e.ResourceID != "" {
		row.ResourceID = &e.ResourceID
	}
	if e.IPAddress != "" {
		row.IPAddress = &e.IPAddress
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		r.log.Error().Err(err).Str("action", e.Action).Msg("activity record failed")
	}
}

// ListByUser returns the newest entries first, capped at limit.
func (r *Recorder) ListByUser(ctx context.Context, userID uint64, limit int) ([]ActivityLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []ActivityLog
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

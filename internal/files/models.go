package files

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// UploadedFile is file metadata with exact-duplicate detection. FileHash
// is the SHA-256 of the full content, computed once at upload and globally
// unique; ConversationID nulls out if the conversation is deleted.
type UploadedFile struct {
	ID             string  `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID         uint64  `gorm:"not null;index:idx_uploaded_files_user_uploaded,priority:1" json:"user_id"`
	ConversationID *string `gorm:"type:varchar(36);index" json:"conversation_id"`

	StorageKey string `gorm:"type:varchar(255);not null" json:"-"`
	Filename   string `gorm:"type:varchar(255);not null" json:"filename"`
	FileSize   int64  `gorm:"not null" json:"file_size"`
	FileType   string `gorm:"type:varchar(50)" json:"file_type"`
	FileHash   string `gorm:"type:varchar(64);uniqueIndex;not null" json:"file_hash"`

	Status Status `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	UploadedAt   time.Time  `gorm:"index:idx_uploaded_files_user_uploaded,priority:2" json:"uploaded_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	ErrorMessage *string    `gorm:"type:text" json:"error_message,omitempty"`

	MimeType  *string `gorm:"type:varchar(100)" json:"mime_type,omitempty"`
	PageCount *int    `json:"page_count,omitempty"`
	IsIndexed bool    `gorm:"not null;default:false" json:"is_indexed"`
}

func (UploadedFile) TableName() string { return "uploaded_files" }

// terminal reports whether no further status transition is allowed.
func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

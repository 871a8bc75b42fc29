package conversation

import "time"

type Role struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement" json:"-"`
	Name string `gorm:"type:varchar(20);uniqueIndex;not null" json:"name"`
}

func (Role) TableName() string { return "roles" }

// Conversation owns a forest of versions. Exactly one version may be the
// active one at a time; activeness lives here as a nullable pointer, a
// Version row carries no flag of its own.
type Conversation struct {
	ID                 string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title              string     `gorm:"type:varchar(100);not null" json:"title"`
	UserID             uint64     `gorm:"not null;index:idx_conversations_user_created,priority:1" json:"-"`
	ActiveVersionID    *string    `gorm:"type:varchar(36)" json:"active_version"`
	Summary            *string    `gorm:"type:text" json:"summary,omitempty"`
	SummaryGeneratedAt *time.Time `json:"summary_generated_at,omitempty"`
	IsSummaryStale     bool       `gorm:"not null;default:true;index" json:"is_summary_stale"`
	CreatedAt          time.Time  `gorm:"index:idx_conversations_user_created,priority:2" json:"created_at"`
	ModifiedAt         time.Time  `json:"modified_at"`
	DeletedAt          *time.Time `json:"-"`
}

func (Conversation) TableName() string { return "conversations" }

// Version is one branch of the conversation's history. ParentVersionID and
// RootMessageID are nulled, not cascaded, when their targets go away.
type Version struct {
	ID              string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ConversationID  string    `gorm:"type:varchar(36);not null;index" json:"conversation_id"`
	ParentVersionID *string   `gorm:"type:varchar(36);index" json:"parent_version"`
	RootMessageID   *string   `gorm:"type:varchar(36)" json:"root_message"`
	CreatedAt       time.Time `json:"-"`
}

func (Version) TableName() string { return "versions" }

// Message ordering within a version is (created_at, seq); seq breaks ties
// when two appends land on the same timestamp.
type Message struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	VersionID string    `gorm:"type:varchar(36);not null;index:idx_messages_version_order,priority:1" json:"-"`
	RoleID    uint64    `gorm:"not null" json:"-"`
	Role      Role      `gorm:"foreignKey:RoleID" json:"-"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Seq       int64     `gorm:"not null" json:"-"`
	CreatedAt time.Time `gorm:"index:idx_messages_version_order,priority:2" json:"created_at"`
}

func (Message) TableName() string { return "messages" }

package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateConversation(ctx context.Context, c *Conversation) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *Repo) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var c Conversation
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &c, nil
}

func (r *Repo) ListConversations(ctx context.Context, userID uint64) ([]Conversation, error) {
	var convs []Conversation
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&convs).Error; err != nil {
		return nil, err
	}
	return convs, nil
}

func (r *Repo) UpdateConversationTitle(ctx context.Context, id, title string) error {
	return r.db.WithContext(ctx).Model(&Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{"title": title, "modified_at": time.Now().UTC()}).Error
}

// SetActiveVersion validates ownership and flips the pointer in one
// transaction. Concurrent callers are last-write-wins; the belongs-to
// invariant still holds because the check and the write share the tx.
func (r *Repo) SetActiveVersion(ctx context.Context, conversationID, versionID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var v Version
		if err := tx.First(&v, "id = ?", versionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("version %s: %w", versionID, ErrNotFound)
			}
			return err
		}
		if v.ConversationID != conversationID {
			return fmt.Errorf("version %s belongs to conversation %s: %w",
				versionID, v.ConversationID, ErrInvalidReference)
		}
		return tx.Model(&Conversation{}).
			Where("id = ?", conversationID).
			Update("active_version_id", versionID).Error
	})
}

func (r *Repo) CreateVersion(ctx context.Context, v *Version) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *Repo) GetVersion(ctx context.Context, id string) (*Version, error) {
	var v Version
	if err := r.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("version %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &v, nil
}

func (r *Repo) ListVersions(ctx context.Context, conversationID string) ([]Version, error) {
	var versions []Version
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&versions).Error; err != nil {
		return nil, err
	}
	return versions, nil
}

// UpdateVersionRefs persists the two mutable fields of a version.
func (r *Repo) UpdateVersionRefs(ctx context.Context, v *Version) error {
	return r.db.WithContext(ctx).Model(&Version{}).
		Where("id = ?", v.ID).
		Updates(map[string]any{
			"parent_version_id": v.ParentVersionID,
			"root_message_id":   v.RootMessageID,
		}).Error
}

// AppendMessage assigns the next per-version sequence number, inserts the
// row and touches the owning conversation's modified_at, all in one tx.
func (r *Repo) AppendMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var v Version
		if err := tx.First(&v, "id = ?", m.VersionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("version %s: %w", m.VersionID, ErrNotFound)
			}
			return err
		}

		var maxSeq int64
		if err := tx.Model(&Message{}).
			Where("version_id = ?", m.VersionID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}
		m.Seq = maxSeq + 1

		if err := tx.Create(m).Error; err != nil {
			return err
		}

		return tx.Model(&Conversation{}).
			Where("id = ?", v.ConversationID).
			Update("modified_at", time.Now().UTC()).Error
	})
}

func (r *Repo) GetMessage(ctx context.Context, versionID, messageID string) (*Message, error) {
	var m Message
	if err := r.db.WithContext(ctx).
		Preload("Role").
		Where("id = ? AND version_id = ?", messageID, versionID).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("message %s in version %s: %w", messageID, versionID, ErrNotFound)
		}
		return nil, err
	}
	return &m, nil
}

func (r *Repo) GetMessageByID(ctx context.Context, id string) (*Message, error) {
	var m Message
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &m, nil
}

func (r *Repo) UpdateMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Model(&Message{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{"content": m.Content, "role_id": m.RoleID}).Error
}

func (r *Repo) ListVersionMessages(ctx context.Context, versionID string) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Preload("Role").
		Where("version_id = ?", versionID).
		Order("created_at ASC, seq ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// CountMessages counts messages across every version of the conversation.
func (r *Repo) CountMessages(ctx context.Context, conversationID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Message{}).
		Where("version_id IN (?)",
			r.db.Model(&Version{}).Select("id").Where("conversation_id = ?", conversationID)).
		Count(&n).Error
	return n, err
}

// ListEarliestMessages returns the conversation's oldest messages across
// all versions, in chronological order, with roles preloaded.
func (r *Repo) ListEarliestMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Preload("Role").
		Where("version_id IN (?)",
			r.db.Model(&Version{}).Select("id").Where("conversation_id = ?", conversationID)).
		Order("created_at ASC, seq ASC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *Repo) GetOrCreateRole(ctx context.Context, name string) (*Role, error) {
	var role Role
	if err := r.db.WithContext(ctx).
		Where(Role{Name: name}).
		FirstOrCreate(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// Summary persistence used by the summary engine.

func (r *Repo) SetSummary(ctx context.Context, id, summary string, generatedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"summary":              summary,
			"summary_generated_at": generatedAt,
			"is_summary_stale":     false,
		}).Error
}

func (r *Repo) MarkSummaryStale(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Conversation{}).
		Where("id = ?", id).
		Update("is_summary_stale", true).Error
}

// ConversationsMissingSummary finds conversations with no summary yet and
// at least one message, oldest first.
func (r *Repo) ConversationsMissingSummary(ctx context.Context, limit int) ([]Conversation, error) {
	var convs []Conversation
	err := r.db.WithContext(ctx).
		Where("summary IS NULL").
		Where("id IN (?)",
			r.db.Model(&Version{}).Select("DISTINCT conversation_id").
				Where("id IN (?)", r.db.Model(&Message{}).Select("DISTINCT version_id"))).
		Order("created_at ASC").
		Limit(limit).
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}

// DeleteConversation hard-deletes the conversation, cascading its versions
// and messages. References that only null out on delete (uploaded file
// attachments) are cleared in the same tx.
func (r *Repo) DeleteConversation(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		versionIDs := tx.Model(&Version{}).Select("id").Where("conversation_id = ?", id)

		if err := tx.Where("version_id IN (?)", versionIDs).Delete(&Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&Version{}).Error; err != nil {
			return err
		}
		if err := tx.Table("uploaded_files").
			Where("conversation_id = ?", id).
			Update("conversation_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&Conversation{}, "id = ?", id).Error
	})
}

func (r *Repo) retentionScope(ctx context.Context, cutoff time.Time, username string) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&Conversation{}).Where("created_at < ?", cutoff)
	if username != "" {
		q = q.Where("user_id IN (?)",
			r.db.Table("users").Select("id").Where("username = ?", username))
	}
	return q
}

func (r *Repo) CountConversationsOlderThan(ctx context.Context, cutoff time.Time, username string) (int64, error) {
	var n int64
	err := r.retentionScope(ctx, cutoff, username).Count(&n).Error
	return n, err
}

type RetentionPreview struct {
	ID           string
	Title        string
	MessageCount int64
}

func (r *Repo) PreviewConversationsOlderThan(ctx context.Context, cutoff time.Time, username string, limit int) ([]RetentionPreview, error) {
	var convs []Conversation
	if err := r.retentionScope(ctx, cutoff, username).
		Order("created_at ASC").
		Limit(limit).
		Find(&convs).Error; err != nil {
		return nil, err
	}

	out := make([]RetentionPreview, 0, len(convs))
	for _, c := range convs {
		n, err := r.CountMessages(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, RetentionPreview{ID: c.ID, Title: c.Title, MessageCount: n})
	}
	return out, nil
}

// DeleteConversationsOlderThan hard-deletes every matching conversation and
// returns how many were removed. Irreversible; callers wanting a dry run
// use Count/Preview first.
func (r *Repo) DeleteConversationsOlderThan(ctx context.Context, cutoff time.Time, username string) (int64, error) {
	var ids []string
	if err := r.retentionScope(ctx, cutoff, username).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}

	var deleted int64
	for _, id := range ids {
		if err := r.DeleteConversation(ctx, id); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

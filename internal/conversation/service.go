package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const MaxTitleLen = 100

// Hook is a post-commit side effect fired with the owning conversation id.
// Hooks run synchronously on the caller's goroutine and must absorb their
// own failures; the triggering write has already committed.
type Hook func(ctx context.Context, conversationID string)

type Service struct {
	repo *Repo
	log  zerolog.Logger

	createHooks []Hook
	appendHooks []Hook
	editHooks   []Hook
}

func NewService(repo *Repo, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// RegisterCreateHook fires after a conversation is created.
func (s *Service) RegisterCreateHook(h Hook) { s.createHooks = append(s.createHooks, h) }

// RegisterAppendHook fires after a message append commits.
func (s *Service) RegisterAppendHook(h Hook) { s.appendHooks = append(s.appendHooks, h) }

// RegisterEditHook fires after a message edit commits.
func (s *Service) RegisterEditHook(h Hook) { s.editHooks = append(s.editHooks, h) }

func (s *Service) fire(ctx context.Context, hooks []Hook, conversationID string) {
	for _, h := range hooks {
		h(ctx, conversationID)
	}
}

func (s *Service) CreateConversation(ctx context.Context, userID uint64, title string) (*Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("title must not be empty: %w", ErrValidation)
	}
	if len(title) > MaxTitleLen {
		return nil, fmt.Errorf("title exceeds %d characters: %w", MaxTitleLen, ErrValidation)
	}

	now := time.Now().UTC()
	c := &Conversation{
		ID:             uuid.NewString(),
		Title:          title,
		UserID:         userID,
		IsSummaryStale: true,
		CreatedAt:      now,
		ModifiedAt:     now,
	}
	if err := s.repo.CreateConversation(ctx, c); err != nil {
		return nil, err
	}

	s.fire(ctx, s.createHooks, c.ID)
	return c, nil
}

func (s *Service) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	return s.repo.GetConversation(ctx, id)
}

func (s *Service) ListConversations(ctx context.Context, userID uint64) ([]Conversation, error) {
	return s.repo.ListConversations(ctx, userID)
}

func (s *Service) RenameConversation(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" || len(title) > MaxTitleLen {
		return fmt.Errorf("title: %w", ErrValidation)
	}
	if _, err := s.repo.GetConversation(ctx, id); err != nil {
		return err
	}
	return s.repo.UpdateConversationTitle(ctx, id, title)
}

func (s *Service) DeleteConversation(ctx context.Context, id string) error {
	if _, err := s.repo.GetConversation(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteConversation(ctx, id)
}

// validateParent checks that a prospective parent version exists and lives
// in the same conversation. Parents must already exist before assignment,
// which keeps the version forest cycle-free.
func (s *Service) validateParent(ctx context.Context, conversationID, parentID string) error {
	pv, err := s.repo.GetVersion(ctx, parentID)
	if err != nil {
		return err
	}
	if pv.ConversationID != conversationID {
		return fmt.Errorf("parent version %s belongs to conversation %s: %w",
			parentID, pv.ConversationID, ErrInvalidReference)
	}
	return nil
}

func (s *Service) validateRootMessage(ctx context.Context, conversationID, messageID string) error {
	m, err := s.repo.GetMessageByID(ctx, messageID)
	if err != nil {
		return err
	}
	v, err := s.repo.GetVersion(ctx, m.VersionID)
	if err != nil {
		return err
	}
	if v.ConversationID != conversationID {
		return fmt.Errorf("root message %s belongs to conversation %s: %w",
			messageID, v.ConversationID, ErrInvalidReference)
	}
	return nil
}

// CreateVersion attaches a new version to the conversation. It does not
// become the active version.
func (s *Service) CreateVersion(ctx context.Context, conversationID string, parentVersionID, rootMessageID *string) (*Version, error) {
	if _, err := s.repo.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	if parentVersionID != nil {
		if err := s.validateParent(ctx, conversationID, *parentVersionID); err != nil {
			return nil, err
		}
	}
	if rootMessageID != nil {
		if err := s.validateRootMessage(ctx, conversationID, *rootMessageID); err != nil {
			return nil, err
		}
	}

	v := &Version{
		ID:              uuid.NewString(),
		ConversationID:  conversationID,
		ParentVersionID: parentVersionID,
		RootMessageID:   rootMessageID,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.repo.CreateVersion(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// SetActiveVersion branches the conversation to the given version. No
// history is deleted. There is no optimistic-concurrency token here:
// concurrent switches are last-write-wins.
func (s *Service) SetActiveVersion(ctx context.Context, conversationID, versionID string) error {
	if _, err := s.repo.GetConversation(ctx, conversationID); err != nil {
		return err
	}
	return s.repo.SetActiveVersion(ctx, conversationID, versionID)
}

func (s *Service) AppendMessage(ctx context.Context, versionID, roleName, content string) (*Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("content must not be empty: %w", ErrValidation)
	}
	roleName = strings.TrimSpace(roleName)
	if roleName == "" {
		return nil, fmt.Errorf("role is required: %w", ErrValidation)
	}

	v, err := s.repo.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	role, err := s.repo.GetOrCreateRole(ctx, roleName)
	if err != nil {
		return nil, err
	}

	m := &Message{
		ID:        uuid.NewString(),
		VersionID: versionID,
		RoleID:    role.ID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.AppendMessage(ctx, m); err != nil {
		return nil, err
	}
	m.Role = *role

	s.fire(ctx, s.appendHooks, v.ConversationID)
	return m, nil
}

// UpdateMessage partially updates a message scoped to its version.
func (s *Service) UpdateMessage(ctx context.Context, versionID, messageID string, newContent, newRole *string) (*Message, error) {
	m, err := s.repo.GetMessage(ctx, versionID, messageID)
	if err != nil {
		return nil, err
	}

	if newContent != nil {
		if strings.TrimSpace(*newContent) == "" {
			return nil, fmt.Errorf("content must not be empty: %w", ErrValidation)
		}
		m.Content = *newContent
	}
	if newRole != nil {
		role, err := s.repo.GetOrCreateRole(ctx, strings.TrimSpace(*newRole))
		if err != nil {
			return nil, err
		}
		m.RoleID = role.ID
		m.Role = *role
	}

	if err := s.repo.UpdateMessage(ctx, m); err != nil {
		return nil, err
	}

	v, err := s.repo.GetVersion(ctx, versionID)
	if err == nil {
		s.fire(ctx, s.editHooks, v.ConversationID)
	}
	return m, nil
}

// VersionSpec is the upsert payload for ReplaceOrCreateVersion: an id means
// update-in-place, no id means create. Message specs reconcile the same
// way: id present updates, absent appends.
type VersionSpec struct {
	ID              *string
	ParentVersionID *string
	RootMessageID   *string
	Messages        []MessageSpec
}

type MessageSpec struct {
	ID      *string
	Role    string
	Content string
}

// ReplaceOrCreateVersion implements the bulk-import upsert contract.
func (s *Service) ReplaceOrCreateVersion(ctx context.Context, conversationID string, spec VersionSpec) (*Version, error) {
	if _, err := s.repo.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	if spec.ID == nil || *spec.ID == "" {
		v, err := s.CreateVersion(ctx, conversationID, spec.ParentVersionID, spec.RootMessageID)
		if err != nil {
			return nil, err
		}
		for _, ms := range spec.Messages {
			if _, err := s.AppendMessage(ctx, v.ID, ms.Role, ms.Content); err != nil {
				return nil, err
			}
		}
		return v, nil
	}

	v, err := s.repo.GetVersion(ctx, *spec.ID)
	if err != nil {
		return nil, err
	}
	if v.ConversationID != conversationID {
		return nil, fmt.Errorf("version %s belongs to conversation %s: %w",
			v.ID, v.ConversationID, ErrInvalidReference)
	}
	if spec.ParentVersionID == nil && spec.RootMessageID == nil {
		return nil, fmt.Errorf("at least one of parent_version, root_message must be provided: %w", ErrValidation)
	}

	if spec.ParentVersionID != nil {
		if err := s.validateParent(ctx, conversationID, *spec.ParentVersionID); err != nil {
			return nil, err
		}
		v.ParentVersionID = spec.ParentVersionID
	}
	if spec.RootMessageID != nil {
		if err := s.validateRootMessage(ctx, conversationID, *spec.RootMessageID); err != nil {
			return nil, err
		}
		v.RootMessageID = spec.RootMessageID
	}
	if err := s.repo.UpdateVersionRefs(ctx, v); err != nil {
		return nil, err
	}

	for _, ms := range spec.Messages {
		if ms.ID != nil && *ms.ID != "" {
			var content, role *string
			if ms.Content != "" {
				c := ms.Content
				content = &c
			}
			if ms.Role != "" {
				r := ms.Role
				role = &r
			}
			if _, err := s.UpdateMessage(ctx, v.ID, *ms.ID, content, role); err != nil {
				return nil, err
			}
		} else {
			if _, err := s.AppendMessage(ctx, v.ID, ms.Role, ms.Content); err != nil {
				return nil, err
			}
		}
	}
	return v, nil
}

func (s *Service) GetVersion(ctx context.Context, id string) (*Version, error) {
	return s.repo.GetVersion(ctx, id)
}

func (s *Service) ListVersionMessages(ctx context.Context, versionID string) ([]Message, error) {
	if _, err := s.repo.GetVersion(ctx, versionID); err != nil {
		return nil, err
	}
	return s.repo.ListVersionMessages(ctx, versionID)
}

// Retention operations, consumed by the worker and the cleanup CLI.

func (s *Service) CountConversationsOlderThan(ctx context.Context, cutoff time.Time, username string) (int64, error) {
	return s.repo.CountConversationsOlderThan(ctx, cutoff, username)
}

func (s *Service) PreviewConversationsOlderThan(ctx context.Context, cutoff time.Time, username string, limit int) ([]RetentionPreview, error) {
	return s.repo.PreviewConversationsOlderThan(ctx, cutoff, username, limit)
}

func (s *Service) DeleteConversationsOlderThan(ctx context.Context, cutoff time.Time, username string) (int64, error) {
	n, err := s.repo.DeleteConversationsOlderThan(ctx, cutoff, username)
	if err != nil {
		s.log.Error().Err(err).Int64("deleted", n).Msg("retention cleanup aborted")
		return n, err
	}
	s.log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("retention cleanup done")
	return n, nil
}

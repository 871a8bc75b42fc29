package conversation

import (
	"context"
	"time"
)

// Read-side views used by the HTTP layer. A version's created_at is
// derived: the root message's timestamp when one is set, otherwise the
// conversation's own creation time, so an empty branch still reports a
// sensible age.

type MessageView struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type VersionView struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	ParentVersion  *string       `json:"parent_version"`
	RootMessage    *string       `json:"root_message"`
	Messages       []MessageView `json:"messages"`
	Active         bool          `json:"active"`
	CreatedAt      time.Time     `json:"created_at"`
}

type ConversationView struct {
	ID                 string        `json:"id"`
	Title              string        `json:"title"`
	ActiveVersion      *string       `json:"active_version"`
	Versions           []VersionView `json:"versions"`
	Summary            *string       `json:"summary,omitempty"`
	SummaryGeneratedAt *time.Time    `json:"summary_generated_at,omitempty"`
	IsSummaryStale     bool          `json:"is_summary_stale"`
	CreatedAt          time.Time     `json:"created_at"`
	ModifiedAt         time.Time     `json:"modified_at"`
}

func messageViews(msgs []Message) []MessageView {
	out := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageView{
			ID:        m.ID,
			Role:      m.Role.Name,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	return out
}

func (s *Service) VersionView(ctx context.Context, v *Version) (*VersionView, error) {
	conv, err := s.repo.GetConversation(ctx, v.ConversationID)
	if err != nil {
		return nil, err
	}
	return s.versionView(ctx, conv, v)
}

func (s *Service) versionView(ctx context.Context, conv *Conversation, v *Version) (*VersionView, error) {
	msgs, err := s.repo.ListVersionMessages(ctx, v.ID)
	if err != nil {
		return nil, err
	}

	createdAt := conv.CreatedAt
	if v.RootMessageID != nil {
		if root, err := s.repo.GetMessageByID(ctx, *v.RootMessageID); err == nil {
			createdAt = root.CreatedAt
		}
	}

	active := conv.ActiveVersionID != nil && *conv.ActiveVersionID == v.ID

	return &VersionView{
		ID:             v.ID,
		ConversationID: v.ConversationID,
		ParentVersion:  v.ParentVersionID,
		RootMessage:    v.RootMessageID,
		Messages:       messageViews(msgs),
		Active:         active,
		CreatedAt:      createdAt,
	}, nil
}

func (s *Service) ConversationView(ctx context.Context, id string) (*ConversationView, error) {
	conv, err := s.repo.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	versions, err := s.repo.ListVersions(ctx, id)
	if err != nil {
		return nil, err
	}

	views := make([]VersionView, 0, len(versions))
	for i := range versions {
		vv, err := s.versionView(ctx, conv, &versions[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *vv)
	}

	return &ConversationView{
		ID:                 conv.ID,
		Title:              conv.Title,
		ActiveVersion:      conv.ActiveVersionID,
		Versions:           views,
		Summary:            conv.Summary,
		SummaryGeneratedAt: conv.SummaryGeneratedAt,
		IsSummaryStale:     conv.IsSummaryStale,
		CreatedAt:          conv.CreatedAt,
		ModifiedAt:         conv.ModifiedAt,
	}, nil
}

package files

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateContent means a file with byte-identical content was
	// already uploaded.
	ErrDuplicateContent = errors.New("duplicate content")

	ErrNotFound = errors.New("file not found")

	// ErrInvalidTransition guards the status machine:
	// pending -> processing -> completed, failed from any non-terminal.
	ErrInvalidTransition = errors.New("invalid status transition")
)

type Service struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewService(db *gorm.DB, log zerolog.Logger) *Service {
	return &Service{db: db, log: log}
}

// Validate hashes the full byte stream and rejects exact duplicates before
// anything is persisted. Returns the hex digest for storage.
func (s *Service) Validate(ctx context.Context, r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashing upload: %w", err)
	}
	digest := hex.EncodeToString(h.Sum(nil))

	var n int64
	if err := s.db.WithContext(ctx).Model(&UploadedFile{}).
		Where("file_hash = ?", digest).
		Count(&n).Error; err != nil {
		return "", err
	}
	if n > 0 {
		return "", fmt.Errorf("file with hash %s: %w", digest, ErrDuplicateContent)
	}
	return digest, nil
}

type CreateInput struct {
	Content        io.Reader
	Filename       string
	Size           int64
	StorageKey     string
	UserID         uint64
	ConversationID *string
}

// Create validates the blob and persists its metadata with status pending.
// The type tag is whatever follows the last dot in the filename.
func (s *Service) Create(ctx context.Context, in CreateInput) (*UploadedFile, error) {
	digest, err := s.Validate(ctx, in.Content)
	if err != nil {
		return nil, err
	}

	fileType := ""
	if idx := strings.LastIndex(in.Filename, "."); idx >= 0 && idx < len(in.Filename)-1 {
		fileType = in.Filename[idx+1:]
	}

	storageKey := in.StorageKey
	if storageKey == "" {
		storageKey = "uploads/" + digest
	}

	f := &UploadedFile{
		ID:             uuid.NewString(),
		UserID:         in.UserID,
		ConversationID: in.ConversationID,
		StorageKey:     storageKey,
		Filename:       in.Filename,
		FileSize:       in.Size,
		FileType:       fileType,
		FileHash:       digest,
		Status:         StatusPending,
		UploadedAt:     time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		// a concurrent identical upload can win the race between the
		// pre-check and this insert; the unique index on file_hash is
		// the arbiter, so its violation is still a duplicate
		if isDuplicateHash(err) {
			return nil, fmt.Errorf("file with hash %s: %w", digest, ErrDuplicateContent)
		}
		return nil, err
	}
	return f, nil
}

func isDuplicateHash(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	// mysql 1062 / sqlite unique violation
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint")
}

func (s *Service) Get(ctx context.Context, id string) (*UploadedFile, error) {
	var f UploadedFile
	if err := s.db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("file %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &f, nil
}

func (s *Service) GetByHash(ctx context.Context, digest string) (*UploadedFile, error) {
	var f UploadedFile
	if err := s.db.WithContext(ctx).First(&f, "file_hash = ?", digest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("file hash %s: %w", digest, ErrNotFound)
		}
		return nil, err
	}
	return &f, nil
}

func (s *Service) ListByOwner(ctx context.Context, userID uint64) ([]UploadedFile, error) {
	var out []UploadedFile
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("uploaded_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) transition(ctx context.Context, id string, to Status, updates map[string]any) error {
	f, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	allowed := false
	switch to {
	case StatusProcessing:
		allowed = f.Status == StatusPending
	case StatusCompleted:
		allowed = f.Status == StatusProcessing
	case StatusFailed:
		allowed = !f.Status.terminal()
	}
	if !allowed {
		return fmt.Errorf("%s -> %s: %w", f.Status, to, ErrInvalidTransition)
	}

	updates["status"] = to
	return s.db.WithContext(ctx).Model(&UploadedFile{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (s *Service) MarkProcessing(ctx context.Context, id string) error {
	return s.transition(ctx, id, StatusProcessing, map[string]any{})
}

func (s *Service) MarkCompleted(ctx context.Context, id string, mimeType *string, pageCount *int) error {
	now := time.Now().UTC()
	return s.transition(ctx, id, StatusCompleted, map[string]any{
		"processed_at": now,
		"mime_type":    mimeType,
		"page_count":   pageCount,
	})
}

func (s *Service) MarkFailed(ctx context.Context, id, errMsg string) error {
	now := time.Now().UTC()
	return s.transition(ctx, id, StatusFailed, map[string]any{
		"processed_at":  now,
		"error_message": errMsg,
	})
}

func (s *Service) MarkIndexed(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&UploadedFile{}).
		Where("id = ?", id).
		Update("is_indexed", true).Error
}

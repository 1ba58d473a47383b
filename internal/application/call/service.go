package call

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/go-site-api/internal/domain"
	s3infra "github.com/go-site-api/internal/infrastructure/s3"
	"github.com/go-site-api/internal/pkg/id"
)

// Recordings is the S3-shaped interface for call audio objects.
type Recordings interface {
	UploadBase64(ctx context.Context, key, b64Data string) (string, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Store is the minimal persistence interface for call metadata.
type Store interface {
	Put(ctx context.Context, c *domain.CallRecording) error
	Get(ctx context.Context, callID string) (*domain.CallRecording, error)
	ListByUser(ctx context.Context, userID string) ([]domain.CallRecording, error)
	Scan(ctx context.Context) ([]domain.CallRecording, error)
	Delete(ctx context.Context, callID string) error
}

type SubmitInput struct {
	Title       string
	Description string
	Filename    string
	Base64Audio string
	UserID      string
}

// Service manages listener-submitted podcast calls: audio in S3, metadata in
// the call table. No transcoding happens here.
type Service struct {
	recordings Recordings
	calls      Store
}

func NewService(recordings Recordings, calls Store) *Service {
	return &Service{recordings: recordings, calls: calls}
}

func (s *Service) Submit(ctx context.Context, input SubmitInput) (*domain.CallRecording, error) {
	safeName := sanitizeFilename(input.Filename)
	key := fmt.Sprintf("calls/%s/%s", input.UserID, safeName)
	if _, err := s.recordings.UploadBase64(ctx, key, input.Base64Audio); err != nil {
		return nil, fmt.Errorf("upload recording: %w", err)
	}
	size := int64(base64.StdEncoding.DecodedLen(len(input.Base64Audio)))
	c := &domain.CallRecording{
		CallID:      id.New(),
		UserID:      input.UserID,
		Title:       input.Title,
		Description: input.Description,
		Object:      key,
		Size:        size,
		ContentType: s3infra.AudioContentType(safeName),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.calls.Put(ctx, c); err != nil {
		return nil, fmt.Errorf("store call: %w", err)
	}
	return c, nil
}

// List returns the caller's own submissions, or the whole review queue for
// admins.
func (s *Service) List(ctx context.Context, requesterID string, isAdmin bool) ([]domain.CallRecording, error) {
	if isAdmin {
		return s.calls.Scan(ctx)
	}
	return s.calls.ListByUser(ctx, requesterID)
}

func (s *Service) Get(ctx context.Context, callID, requesterID string, isAdmin bool) (*domain.CallRecording, error) {
	c, err := s.calls.Get(ctx, callID)
	if err != nil {
		return nil, err
	}
	if c.UserID != requesterID && !isAdmin {
		return nil, fmt.Errorf("access denied: %w", domain.ErrForbidden)
	}
	return c, nil
}

// Audio streams the recording bytes for a call the requester may access.
func (s *Service) Audio(ctx context.Context, callID, requesterID string, isAdmin bool) (io.ReadCloser, *domain.CallRecording, error) {
	c, err := s.Get(ctx, callID, requesterID, isAdmin)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.recordings.Download(ctx, c.Object)
	if err != nil {
		return nil, nil, err
	}
	return rc, c, nil
}

func (s *Service) Remove(ctx context.Context, callID, requesterID string, isAdmin bool) error {
	c, err := s.Get(ctx, callID, requesterID, isAdmin)
	if err != nil {
		return err
	}
	if err := s.recordings.Delete(ctx, c.Object); err != nil {
		return fmt.Errorf("delete recording: %w", err)
	}
	return s.calls.Delete(ctx, callID)
}

// sanitizeFilename strips directory components and keeps only safe characters
// (alphanumeric, dot, dash, underscore) to prevent path traversal in S3 keys.
func sanitizeFilename(name string) string {
	name = path.Base(name)
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if result := b.String(); result != "" && result != "." && result != ".." {
		return result
	}
	return "recording"
}

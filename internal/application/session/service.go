package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-site-api/internal/domain"
	"github.com/go-site-api/internal/pkg/id"
)

// Store is the minimal persistence interface for session records.
type Store interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	UpdateExpiration(ctx context.Context, sessionID string, expiration time.Time) error
	Delete(ctx context.Context, sessionID string) error
}

// UserStore resolves session owners.
type UserStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

// Service owns the server-side session record lifecycle: create on sign-in,
// lazy purge on first access past expiry, sliding renewal near expiry,
// delete on sign-out. The cookie layer sits on top of it.
type Service struct {
	sessions Store
	users    UserStore
	expiry   time.Duration
	now      func() time.Time
}

func NewService(sessions Store, users UserStore, expiry time.Duration) *Service {
	return &Service{sessions: sessions, users: users, expiry: expiry, now: time.Now}
}

// Expiry is the full lifetime granted to new and freshly renewed sessions.
func (s *Service) Expiry() time.Duration { return s.expiry }

// Create persists a new session record for userID. Multiple live sessions
// per user are expected — one per signed-in device.
func (s *Service) Create(ctx context.Context, userID string) (*domain.Session, error) {
	now := s.now().UTC()
	sess := &domain.Session{
		SessionID:      id.New(),
		UserID:         userID,
		ExpirationDate: now.Add(s.expiry),
		CreatedAt:      now,
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// GetUser resolves the user behind a session id. A missing or expired record
// yields (nil, nil) — logged out, not an error. Expired records are purged
// on the access that discovers them. A record inside its renewal window gets
// its expiration pushed out to a full fresh term; the extension only ever
// increases the expiration date.
func (s *Service) GetUser(ctx context.Context, sessionID string) (*domain.User, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	now := s.now()
	if sess.Expired(now) {
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			slog.Warn("failed to purge expired session", "session_id", sessionID, "err", err)
		}
		return nil, nil
	}
	if sess.ExpirationDate.Sub(now) < s.expiry/2 {
		if err := s.sessions.UpdateExpiration(ctx, sessionID, now.Add(s.expiry)); err != nil {
			// Renewal is best-effort; the session stays valid either way.
			slog.Warn("failed to renew session", "session_id", sessionID, "err", err)
		}
	}
	u, err := s.users.Get(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session user: %w", err)
	}
	return u, nil
}

// Delete removes a session record. Missing records are fine — sign-out is
// idempotent.
func (s *Service) Delete(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

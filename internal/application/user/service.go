package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-site-api/internal/domain"
	"github.com/go-site-api/internal/pkg/id"
)

// Store is the minimal persistence interface for user records.
type Store interface {
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateRole(ctx context.Context, userID, role string) error
	ConfirmPhone(ctx context.Context, userID, phone string) error
	Delete(ctx context.Context, userID string) error
	ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error)
}

// SessionStore lets account removal drop every live sign-in with it.
type SessionStore interface {
	DeleteByUser(ctx context.Context, userID string) error
}

// Service manages user accounts. There are no passwords anywhere — email
// possession (magic link or code) is the only credential.
type Service struct {
	users         Store
	sessions      SessionStore
	operatorEmail string
}

func NewService(users Store, sessions SessionStore, operatorEmail string) *Service {
	return &Service{users: users, sessions: sessions, operatorEmail: operatorEmail}
}

// FindOrCreate returns the account for a verified email, provisioning one on
// first sign-in. The operator email gets the admin role.
func (s *Service) FindOrCreate(ctx context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	operator := s.operatorEmail != "" && email == strings.ToLower(s.operatorEmail)
	u, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		// Promote accounts that predate the operator designation.
		if operator && !u.IsAdmin() {
			if err := s.users.UpdateRole(ctx, u.UserID, domain.RoleAdmin); err != nil {
				return nil, fmt.Errorf("promote operator: %w", err)
			}
			u.Role = domain.RoleAdmin
		}
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	role := domain.RoleMember
	if operator {
		role = domain.RoleAdmin
	}
	now := time.Now().UTC()
	u = &domain.User{
		UserID:    id.New(),
		Email:     email,
		FirstName: firstNameFromEmail(email),
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Put(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// ConfirmPhone marks a phone number as verified on the account. Called only
// after the texted code has been consumed.
func (s *Service) ConfirmPhone(ctx context.Context, userID, phone string) error {
	if err := s.users.ConfirmPhone(ctx, userID, phone); err != nil {
		return fmt.Errorf("confirm phone: %w", err)
	}
	return nil
}

// List returns a page of accounts for the admin screen.
func (s *Service) List(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.users.ScanPage(ctx, limit, cursor)
}

// Remove deletes an account and every session signed in with it.
func (s *Service) Remove(ctx context.Context, userID string) error {
	if _, err := s.users.Get(ctx, userID); err != nil {
		return err
	}
	if err := s.sessions.DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return s.users.Delete(ctx, userID)
}

// firstNameFromEmail seeds a display name from the address local part.
func firstNameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return "Friend"
	}
	return local
}

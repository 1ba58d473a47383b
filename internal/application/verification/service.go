package verification

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/url"
	"time"

	"github.com/go-site-api/internal/domain"
	"github.com/go-site-api/internal/pkg/id"
)

const (
	Digits    = 6
	charSet   = "0123456789"
	algorithm = "SHA-256"

	// VerifyPath is where the web client submits codes.
	VerifyPath = "/verify"

	DefaultPeriod = 10 * time.Minute
)

// Store is the minimal persistence interface the service requires.
type Store interface {
	Put(ctx context.Context, v *domain.Verification) error
	Get(ctx context.Context, target, verType string) (*domain.Verification, error)
	Delete(ctx context.Context, target, verType string) error
}

// Prepared is what a fresh code issuance hands back: the raw code for the
// delivery channel, a URL that carries everything needed to verify in one
// click, and the page the UI should land on to type the code manually.
type Prepared struct {
	Code       string
	VerifyURL  string
	RedirectTo string
}

// Service issues and validates single-use numeric verification codes.
type Service struct {
	store     Store
	domainURL string
	now       func() time.Time
}

func NewService(store Store, domainURL string) *Service {
	return &Service{store: store, domainURL: domainURL, now: time.Now}
}

// Prepare replaces any outstanding code for (target, type) with a fresh one.
// Delete-then-insert keeps at most one active code per pair; two concurrent
// Prepare calls for the same pair race, and the last writer's code wins.
func (s *Service) Prepare(ctx context.Context, target, verType string, period time.Duration) (*Prepared, error) {
	if period == 0 {
		period = DefaultPeriod
	}
	if err := s.store.Delete(ctx, target, verType); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("clear previous verification: %w", err)
	}
	code, err := generateCode(Digits)
	if err != nil {
		return nil, err
	}
	now := s.now()
	v := &domain.Verification{
		ID:        id.New(),
		Target:    target,
		Type:      verType,
		Secret:    code,
		Algorithm: algorithm,
		Digits:    Digits,
		Period:    int64(period.Seconds()),
		CharSet:   charSet,
		ExpiresAt: now.Add(period).Unix(),
		CreatedAt: now.Unix(),
	}
	if err := s.store.Put(ctx, v); err != nil {
		return nil, fmt.Errorf("store verification: %w", err)
	}
	return &Prepared{
		Code:       code,
		VerifyURL:  s.verifyURL(target, verType, code),
		RedirectTo: s.verifyURL(target, verType, ""),
	}, nil
}

// IsValid reports whether code is the active code for (target, type).
// "Never existed", "wrong code" and "expired" are indistinguishable to the
// caller, and so is a broken store: any store error is logged and treated as
// invalid rather than propagated. A matching code is consumed on the spot; a
// mismatch leaves the record alone so the user can retry until expiry.
func (s *Service) IsValid(ctx context.Context, code, verType, target string) bool {
	v, err := s.store.Get(ctx, target, verType)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("verification lookup failed", "target", target, "type", verType, "err", err)
		}
		return false
	}
	if v.ExpiresAt <= s.now().Unix() {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(v.Secret)) != 1 {
		return false
	}
	if err := s.store.Delete(ctx, target, verType); err != nil {
		// A code that can't be consumed would be reusable; treat it as
		// invalid like every other store fault.
		slog.Warn("failed to consume verification", "target", target, "type", verType, "err", err)
		return false
	}
	return true
}

func (s *Service) verifyURL(target, verType, code string) string {
	q := url.Values{}
	if code != "" {
		q.Set("code", code)
	}
	q.Set("type", verType)
	q.Set("target", target)
	return fmt.Sprintf("%s%s?%s", s.domainURL, VerifyPath, q.Encode())
}

func generateCode(digits int) (string, error) {
	b := make([]byte, digits)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charSet))))
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b[i] = charSet[n.Int64()]
	}
	return string(b), nil
}

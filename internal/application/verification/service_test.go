package verification

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-site-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockStore struct{ mock.Mock }

func (m *mockStore) Put(ctx context.Context, v *domain.Verification) error {
	return m.Called(ctx, v).Error(0)
}
func (m *mockStore) Get(ctx context.Context, target, verType string) (*domain.Verification, error) {
	args := m.Called(ctx, target, verType)
	if v, _ := args.Get(0).(*domain.Verification); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStore) Delete(ctx context.Context, target, verType string) error {
	return m.Called(ctx, target, verType).Error(0)
}

// --- helpers ---

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newSvc(ms *mockStore) *Service {
	svc := NewService(ms, "https://example.com")
	svc.now = func() time.Time { return testTime }
	return svc
}

func activeCode(code string) *domain.Verification {
	return &domain.Verification{
		ID:        "ver-1",
		Target:    "alice@example.com",
		Type:      domain.VerificationTypeLogin,
		Secret:    code,
		Algorithm: "SHA-256",
		Digits:    Digits,
		Period:    600,
		ExpiresAt: testTime.Add(5 * time.Minute).Unix(),
		CreatedAt: testTime.Add(-5 * time.Minute).Unix(),
	}
}

// --- Prepare tests ---

func TestPrepare(t *testing.T) {
	ms := &mockStore{}
	ms.On("Delete", mock.Anything, "alice@example.com", domain.VerificationTypeLogin).Return(domain.ErrNotFound)
	ms.On("Put", mock.Anything, mock.AnythingOfType("*domain.Verification")).Return(nil)

	p, err := newSvc(ms).Prepare(context.Background(), "alice@example.com", domain.VerificationTypeLogin, 0)

	require.NoError(t, err)
	assert.Len(t, p.Code, Digits)
	for _, r := range p.Code {
		assert.True(t, r >= '0' && r <= '9', "code %q has a non-digit", p.Code)
	}

	u, err := url.Parse(p.VerifyURL)
	require.NoError(t, err)
	assert.Equal(t, VerifyPath, u.Path)
	assert.Equal(t, p.Code, u.Query().Get("code"))
	assert.Equal(t, domain.VerificationTypeLogin, u.Query().Get("type"))
	assert.Equal(t, "alice@example.com", u.Query().Get("target"))

	// The redirect target is the same page without a prefilled code.
	assert.NotContains(t, p.RedirectTo, "code=")
	assert.Contains(t, p.RedirectTo, "target=")
}

func TestPrepare_ReplacesOutstandingCode(t *testing.T) {
	ms := &mockStore{}
	ms.On("Delete", mock.Anything, "alice@example.com", domain.VerificationTypeLogin).Return(nil)
	ms.On("Put", mock.Anything, mock.AnythingOfType("*domain.Verification")).Return(nil)

	_, err := newSvc(ms).Prepare(context.Background(), "alice@example.com", domain.VerificationTypeLogin, 0)

	require.NoError(t, err)
	ms.AssertCalled(t, "Delete", mock.Anything, "alice@example.com", domain.VerificationTypeLogin)
}

func TestPrepare_RecordFields(t *testing.T) {
	ms := &mockStore{}
	ms.On("Delete", mock.Anything, mock.Anything, mock.Anything).Return(domain.ErrNotFound)

	var stored *domain.Verification
	ms.On("Put", mock.Anything, mock.AnythingOfType("*domain.Verification")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.Verification) }).
		Return(nil)

	p, err := newSvc(ms).Prepare(context.Background(), "+15551234567", domain.VerificationTypeConfirmPhone, 5*time.Minute)

	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, p.Code, stored.Secret)
	assert.Equal(t, "+15551234567", stored.Target)
	assert.Equal(t, domain.VerificationTypeConfirmPhone, stored.Type)
	assert.Equal(t, int64(300), stored.Period)
	assert.Equal(t, testTime.Add(5*time.Minute).Unix(), stored.ExpiresAt)
}

func TestPrepare_DeleteError(t *testing.T) {
	ms := &mockStore{}
	ms.On("Delete", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("dynamo down"))

	_, err := newSvc(ms).Prepare(context.Background(), "alice@example.com", domain.VerificationTypeLogin, 0)

	require.Error(t, err)
	ms.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

// --- IsValid tests ---

func TestIsValid_MatchConsumesCode(t *testing.T) {
	ms := &mockStore{}
	ms.On("Get", mock.Anything, "alice@example.com", domain.VerificationTypeLogin).Return(activeCode("123456"), nil)
	ms.On("Delete", mock.Anything, "alice@example.com", domain.VerificationTypeLogin).Return(nil)

	ok := newSvc(ms).IsValid(context.Background(), "123456", domain.VerificationTypeLogin, "alice@example.com")

	assert.True(t, ok)
	ms.AssertCalled(t, "Delete", mock.Anything, "alice@example.com", domain.VerificationTypeLogin)
}

func TestIsValid_MismatchLeavesCodeAlone(t *testing.T) {
	ms := &mockStore{}
	ms.On("Get", mock.Anything, "alice@example.com", domain.VerificationTypeLogin).Return(activeCode("123456"), nil)

	ok := newSvc(ms).IsValid(context.Background(), "654321", domain.VerificationTypeLogin, "alice@example.com")

	assert.False(t, ok)
	ms.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestIsValid_NoActiveCode(t *testing.T) {
	ms := &mockStore{}
	ms.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)

	ok := newSvc(ms).IsValid(context.Background(), "123456", domain.VerificationTypeLogin, "alice@example.com")

	assert.False(t, ok)
}

func TestIsValid_ExpiredCode(t *testing.T) {
	ms := &mockStore{}
	v := activeCode("123456")
	v.ExpiresAt = testTime.Add(-time.Second).Unix()
	ms.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(v, nil)

	ok := newSvc(ms).IsValid(context.Background(), "123456", domain.VerificationTypeLogin, "alice@example.com")

	assert.False(t, ok)
	ms.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestIsValid_StoreErrorFailsClosed(t *testing.T) {
	ms := &mockStore{}
	ms.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("dynamo down"))

	ok := newSvc(ms).IsValid(context.Background(), "123456", domain.VerificationTypeLogin, "alice@example.com")

	assert.False(t, ok)
}

func TestIsValid_ConsumeFailureFailsClosed(t *testing.T) {
	ms := &mockStore{}
	ms.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(activeCode("123456"), nil)
	ms.On("Delete", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("dynamo down"))

	// An unconsumable code would be reusable, so it must not validate.
	ok := newSvc(ms).IsValid(context.Background(), "123456", domain.VerificationTypeLogin, "alice@example.com")

	assert.False(t, ok)
}

// --- generateCode tests ---

func TestGenerateCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		code, err := generateCode(Digits)
		require.NoError(t, err)
		assert.Len(t, code, Digits)
		assert.Equal(t, "", strings.Trim(code, "0123456789"))
		seen[code] = true
	}
	// 20 draws from a million-value space colliding down to one value would
	// mean the generator is broken.
	assert.Greater(t, len(seen), 1)
}

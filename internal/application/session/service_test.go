package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-site-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockStore struct{ mock.Mock }

func (m *mockStore) Put(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStore) UpdateExpiration(ctx context.Context, sessionID string, expiration time.Time) error {
	return m.Called(ctx, sessionID, expiration).Error(0)
}
func (m *mockStore) Delete(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newSvc(ss *mockStore, us *mockUserStore, expiry time.Duration) *Service {
	svc := NewService(ss, us, expiry)
	svc.now = func() time.Time { return testTime }
	return svc
}

func liveSession(remaining time.Duration) *domain.Session {
	return &domain.Session{
		SessionID:      "sess-1",
		UserID:         "user-1",
		ExpirationDate: testTime.Add(remaining),
		CreatedAt:      testTime.Add(-time.Hour),
	}
}

// --- Create tests ---

func TestCreate(t *testing.T) {
	ss, us := &mockStore{}, &mockUserStore{}
	ss.On("Put", mock.Anything, mock.AnythingOfType("*domain.Session")).Return(nil)

	sess, err := newSvc(ss, us, 30*24*time.Hour).Create(context.Background(), "user-1")

	require.NoError(t, err)
	assert.NotEmpty(t, sess.SessionID)
	assert.Equal(t, "user-1", sess.UserID)
	assert.Equal(t, testTime.Add(30*24*time.Hour), sess.ExpirationDate)
}

func TestCreate_StoreError(t *testing.T) {
	ss, us := &mockStore{}, &mockUserStore{}
	ss.On("Put", mock.Anything, mock.Anything).Return(errors.New("dynamo down"))

	_, err := newSvc(ss, us, time.Hour).Create(context.Background(), "user-1")

	require.Error(t, err)
}

// --- GetUser tests ---

func TestGetUser_LiveSession(t *testing.T) {
	ss, us := &mockStore{}, &mockUserStore{}
	ss.On("Get", mock.Anything, "sess-1").Return(liveSession(20*24*time.Hour), nil)
	us.On("Get", mock.Anything, "user-1").Return(&domain.User{UserID: "user-1", Email: "a@b.c"}, nil)

	u, err := newSvc(ss, us, 30*24*time.Hour).GetUser(context.Background(), "sess-1")

	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "user-1", u.UserID)
	// Well outside the renewal window: expiration untouched.
	ss.AssertNotCalled(t, "UpdateExpiration", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetUser_MissingSession(t *testing.T) {
	ss, us := &mockStore{}, &mockUserStore{}
	ss.On("Get", mock.Anything, "gone").Return(nil, domain.ErrNotFound)

	u, err := newSvc(ss, us, time.Hour).GetUser(context.Background(), "gone")

	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestGetUser_ExpiredSessionPurged(t *testing.T) {
	ss, us := &mockStore{}, &mockUserStore{}
	ss.On("Get", mock.Anything, "sess-1").Return(liveSession(-time.Minute), nil)
	ss.On("Delete", mock.Anything, "sess-1").Return(nil)

	u, err := newSvc(ss, us, time.Hour).GetUser(context.Background(), "sess-1")

	require.NoError(t, err)
	assert.Nil(t, u)
	ss.AssertCalled(t, "Delete", mock.Anything, "sess-1")
	us.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestGetUser_PurgeFailureStillLogsOut(t *testing.T) {
	ss, us := &mockStore{}, &mockUserStore{}
	ss.On("Get", mock.Anything, "sess-1").Return(liveSession(-time.Minute), nil)
	ss.On("Delete", mock.Anything, "sess-1").Return(errors.New("dynamo down"))

	u, err := newSvc(ss, us, time.Hour).GetUser(context.Background(), "sess-1")

	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestGetUser_RenewalInsideWindow(t *testing.T) {
	ss, us := &mockStore{}, &mockUserStore{}
	// 10 days left on a 30-day session: under half, renew to a full term.
	ss.On("Get", mock.Anything, "sess-1").Return(liveSession(10*24*time.Hour), nil)
	ss.On("UpdateExpiration", mock.Anything, "sess-1", testTime.Add(30*24*time.Hour)).Return(nil)
	us.On("Get", mock.Anything, "user-1").Return(&domain.User{UserID: "user-1"}, nil)

	u, err := newSvc(ss, us, 30*24*time.Hour).GetUser(context.Background(), "sess-1")

	require.NoError(t, err)
	require.NotNil(t, u)
	ss.AssertCalled(t, "UpdateExpiration", mock.Anything, "sess-1", testTime.Add(30*24*time.Hour))
}

func TestGetUser_RenewalFailureIsBestEffort(t *testing.T) {
	ss, us := &mockStore{}, &mockUserStore{}
	ss.On("Get", mock.Anything, "sess-1").Return(liveSession(10*24*time.Hour), nil)
	ss.On("UpdateExpiration", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("dynamo down"))
	us.On("Get", mock.Anything, "user-1").Return(&domain.User{UserID: "user-1"}, nil)

	u, err := newSvc(ss, us, 30*24*time.Hour).GetUser(context.Background(), "sess-1")

	require.NoError(t, err)
	assert.NotNil(t, u)
}

func TestGetUser_OrphanedSession(t *testing.T) {
	ss, us := &mockStore{}, &mockUserStore{}
	ss.On("Get", mock.Anything, "sess-1").Return(liveSession(20*24*time.Hour), nil)
	us.On("Get", mock.Anything, "user-1").Return(nil, domain.ErrNotFound)

	u, err := newSvc(ss, us, 30*24*time.Hour).GetUser(context.Background(), "sess-1")

	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestGetUser_StoreError(t *testing.T) {
	ss, us := &mockStore{}, &mockUserStore{}
	ss.On("Get", mock.Anything, "sess-1").Return(nil, errors.New("dynamo down"))

	_, err := newSvc(ss, us, time.Hour).GetUser(context.Background(), "sess-1")

	require.Error(t, err)
}

// --- Delete tests ---

func TestDelete_Idempotent(t *testing.T) {
	ss, us := &mockStore{}, &mockUserStore{}
	ss.On("Delete", mock.Anything, "gone").Return(domain.ErrNotFound)

	err := newSvc(ss, us, time.Hour).Delete(context.Background(), "gone")

	require.NoError(t, err)
}

func TestDelete_StoreError(t *testing.T) {
	ss, us := &mockStore{}, &mockUserStore{}
	ss.On("Delete", mock.Anything, "sess-1").Return(errors.New("dynamo down"))

	err := newSvc(ss, us, time.Hour).Delete(context.Background(), "sess-1")

	require.Error(t, err)
}

package call

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/go-site-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockRecordings struct{ mock.Mock }

func (m *mockRecordings) UploadBase64(ctx context.Context, key, b64Data string) (string, error) {
	args := m.Called(ctx, key, b64Data)
	return args.String(0), args.Error(1)
}
func (m *mockRecordings) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if rc, _ := args.Get(0).(io.ReadCloser); rc != nil {
		return rc, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockRecordings) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type mockStore struct{ mock.Mock }

func (m *mockStore) Put(ctx context.Context, c *domain.CallRecording) error {
	return m.Called(ctx, c).Error(0)
}
func (m *mockStore) Get(ctx context.Context, callID string) (*domain.CallRecording, error) {
	args := m.Called(ctx, callID)
	if c, _ := args.Get(0).(*domain.CallRecording); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStore) ListByUser(ctx context.Context, userID string) ([]domain.CallRecording, error) {
	args := m.Called(ctx, userID)
	calls, _ := args.Get(0).([]domain.CallRecording)
	return calls, args.Error(1)
}
func (m *mockStore) Scan(ctx context.Context) ([]domain.CallRecording, error) {
	args := m.Called(ctx)
	calls, _ := args.Get(0).([]domain.CallRecording)
	return calls, args.Error(1)
}
func (m *mockStore) Delete(ctx context.Context, callID string) error {
	return m.Called(ctx, callID).Error(0)
}

// --- helpers ---

func aliceCall() *domain.CallRecording {
	return &domain.CallRecording{
		CallID: "call-1",
		UserID: "user-1",
		Title:  "Question about episode 12",
		Object: "calls/user-1/question.mp3",
	}
}

// --- Submit tests ---

func TestSubmit(t *testing.T) {
	rec, st := &mockRecordings{}, &mockStore{}
	audio := base64.StdEncoding.EncodeToString([]byte("fake audio bytes"))
	rec.On("UploadBase64", mock.Anything, "calls/user-1/question.mp3", audio).Return("calls/user-1/question.mp3", nil)

	var stored *domain.CallRecording
	st.On("Put", mock.Anything, mock.AnythingOfType("*domain.CallRecording")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.CallRecording) }).
		Return(nil)

	c, err := NewService(rec, st).Submit(context.Background(), SubmitInput{
		Title:       "Question about episode 12",
		Filename:    "question.mp3",
		Base64Audio: audio,
		UserID:      "user-1",
	})

	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotEmpty(t, c.CallID)
	assert.Equal(t, "calls/user-1/question.mp3", c.Object)
	assert.Equal(t, "audio/mpeg", c.ContentType)
	assert.Greater(t, c.Size, int64(0))
}

func TestSubmit_SanitizesFilename(t *testing.T) {
	rec, st := &mockRecordings{}, &mockStore{}
	rec.On("UploadBase64", mock.Anything, "calls/user-1/passwd", mock.Anything).Return("", nil)
	st.On("Put", mock.Anything, mock.Anything).Return(nil)

	c, err := NewService(rec, st).Submit(context.Background(), SubmitInput{
		Title:       "sneaky",
		Filename:    "../../etc/passwd",
		Base64Audio: "YQ==",
		UserID:      "user-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "calls/user-1/passwd", c.Object)
}

func TestSubmit_UploadFailureSkipsMetadata(t *testing.T) {
	rec, st := &mockRecordings{}, &mockStore{}
	rec.On("UploadBase64", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("s3 down"))

	_, err := NewService(rec, st).Submit(context.Background(), SubmitInput{
		Filename: "a.mp3", Base64Audio: "YQ==", UserID: "user-1",
	})

	require.Error(t, err)
	st.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

// --- List tests ---

func TestList_MemberSeesOwnCalls(t *testing.T) {
	rec, st := &mockRecordings{}, &mockStore{}
	st.On("ListByUser", mock.Anything, "user-1").Return([]domain.CallRecording{*aliceCall()}, nil)

	calls, err := NewService(rec, st).List(context.Background(), "user-1", false)

	require.NoError(t, err)
	assert.Len(t, calls, 1)
	st.AssertNotCalled(t, "Scan", mock.Anything)
}

func TestList_AdminSeesQueue(t *testing.T) {
	rec, st := &mockRecordings{}, &mockStore{}
	st.On("Scan", mock.Anything).Return([]domain.CallRecording{*aliceCall(), {CallID: "call-2"}}, nil)

	calls, err := NewService(rec, st).List(context.Background(), "admin-1", true)

	require.NoError(t, err)
	assert.Len(t, calls, 2)
}

// --- Get / Audio tests ---

func TestGet_OwnerAndAdminAllowed(t *testing.T) {
	rec, st := &mockRecordings{}, &mockStore{}
	st.On("Get", mock.Anything, "call-1").Return(aliceCall(), nil)
	svc := NewService(rec, st)

	_, err := svc.Get(context.Background(), "call-1", "user-1", false)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "call-1", "admin-1", true)
	require.NoError(t, err)
}

func TestGet_StrangerForbidden(t *testing.T) {
	rec, st := &mockRecordings{}, &mockStore{}
	st.On("Get", mock.Anything, "call-1").Return(aliceCall(), nil)

	_, err := NewService(rec, st).Get(context.Background(), "call-1", "user-2", false)

	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestAudio_StreamsObject(t *testing.T) {
	rec, st := &mockRecordings{}, &mockStore{}
	st.On("Get", mock.Anything, "call-1").Return(aliceCall(), nil)
	rec.On("Download", mock.Anything, "calls/user-1/question.mp3").
		Return(io.NopCloser(strings.NewReader("audio bytes")), nil)

	rc, c, err := NewService(rec, st).Audio(context.Background(), "call-1", "user-1", false)

	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "audio bytes", string(data))
	assert.Equal(t, "call-1", c.CallID)
}

func TestAudio_ForbiddenSkipsDownload(t *testing.T) {
	rec, st := &mockRecordings{}, &mockStore{}
	st.On("Get", mock.Anything, "call-1").Return(aliceCall(), nil)

	_, _, err := NewService(rec, st).Audio(context.Background(), "call-1", "user-2", false)

	require.ErrorIs(t, err, domain.ErrForbidden)
	rec.AssertNotCalled(t, "Download", mock.Anything, mock.Anything)
}

// --- Remove tests ---

func TestRemove_DeletesObjectThenMetadata(t *testing.T) {
	rec, st := &mockRecordings{}, &mockStore{}
	st.On("Get", mock.Anything, "call-1").Return(aliceCall(), nil)
	rec.On("Delete", mock.Anything, "calls/user-1/question.mp3").Return(nil)
	st.On("Delete", mock.Anything, "call-1").Return(nil)

	err := NewService(rec, st).Remove(context.Background(), "call-1", "user-1", false)

	require.NoError(t, err)
	rec.AssertCalled(t, "Delete", mock.Anything, "calls/user-1/question.mp3")
	st.AssertCalled(t, "Delete", mock.Anything, "call-1")
}

func TestRemove_ObjectDeletionFailureKeepsMetadata(t *testing.T) {
	rec, st := &mockRecordings{}, &mockStore{}
	st.On("Get", mock.Anything, "call-1").Return(aliceCall(), nil)
	rec.On("Delete", mock.Anything, mock.Anything).Return(errors.New("s3 down"))

	err := NewService(rec, st).Remove(context.Background(), "call-1", "user-1", false)

	require.Error(t, err)
	st.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

// --- sanitizeFilename tests ---

func TestSanitizeFilename(t *testing.T) {
	cases := []struct{ input, want string }{
		{"question.mp3", "question.mp3"},
		{"/tmp/../etc/passwd", "passwd"},
		{"my call (final).wav", "my_call__final_.wav"},
		{"", "recording"},
		{".", "recording"},
		{"..", "recording"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, sanitizeFilename(c.input), "input: %q", c.input)
	}
}

package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-site-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrimary(t *testing.T) {
	assert.True(t, NewReplayer("iad", "iad").Primary())
	assert.True(t, NewReplayer("", "").Primary())
	assert.True(t, NewReplayer("iad", "").Primary()) // single-region deployment
	assert.False(t, NewReplayer("fra", "iad").Primary())
}

func TestReplayable_ReplicaErrorRepliesReplay(t *testing.T) {
	rp := NewReplayer("fra", "iad")
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/login", nil)

	rp.Replayable(w, r, func(check func(error) bool) error {
		return fmt.Errorf("put item: %w", domain.ErrReadOnlyReplica)
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "region=iad", w.Header().Get(ReplayHeader))
}

func TestReplayable_RawReplicaMessageMatches(t *testing.T) {
	rp := NewReplayer("fra", "iad")

	for _, msg := range []string{
		"Transaction is read-only",
		"ReadOnlyViolation: cannot write",
	} {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/login", nil)
		rp.Replayable(w, r, func(check func(error) bool) error {
			return errors.New(msg)
		})
		assert.Equal(t, http.StatusConflict, w.Code, "msg: %q", msg)
		assert.Equal(t, "region=iad", w.Header().Get(ReplayHeader), "msg: %q", msg)
	}
}

func TestReplayable_CheckInsideHandler(t *testing.T) {
	rp := NewReplayer("fra", "iad")
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/login", nil)

	// The handler catches the store error itself, asks check, and stops.
	rp.Replayable(w, r, func(check func(error) bool) error {
		if check(domain.ErrReadOnlyReplica) {
			return nil
		}
		t.Fatal("check did not recognize the replica error")
		return nil
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "region=iad", w.Header().Get(ReplayHeader))
}

func TestReplayable_NonReplicaErrorIs500(t *testing.T) {
	rp := NewReplayer("fra", "iad")
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/login", nil)

	rp.Replayable(w, r, func(check func(error) bool) error {
		return errors.New("dynamo down")
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Header().Get(ReplayHeader))
}

func TestReplayable_PrimaryNeverReplays(t *testing.T) {
	rp := NewReplayer("iad", "iad")
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/login", nil)

	// On the primary a replica error is a real failure, not a redirect.
	rp.Replayable(w, r, func(check func(error) bool) error {
		require.False(t, check(domain.ErrReadOnlyReplica))
		return domain.ErrReadOnlyReplica
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Header().Get(ReplayHeader))
}

func TestReplayable_SuccessWritesNothing(t *testing.T) {
	rp := NewReplayer("fra", "iad")
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/login", nil)

	rp.Replayable(w, r, func(check func(error) bool) error {
		w.WriteHeader(http.StatusCreated)
		return nil
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Header().Get(ReplayHeader))
}

func TestIsReadOnlyReplicaError(t *testing.T) {
	assert.False(t, isReadOnlyReplicaError(nil))
	assert.False(t, isReadOnlyReplicaError(errors.New("timeout")))
	assert.True(t, isReadOnlyReplicaError(domain.ErrReadOnlyReplica))
	assert.True(t, isReadOnlyReplicaError(fmt.Errorf("update: %w", domain.ErrReadOnlyReplica)))
	assert.True(t, isReadOnlyReplicaError(errors.New("database is read-only")))
	assert.True(t, isReadOnlyReplicaError(errors.New("ReadOnlyViolation")))
}

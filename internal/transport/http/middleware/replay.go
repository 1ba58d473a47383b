package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-site-api/internal/domain"
)

// ReplayHeader targets the Fly proxy: a 409 carrying it is re-run against
// the named region with the original request untouched.
const ReplayHeader = "fly-replay"

// Replayer redirects writes that hit a read-only database replica to the
// primary region. On the primary instance it is a no-op passthrough.
type Replayer struct {
	currentRegion string
	primaryRegion string
}

func NewReplayer(currentRegion, primaryRegion string) *Replayer {
	return &Replayer{currentRegion: currentRegion, primaryRegion: primaryRegion}
}

// Primary reports whether this instance may write directly. An empty primary
// region means a single-region deployment — always primary.
func (rp *Replayer) Primary() bool {
	return rp.primaryRegion == "" || rp.currentRegion == rp.primaryRegion
}

// Replayable runs fn, which performs a mutating request. fn receives a check
// function it may call on errors it catches itself; the wrapper applies the
// same check to whatever fn returns, so both paths converge on one replay
// response. The replica check fires before any write commits, which is what
// makes replaying at the primary safe: the original write never took effect.
//
// Non-replica errors surface as plain 500s; fn is expected to have answered
// its own domain-level failures before returning them as nil.
func (rp *Replayer) Replayable(w http.ResponseWriter, r *http.Request, fn func(check func(error) bool) error) {
	replayed := false
	check := func(err error) bool {
		if rp.Primary() || !isReadOnlyReplicaError(err) {
			return false
		}
		if !replayed {
			replayed = true
			w.Header().Set(ReplayHeader, fmt.Sprintf("region=%s", rp.primaryRegion))
			w.WriteHeader(http.StatusConflict)
		}
		return true
	}
	err := fn(check)
	if err == nil || replayed {
		return
	}
	if check(err) {
		slog.Info("replaying write at primary region", "path", r.URL.Path, "region", rp.primaryRegion)
		return
	}
	slog.Error("request failed", "path", r.URL.Path, "err", err)
	writeJSONError(w, http.StatusInternalServerError, "internal error")
}

// isReadOnlyReplicaError matches the store's read-only replica signature:
// the tagged sentinel when the error came through our own repos, or the raw
// message when it crossed a process boundary untagged.
func isReadOnlyReplicaError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrReadOnlyReplica) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "read-only") || strings.Contains(msg, "ReadOnly")
}

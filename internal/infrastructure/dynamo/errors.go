package dynamo

import (
	"fmt"
	"strings"

	"github.com/go-site-api/internal/domain"
)

// writeErr tags writes rejected by a read-only replica endpoint with
// domain.ErrReadOnlyReplica so callers can replay them against the primary
// region. Any other error passes through untouched.
func writeErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "read-only") || strings.Contains(msg, "ReadOnly") {
		return fmt.Errorf("%v: %w", err, domain.ErrReadOnlyReplica)
	}
	return err
}

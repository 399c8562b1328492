package reconcile

import (
	"errors"
	"fmt"

	"github.com/camarize/reconciler/internal/entities"
)

// ErrConnect marks a failure to establish the store session. It is the only
// error that makes a run fail as a whole.
var ErrConnect = errors.New("failed to connect to entity store")

// VerificationError reports an endpoint lookup that did not complete, or a
// reference that could not be read (EntityID is then empty). The endpoint's
// existence is unknown, so the record is left alone.
type VerificationError struct {
	Relation string
	RecordID string
	Role     string
	EntityID string
	Err      error
}

func (e *VerificationError) Error() string {
	if errors.Is(e.Err, entities.ErrUnusableReference) {
		return fmt.Sprintf("%s/%s: %s reference: %v", e.Relation, e.RecordID, e.Role, e.Err)
	}
	return fmt.Sprintf("%s/%s: lookup of %s %q failed: %v", e.Relation, e.RecordID, e.Role, e.EntityID, e.Err)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// DeleteError reports a confirmed-dangling record that could not be removed
type DeleteError struct {
	Relation string
	RecordID string
	Err      error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("%s/%s: delete failed: %v", e.Relation, e.RecordID, e.Err)
}

func (e *DeleteError) Unwrap() error {
	return e.Err
}

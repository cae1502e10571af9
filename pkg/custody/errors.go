package custody

import (
	"context"
	"errors"
	"fmt"

	"github.com/openwealth/custody/pkg/models"
)

// ValidationError reports malformed or out-of-range input with field-level
// detail. Nothing was written.
type ValidationError struct {
	Entity     string
	Violations models.Violations
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Entity, e.Violations)
}

// NotFoundError reports an absent entity: the target of a get, update or
// delete, or the declared parent of a candidate child.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// IntegrityError reports a strict delete blocked by existing children.
// Parent and children are left unchanged.
type IntegrityError struct {
	Entity   string
	ID       string
	Children string
	Count    int
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("cannot delete %s %s: %d %s still reference it", e.Entity, e.ID, e.Count, e.Children)
}

// TransientStoreError wraps a store failure the caller may retry, such as a
// timeout or an unreachable backend.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("store operation %s failed transiently: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

// storeError classifies a failed store call. Deadline and cancellation
// failures are transient from the caller's perspective; anything else is
// passed through wrapped.
func storeError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &TransientStoreError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

package trove

import (
	"errors"
	"fmt"

	"github.com/trovedb/trove/index"
)

var (
	// ErrNotFound is returned when an ordinal or row cannot be resolved.
	ErrNotFound = errors.New("not found")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrIndexNotReady is returned when a feature space has no loaded
	// index behind it, which distinguishes an uninitialized store from a
	// valid empty one.
	ErrIndexNotReady = errors.New("index not ready")
)

// ErrUnknownSpace indicates a FeatureSpace outside the known set.
type ErrUnknownSpace struct {
	Space FeatureSpace
}

func (e *ErrUnknownSpace) Error() string {
	return fmt.Sprintf("unknown feature space: %d", int(e.Space))
}

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Space    FeatureSpace
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("%s: dimension mismatch: expected %d, got %d", e.Space, e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrLabelCountMismatch indicates an append batch whose label count does
// not match its vector count.
type ErrLabelCountMismatch struct {
	Vectors int
	Labels  int
}

func (e *ErrLabelCountMismatch) Error() string {
	return fmt.Sprintf("label count mismatch: %d vectors, %d labels", e.Vectors, e.Labels)
}

// ErrCorruptStore indicates on-disk files that disagree with each other,
// such as an index and its label sidecar reporting different counts.
type ErrCorruptStore struct {
	Space  FeatureSpace
	Detail string
}

func (e *ErrCorruptStore) Error() string {
	return fmt.Sprintf("%s: corrupt store: %s", e.Space, e.Detail)
}

func translateError(space FeatureSpace, err error) error {
	if err == nil {
		return nil
	}

	var dm *index.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Space: space, Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}
	if errors.Is(err, index.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	}

	return err
}

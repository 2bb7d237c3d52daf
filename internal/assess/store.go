package assess

import "context"

const (
	// DefaultListLimit is used when List is called with a non-positive limit.
	DefaultListLimit = 20

	// MaxListLimit caps List results.
	MaxListLimit = 100
)

// Store is the persistence interface for assessments.
type Store interface {
	Get(ctx context.Context, id string) (*Assessment, bool, error)
	Put(ctx context.Context, a *Assessment) error
	// List returns up to limit assessments, newest first.
	List(ctx context.Context, limit int) ([]*Assessment, error)
}

// Notifier delivers alerts about emergency assessments.
type Notifier interface {
	Send(ctx context.Context, a *Assessment) error
}

// ClampLimit applies the default and upper bound to a List limit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}

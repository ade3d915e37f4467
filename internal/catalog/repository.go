package catalog

import "context"

// Repository persists sites. Implementations return ErrNotFound and ErrDuplicate
// (possibly wrapped) so callers can match them with errors.Is.
type Repository interface {
	List(ctx context.Context) ([]Site, error)
	Get(ctx context.Context, id string) (*Site, error)
	Create(ctx context.Context, site *Site) error
	// Update overwrites the editable fields. The stored visit count and
	// creation time are kept; visits change only through IncrementVisits.
	Update(ctx context.Context, site *Site) error
	Delete(ctx context.Context, id string) error
	// IncrementVisits adds n to the stored visit count of a site.
	IncrementVisits(ctx context.Context, id string, n int64) error
}

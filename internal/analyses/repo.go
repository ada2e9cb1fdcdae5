package analyses

import "context"

// Repo defines persistence operations for analyses. Every lookup is scoped to
// the owning user; another user's record reads as ErrNotFound.
type Repo interface {
	Create(ctx context.Context, analysis Analysis) error
	GetByID(ctx context.Context, userID, analysisID string) (Analysis, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error)
	UpdateStatus(ctx context.Context, userID, analysisID, status string) (Analysis, error)
	Stats(ctx context.Context, userID string) (Stats, error)
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

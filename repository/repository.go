package repository

import (
	"context"

	"github.com/nijaru/yt-catalog/models"
)

// ContentRepository is the persistence boundary for ingested items.
//
// Insert must reject an ExternalID that is already stored with a
// DuplicateKey error, even when Exists was checked first. Connectivity
// failures are reported as StoreUnavailable.
type ContentRepository interface {
	Exists(ctx context.Context, externalID string) (bool, error)
	Insert(ctx context.Context, item *models.ContentItem) error
	CountByGenre(ctx context.Context, genre string) (int, error)
	CountAll(ctx context.Context) (int, error)
	Close() error
}

// GenreCounts reads the count of every genre in genres.
func GenreCounts(ctx context.Context, repo ContentRepository, genres []string) (map[string]int, error) {
	counts := make(map[string]int, len(genres))
	for _, genre := range genres {
		n, err := repo.CountByGenre(ctx, genre)
		if err != nil {
			return nil, err
		}
		counts[genre] = n
	}
	return counts, nil
}

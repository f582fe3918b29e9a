package ingestion

import (
	"context"
	"time"

	"github.com/nijaru/yt-catalog/models"
	"github.com/nijaru/yt-catalog/youtube"
)

// SearchClient is the external video search API.
type SearchClient interface {
	Search(ctx context.Context, req youtube.SearchRequest) (*youtube.SearchPage, error)
}

// Classifier maps free text to a set of genre tags.
type Classifier interface {
	Classify(title, description string) []string
}

type ContentFetcher interface {
	// FetchAndSave returns only the items newly persisted by this call.
	FetchAndSave(ctx context.Context, query string, desired int) ([]*models.ContentItem, error)
}

// ReportArchiver stores a finished run report.
type ReportArchiver interface {
	SaveRunReport(ctx context.Context, report *models.RunReport) error
}

type Config struct {
	// PageSize caps maxResults on a single search request.
	PageSize int `json:"page_size"`

	MinPerGenre  int           `json:"min_per_genre"`
	MaxPerCall   int           `json:"max_per_call"`
	GenreQueries []string      `json:"genre_queries"`
	SeedQueries  []string      `json:"seed_queries"`
	SeedPageSize int           `json:"seed_page_size"`
	SeedPause    time.Duration `json:"seed_pause"`
}

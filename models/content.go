package models

import "time"

// GenreUncategorized is assigned to items that match no genre keyword.
// It belongs to no balancing target.
const GenreUncategorized = "uncategorized"

// ContentItem is a single ingested media record keyed by its source id.
type ContentItem struct {
	ExternalID   string    `json:"external_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Genres       []string  `json:"genres"`
	ChannelTitle string    `json:"channel_title,omitempty"`
	PublishedAt  time.Time `json:"published_at"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// SeedingTarget is computed per balancing pass and never persisted.
type SeedingTarget struct {
	Genre           string `json:"genre"`
	CurrentCount    int    `json:"current_count"`
	MinimumRequired int    `json:"minimum_required"`
}

func (t SeedingTarget) Deficit() int {
	if t.CurrentCount >= t.MinimumRequired {
		return 0
	}
	return t.MinimumRequired - t.CurrentCount
}

func (t SeedingTarget) Deficient() bool { return t.Deficit() > 0 }

// GenreOutcome is the result of one genre's top-up within a balancing pass.
type GenreOutcome struct {
	Genre   string `json:"genre"`
	Before  int    `json:"before"`
	Count   int    `json:"count"`
	Minimum int    `json:"minimum"`
	Fetched int    `json:"fetched"`
	Reached bool   `json:"reached"`
	Error   string `json:"error,omitempty"`
}

// Partial reports whether the genre is still below its minimum.
func (o GenreOutcome) Partial() bool { return !o.Reached }

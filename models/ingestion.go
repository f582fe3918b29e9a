package models

import (
	"sort"
	"time"
)

type RunReport struct {
	ID          string                  `json:"id"`
	StartedAt   time.Time               `json:"started_at"`
	FinishedAt  time.Time               `json:"finished_at"`
	InitialSeed bool                    `json:"initial_seed"`
	SeedSaved   int                     `json:"seed_saved"`
	Outcomes    map[string]GenreOutcome `json:"outcomes"`
	Error       string                  `json:"error,omitempty"`
}

func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// PartialGenres lists genres that ended the run below their minimum.
func (r *RunReport) PartialGenres() []string {
	var genres []string
	for genre, outcome := range r.Outcomes {
		if outcome.Partial() {
			genres = append(genres, genre)
		}
	}
	sort.Strings(genres)
	return genres
}

// IngestionState is the observable state of an orchestrator.
type IngestionState struct {
	Running         bool       `json:"running"`
	LastStartedAt   time.Time  `json:"last_started_at,omitempty"`
	LastCompletedAt time.Time  `json:"last_completed_at,omitempty"`
	LastReport      *RunReport `json:"last_report,omitempty"`
}

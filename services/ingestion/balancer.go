package ingestion

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-catalog/models"
	"github.com/nijaru/yt-catalog/repository"
)

// Balancer tops up genres whose stored count is below a minimum.
type Balancer struct {
	fetcher    ContentFetcher
	repo       repository.ContentRepository
	genres     []string
	templates  []string
	maxPerCall int
	logger     *logrus.Entry
}

// NewBalancer balances every genre except the uncategorized fallback.
// Each template must contain a single %s that receives the genre name.
func NewBalancer(
	fetcher ContentFetcher,
	repo repository.ContentRepository,
	genres []string,
	templates []string,
	maxPerCall int,
	logger *logrus.Entry,
) *Balancer {
	var balanced []string
	for _, g := range genres {
		if g != models.GenreUncategorized {
			balanced = append(balanced, g)
		}
	}
	if logger == nil {
		logger = logrus.WithField("component", "balancer")
	}
	return &Balancer{
		fetcher:    fetcher,
		repo:       repo,
		genres:     balanced,
		templates:  templates,
		maxPerCall: maxPerCall,
		logger:     logger,
	}
}

// queries derives the targeted search queries for genre.
func (b *Balancer) queries(genre string) []string {
	queries := make([]string, 0, len(b.templates))
	for _, tmpl := range b.templates {
		queries = append(queries, fmt.Sprintf(tmpl, genre))
	}
	return queries
}

// SeedGenres runs one balancing pass and returns an outcome for every
// balanced genre. A genre still short after its queries is reported as
// partial and left for the next run. Failures are recorded on the genre's
// outcome and never stop other genres.
//
// Once ctx is done no further query is started; a query already in flight
// is allowed to finish.
func (b *Balancer) SeedGenres(ctx context.Context, minimum int) map[string]models.GenreOutcome {
	outcomes := make(map[string]models.GenreOutcome, len(b.genres))

	satisfied := true
	for _, genre := range b.genres {
		logger := b.logger.WithField("genre", genre)

		if ctx.Err() != nil {
			outcomes[genre] = models.GenreOutcome{Genre: genre, Minimum: minimum, Error: "interrupted before top-up"}
			satisfied = false
			continue
		}

		count, err := b.repo.CountByGenre(ctx, genre)
		if err != nil {
			logger.WithError(err).Error("Failed to count genre")
			outcomes[genre] = models.GenreOutcome{Genre: genre, Minimum: minimum, Error: err.Error()}
			satisfied = false
			continue
		}

		target := models.SeedingTarget{Genre: genre, CurrentCount: count, MinimumRequired: minimum}
		if !target.Deficient() {
			outcomes[genre] = models.GenreOutcome{
				Genre: genre, Before: count, Count: count, Minimum: minimum, Reached: true,
			}
			continue
		}

		satisfied = false
		logger.Infof("Genre %s has only %d/%d items", genre, count, minimum)
		outcomes[genre] = b.topUp(ctx, target, logger)
	}

	if satisfied {
		b.logger.WithField("minimum", minimum).Info("All genres have sufficient content")
	}
	return outcomes
}

func (b *Balancer) topUp(ctx context.Context, target models.SeedingTarget, logger *logrus.Entry) models.GenreOutcome {
	outcome := models.GenreOutcome{
		Genre:   target.Genre,
		Before:  target.CurrentCount,
		Count:   target.CurrentCount,
		Minimum: target.MinimumRequired,
	}

	for _, query := range b.queries(target.Genre) {
		if ctx.Err() != nil {
			logger.Info("Stopping genre top-up, context done")
			break
		}

		desired := target.Deficit()
		if b.maxPerCall > 0 {
			desired = min(desired, b.maxPerCall)
		}

		items, err := b.fetcher.FetchAndSave(context.WithoutCancel(ctx), query, desired)
		outcome.Fetched += len(items)
		if err != nil {
			logger.WithError(err).WithField("query", query).Error("Genre top-up aborted")
			outcome.Error = err.Error()
			break
		}

		count, err := b.repo.CountByGenre(context.WithoutCancel(ctx), target.Genre)
		if err != nil {
			logger.WithError(err).Error("Failed to recount genre")
			outcome.Error = err.Error()
			break
		}
		target.CurrentCount = count
		outcome.Count = count
		if !target.Deficient() {
			break
		}
	}

	outcome.Reached = !target.Deficient()
	if !outcome.Reached {
		logger.WithFields(logrus.Fields{
			"count":   outcome.Count,
			"minimum": outcome.Minimum,
		}).Warn("Genre still below minimum, will retry on next run")
	}
	return outcome
}

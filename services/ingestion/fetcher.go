// Package ingestion fetches, classifies and stores search results and keeps
// every genre topped up to a minimum item count.
package ingestion

import (
	"context"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-catalog/errors"
	"github.com/nijaru/yt-catalog/models"
	"github.com/nijaru/yt-catalog/ratelimit"
	"github.com/nijaru/yt-catalog/repository"
	"github.com/nijaru/yt-catalog/validation"
	"github.com/nijaru/yt-catalog/youtube"
)

const maxPageSize = 50

type Fetcher struct {
	client     SearchClient
	limiter    ratelimit.Limiter
	classifier Classifier
	repo       repository.ContentRepository
	pageSize   int
	logger     *logrus.Entry
	now        func() time.Time
}

func NewFetcher(
	client SearchClient,
	limiter ratelimit.Limiter,
	classifier Classifier,
	repo repository.ContentRepository,
	pageSize int,
	logger *logrus.Entry,
) *Fetcher {
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if logger == nil {
		logger = logrus.WithField("component", "fetcher")
	}
	return &Fetcher{
		client:     client,
		limiter:    limiter,
		classifier: classifier,
		repo:       repo,
		pageSize:   pageSize,
		logger:     logger,
		now:        time.Now,
	}
}

// FetchAndSave pages through search results for query until desired raw
// results have been seen or the API runs out. A failed page ends the query
// and what was saved so far is returned without error. Only store failures
// other than duplicates are returned, together with the items saved before
// the failure.
func (f *Fetcher) FetchAndSave(ctx context.Context, query string, desired int) ([]*models.ContentItem, error) {
	logger := f.logger.WithFields(logrus.Fields{
		"query":   query,
		"desired": desired,
	})

	var saved []*models.ContentItem
	if desired <= 0 {
		return saved, nil
	}

	seen := 0
	pageToken := ""
	for page := 1; seen < desired; page++ {
		if err := f.limiter.Acquire(ctx); err != nil {
			logger.WithError(err).Info("Stopping fetch, context done")
			break
		}

		req := youtube.SearchRequest{
			Query:      query,
			PageToken:  pageToken,
			MaxResults: min(desired-seen, f.pageSize),
		}
		result, err := f.client.Search(ctx, req)
		if err != nil {
			logger.WithError(err).WithField("page", page).Warn("Search page failed, keeping results collected so far")
			break
		}

		for _, raw := range result.Items {
			if seen >= desired {
				break
			}
			seen++

			item, ok := f.toItem(raw, logger)
			if !ok {
				continue
			}

			stored, err := f.save(ctx, item)
			if err != nil {
				return saved, pkgerrors.Wrapf(err, "persist %s", item.ExternalID)
			}
			if stored {
				saved = append(saved, item)
			}
		}

		if result.NextPageToken == "" || len(result.Items) == 0 {
			break
		}
		pageToken = result.NextPageToken
	}

	logger.WithFields(logrus.Fields{
		"seen":  seen,
		"saved": len(saved),
	}).Info("Fetch completed")

	return saved, nil
}

func (f *Fetcher) toItem(raw youtube.SearchResult, logger *logrus.Entry) (*models.ContentItem, bool) {
	item := &models.ContentItem{
		ExternalID:   raw.ExternalID,
		Title:        strings.TrimSpace(raw.Title),
		Description:  raw.Description,
		ChannelTitle: raw.ChannelTitle,
		PublishedAt:  raw.PublishedAt,
		ThumbnailURL: raw.ThumbnailURL,
	}

	if err := validation.ValidateItem(item); err != nil {
		logger.WithError(err).WithField("external_id", raw.ExternalID).Warn("Skipping invalid search result")
		return nil, false
	}
	if item.ThumbnailURL != "" {
		if err := validation.ValidateThumbnailURL(item.ThumbnailURL); err != nil {
			logger.WithError(err).WithField("external_id", item.ExternalID).Debug("Dropping invalid thumbnail")
			item.ThumbnailURL = ""
		}
	}

	item.Genres = f.classifier.Classify(item.Title, item.Description)
	item.CreatedAt = f.now().UTC()
	return item, true
}

// save reports whether item was newly stored. Items that already exist,
// including ones inserted concurrently after the existence check, are
// skipped.
func (f *Fetcher) save(ctx context.Context, item *models.ContentItem) (bool, error) {
	exists, err := f.repo.Exists(ctx, item.ExternalID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	if err := f.repo.Insert(ctx, item); err != nil {
		if errors.IsDuplicateKey(err) {
			f.logger.WithField("external_id", item.ExternalID).Debug("Item inserted concurrently, skipping")
			return false, nil
		}
		return false, err
	}
	return true, nil
}

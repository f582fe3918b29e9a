// Package memory is a process-local content store used for development
// runs and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/nijaru/yt-catalog/errors"
	"github.com/nijaru/yt-catalog/models"
)

type Repository struct {
	mu      sync.RWMutex
	items   map[string]*models.ContentItem
	byGenre map[string]int
	closed  bool
}

func NewRepository() *Repository {
	return &Repository{
		items:   make(map[string]*models.ContentItem),
		byGenre: make(map[string]int),
	}
}

func (r *Repository) Exists(ctx context.Context, externalID string) (bool, error) {
	const op = "MemoryRepository.Exists"

	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.check(ctx, op); err != nil {
		return false, err
	}
	_, ok := r.items[externalID]
	return ok, nil
}

func (r *Repository) Insert(ctx context.Context, item *models.ContentItem) error {
	const op = "MemoryRepository.Insert"

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.check(ctx, op); err != nil {
		return err
	}
	if _, ok := r.items[item.ExternalID]; ok {
		return errors.DuplicateKey(op, nil, "content item already exists")
	}

	stored := *item
	stored.Genres = append([]string(nil), item.Genres...)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.items[item.ExternalID] = &stored
	for _, genre := range stored.Genres {
		r.byGenre[genre]++
	}
	return nil
}

func (r *Repository) CountByGenre(ctx context.Context, genre string) (int, error) {
	const op = "MemoryRepository.CountByGenre"

	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.check(ctx, op); err != nil {
		return 0, err
	}
	return r.byGenre[genre], nil
}

func (r *Repository) CountAll(ctx context.Context) (int, error) {
	const op = "MemoryRepository.CountAll"

	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.check(ctx, op); err != nil {
		return 0, err
	}
	return len(r.items), nil
}

// Get returns a copy of the stored item.
func (r *Repository) Get(externalID string) (*models.ContentItem, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[externalID]
	if !ok {
		return nil, false
	}
	out := *item
	out.Genres = append([]string(nil), item.Genres...)
	return &out, true
}

func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *Repository) check(ctx context.Context, op string) error {
	if r.closed {
		return errors.StoreUnavailable(op, nil, "store is closed")
	}
	if err := ctx.Err(); err != nil {
		return errors.StoreUnavailable(op, err, "context done")
	}
	return nil
}

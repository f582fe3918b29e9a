package ingestion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/yt-catalog/errors"
	"github.com/nijaru/yt-catalog/models"
	"github.com/nijaru/yt-catalog/repository/memory"
)

func firstCallPerQueryPrefix(calls []fetchCall) map[string]int {
	out := make(map[string]int)
	for _, c := range calls {
		if _, ok := out[c.query]; !ok {
			out[c.query] = c.desired
		}
	}
	return out
}

func TestSeedGenresTargetsDeficits(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	require.NoError(t, repo.Insert(ctx, &models.ContentItem{ExternalID: "c1", Title: "funny", Genres: []string{"comedy"}}))

	fetcher := &recordingFetcher{}
	b := NewBalancer(fetcher, repo, testClassifier().Genres(), []string{"%s"}, 10, quietLogger())

	outcomes := b.SeedGenres(ctx, 2)

	assert.Equal(t, map[string]int{"comedy": 1, "drama": 2}, firstCallPerQueryPrefix(fetcher.recorded()))

	require.Len(t, outcomes, 2)
	assert.Equal(t, models.GenreOutcome{Genre: "comedy", Before: 1, Count: 1, Minimum: 2}, outcomes["comedy"])
	assert.Equal(t, models.GenreOutcome{Genre: "drama", Before: 0, Count: 0, Minimum: 2}, outcomes["drama"])
	assert.True(t, outcomes["comedy"].Partial())
	assert.True(t, outcomes["drama"].Partial())
}

func TestSeedGenresConvergesAndStopsQuerying(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()

	fetcher := &recordingFetcher{
		repo:  repo,
		genre: map[string]string{"Nollywood comedy": "comedy", "Nollywood drama": "drama"},
	}
	b := NewBalancer(fetcher, repo, []string{"comedy", "drama"}, []string{"Nollywood %s", "Nigerian %s"}, 10, quietLogger())

	outcomes := b.SeedGenres(ctx, 3)

	for _, genre := range []string{"comedy", "drama"} {
		o := outcomes[genre]
		assert.True(t, o.Reached, genre)
		assert.Equal(t, 3, o.Count)
		assert.Equal(t, 3, o.Fetched)
		assert.Empty(t, o.Error)

		n, err := repo.CountByGenre(ctx, genre)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 3)
	}
	// the second template is never needed
	assert.Len(t, fetcher.recorded(), 2)
}

func TestSeedGenresCapsDesiredPerCall(t *testing.T) {
	fetcher := &recordingFetcher{}
	b := NewBalancer(fetcher, memory.NewRepository(), []string{"drama"}, []string{"%s"}, 4, quietLogger())

	b.SeedGenres(context.Background(), 12)

	calls := fetcher.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, fetchCall{query: "drama", desired: 4}, calls[0])
}

func TestSeedGenresSkipsSatisfiedGenres(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	require.NoError(t, repo.Insert(ctx, &models.ContentItem{ExternalID: "d1", Title: "x", Genres: []string{"drama"}}))

	fetcher := &recordingFetcher{}
	b := NewBalancer(fetcher, repo, []string{"drama"}, []string{"%s"}, 10, quietLogger())

	outcomes := b.SeedGenres(ctx, 1)
	assert.Empty(t, fetcher.recorded())
	assert.True(t, outcomes["drama"].Reached)
	assert.False(t, outcomes["drama"].Partial())
}

func TestSeedGenresRecordsErrorsPerGenre(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()

	fetcher := &recordingFetcher{
		repo:  repo,
		genre: map[string]string{"drama": "drama"},
		err:   map[string]error{"comedy": errors.StoreUnavailable("test", nil, "store down")},
	}
	b := NewBalancer(fetcher, repo, []string{"comedy", "drama"}, []string{"%s"}, 10, quietLogger())

	outcomes := b.SeedGenres(ctx, 2)

	assert.Contains(t, outcomes["comedy"].Error, "store down")
	assert.True(t, outcomes["comedy"].Partial())
	assert.True(t, outcomes["drama"].Reached)
}

func TestSeedGenresExcludesUncategorized(t *testing.T) {
	fetcher := &recordingFetcher{}
	b := NewBalancer(fetcher, memory.NewRepository(), []string{"drama", models.GenreUncategorized}, []string{"%s"}, 10, quietLogger())

	outcomes := b.SeedGenres(context.Background(), 1)
	assert.NotContains(t, outcomes, models.GenreUncategorized)
	assert.Equal(t, []fetchCall{{query: "drama", desired: 1}}, fetcher.recorded())
}

func TestSeedGenresStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &recordingFetcher{}
	b := NewBalancer(fetcher, memory.NewRepository(), []string{"comedy", "drama"}, []string{"%s"}, 10, quietLogger())

	outcomes := b.SeedGenres(ctx, 2)
	assert.Empty(t, fetcher.recorded())
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes["comedy"].Partial())
	assert.NotEmpty(t, outcomes["drama"].Error)
}

func TestQueriesFillTemplates(t *testing.T) {
	b := NewBalancer(&recordingFetcher{}, memory.NewRepository(), []string{"drama"}, []string{"Nigerian %s movie", "Nollywood %s movies"}, 10, quietLogger())
	assert.Equal(t, []string{"Nigerian drama movie", "Nollywood drama movies"}, b.queries("drama"))
}

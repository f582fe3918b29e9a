package ingestion

import (
	"context"
	"io"
	"strconv"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/yt-catalog/classifier"
	"github.com/nijaru/yt-catalog/models"
	"github.com/nijaru/yt-catalog/ratelimit"
	"github.com/nijaru/yt-catalog/repository/memory"
	"github.com/nijaru/yt-catalog/youtube"
)

type fakePage struct {
	items []youtube.SearchResult
	err   error
}

// fakeSearch serves canned pages per query. Page tokens are page indexes.
type fakeSearch struct {
	mu      sync.Mutex
	pages   map[string][]fakePage
	calls   []youtube.SearchRequest
	started chan struct{}
	release chan struct{}
}

func newFakeSearch() *fakeSearch {
	return &fakeSearch{pages: make(map[string][]fakePage)}
}

func (s *fakeSearch) add(query string, pages ...fakePage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[query] = append(s.pages[query], pages...)
}

func (s *fakeSearch) Search(ctx context.Context, req youtube.SearchRequest) (*youtube.SearchPage, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	pages := s.pages[req.Query]
	started, release := s.started, s.release
	s.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if release != nil {
		<-release
	}

	idx := 0
	if req.PageToken != "" {
		idx, _ = strconv.Atoi(req.PageToken)
	}
	if idx >= len(pages) {
		return &youtube.SearchPage{}, nil
	}
	page := pages[idx]
	if page.err != nil {
		return nil, page.err
	}

	items := page.items
	if req.MaxResults > 0 && len(items) > req.MaxResults {
		items = items[:req.MaxResults]
	}
	out := &youtube.SearchPage{Items: items}
	if idx+1 < len(pages) {
		out.NextPageToken = strconv.Itoa(idx + 1)
	}
	return out, nil
}

func (s *fakeSearch) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *fakeSearch) requests() []youtube.SearchRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]youtube.SearchRequest(nil), s.calls...)
}

type countingLimiter struct {
	mu sync.Mutex
	n  int
}

func (l *countingLimiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	l.n++
	l.mu.Unlock()
	return ctx.Err()
}

// recordingFetcher records calls and optionally stores synthetic items.
type recordingFetcher struct {
	mu    sync.Mutex
	calls []fetchCall
	repo  *memory.Repository
	genre map[string]string
	err   map[string]error
	seq   int
}

type fetchCall struct {
	query   string
	desired int
}

func (f *recordingFetcher) FetchAndSave(ctx context.Context, query string, desired int) ([]*models.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, fetchCall{query: query, desired: desired})
	if err := f.err[query]; err != nil {
		return nil, err
	}
	if f.repo == nil {
		return nil, nil
	}

	var saved []*models.ContentItem
	for i := 0; i < desired; i++ {
		f.seq++
		item := &models.ContentItem{
			ExternalID: "gen-" + strconv.Itoa(f.seq),
			Title:      query,
			Genres:     []string{f.genre[query]},
		}
		if err := f.repo.Insert(ctx, item); err != nil {
			return saved, err
		}
		saved = append(saved, item)
	}
	return saved, nil
}

func (f *recordingFetcher) recorded() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fetchCall(nil), f.calls...)
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func testClassifier() *classifier.Classifier {
	return classifier.New(classifier.KeywordTable{
		"comedy": {"funny", "comedy"},
		"drama":  {"drama"},
	})
}

func result(id, title string) youtube.SearchResult {
	return youtube.SearchResult{ExternalID: id, Title: title, ThumbnailURL: "https://i.ytimg.com/vi/" + id + "/hqdefault.jpg"}
}

func newTestFetcher(t *testing.T, search SearchClient, repo *memory.Repository, pageSize int) *Fetcher {
	t.Helper()
	require.NotNil(t, repo)
	return NewFetcher(search, ratelimit.NewInterval(0), testClassifier(), repo, pageSize, quietLogger())
}

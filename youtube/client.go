// Package youtube is a minimal client for the YouTube Data API search
// endpoint.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-catalog/errors"
	"github.com/nijaru/yt-catalog/ratelimit"
)

const (
	DefaultBaseURL = "https://www.googleapis.com/youtube/v3"

	// placeholderKey is the sample value shipped in example env files.
	placeholderKey = "your_youtube_api_key"

	maxBackoff    = 30 * time.Second
	backoffFactor = 2.0
)

type Config struct {
	APIKey         string
	BaseURL        string
	RegionCode     string
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration

	// Limiter gates retry attempts. Callers acquire it before Search, so
	// sharing their limiter keeps every request on the same cadence.
	Limiter ratelimit.Limiter
}

type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	regionCode string
	maxRetries int
	backoff    time.Duration
	limiter    ratelimit.Limiter
	logger     *logrus.Entry
}

// NewClient validates that an API key is configured. No request is made.
func NewClient(cfg Config, logger *logrus.Entry) (*Client, error) {
	const op = "youtube.NewClient"

	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.Configuration(op, nil, "YouTube API key is missing; set YOUTUBE_API_KEY")
	}
	if key == placeholderKey {
		return nil, errors.Configuration(op, nil, "YouTube API key is set to the placeholder value")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, errors.Configuration(op, err, "invalid YouTube base URL")
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = logrus.WithField("component", "youtube")
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     key,
		baseURL:    baseURL,
		regionCode: cfg.RegionCode,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		limiter:    cfg.Limiter,
		logger:     logger,
	}, nil
}

// MaskKey returns the first five characters of key followed by "...".
func MaskKey(key string) string {
	if len(key) <= 5 {
		return "..."
	}
	return key[:5] + "..."
}

// Search fetches one page of video results. Transient failures are retried
// with exponential backoff, each retry waiting on the limiter; quota and
// client errors are returned at once.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchPage, error) {
	const op = "youtube.Search"

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("q", req.Query)
	if req.MaxResults > 0 {
		params.Set("maxResults", strconv.Itoa(req.MaxResults))
	}
	if req.PageToken != "" {
		params.Set("pageToken", req.PageToken)
	}
	if c.regionCode != "" {
		params.Set("regionCode", c.regionCode)
	}
	params.Set("key", c.apiKey)
	endpoint := c.baseURL + "/search?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoffDelay(attempt)
			c.logger.WithFields(logrus.Fields{
				"query":   req.Query,
				"attempt": attempt,
				"delay":   delay.String(),
				"error":   lastErr,
			}).Warn("Retrying search request")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, errors.ExternalAPI(op, ctx.Err(), "search cancelled")
			}
			if c.limiter != nil {
				if err := c.limiter.Acquire(ctx); err != nil {
					return nil, errors.ExternalAPI(op, err, "search cancelled")
				}
			}
		}

		page, retryable, err := c.do(ctx, endpoint)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			return nil, err
		}
	}

	return nil, errors.ExternalAPI(op, lastErr, fmt.Sprintf("search failed after %d attempts", c.maxRetries+1))
}

func (c *Client) do(ctx context.Context, endpoint string) (*SearchPage, bool, error) {
	const op = "youtube.Search"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, errors.Internal(op, err, "failed to build request")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// strip the key-bearing URL from transport errors
		var urlErr *url.Error
		if pkgerrors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, true, errors.ExternalAPI(op, pkgerrors.Wrap(err, "request failed"), "search request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, true, errors.ExternalAPI(op, pkgerrors.Wrap(err, "read body"), "failed to read search response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, isRetryableStatus(resp.StatusCode), statusError(resp.StatusCode, body)
	}

	var decoded searchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, false, errors.ExternalAPI(op, pkgerrors.Wrap(err, "decode"), "malformed search response")
	}

	return toPage(decoded), false, nil
}

func statusError(status int, body []byte) error {
	const op = "youtube.Search"

	var apiErr errorResponse
	_ = json.Unmarshal(body, &apiErr)
	reason := apiErr.reason()
	cause := fmt.Errorf("status %d reason %q: %s", status, reason, apiErr.Error.Message)

	switch {
	case reason == "keyInvalid" || reason == "keyExpired" ||
		(status == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Error.Message), "api key not valid")):
		return errors.Configuration(op, cause, "YouTube API key is invalid")
	case reason == "quotaExceeded" || reason == "dailyLimitExceeded":
		return errors.ExternalAPI(op, cause, "YouTube API quota exceeded")
	default:
		return errors.ExternalAPI(op, cause, fmt.Sprintf("YouTube API returned status %d", status))
	}
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	base := c.backoff
	if base <= 0 {
		return 0
	}
	backoff := time.Duration(float64(base) * math.Pow(backoffFactor, float64(attempt-1)))
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	if half := int64(backoff / 2); half > 0 {
		backoff += time.Duration(rand.Int63n(half))
	}
	return backoff
}

func toPage(resp searchResponse) *SearchPage {
	page := &SearchPage{NextPageToken: resp.NextPageToken}
	for _, it := range resp.Items {
		if it.ID.VideoID == "" {
			continue
		}
		result := SearchResult{
			ExternalID:   it.ID.VideoID,
			Title:        it.Snippet.Title,
			Description:  it.Snippet.Description,
			ChannelTitle: it.Snippet.ChannelTitle,
			ThumbnailURL: bestThumbnail(it.Snippet.Thumbnails),
		}
		if ts, err := time.Parse(time.RFC3339, it.Snippet.PublishedAt); err == nil {
			result.PublishedAt = ts.UTC()
		}
		page.Items = append(page.Items, result)
	}
	return page
}

func bestThumbnail(thumbs map[string]struct {
	URL string `json:"url"`
}) string {
	for _, size := range []string{"high", "medium", "default"} {
		if t, ok := thumbs[size]; ok && t.URL != "" {
			return t.URL
		}
	}
	return ""
}

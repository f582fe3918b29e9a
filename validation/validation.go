package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/nijaru/yt-catalog/models"
)

// maxExternalIDLength bounds source ids; YouTube video ids are 11 chars.
const maxExternalIDLength = 64

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateItem checks that a search result carries enough data to be stored.
func ValidateItem(item *models.ContentItem) error {
	if item == nil {
		return &ValidationError{Field: "item", Message: "is nil"}
	}

	id := strings.TrimSpace(item.ExternalID)
	if id == "" {
		return &ValidationError{Field: "external_id", Message: "is required"}
	}
	if id != item.ExternalID {
		return &ValidationError{Field: "external_id", Message: "must not contain surrounding whitespace"}
	}
	if len(id) > maxExternalIDLength {
		return &ValidationError{Field: "external_id", Message: "is too long"}
	}
	if !utf8.ValidString(id) {
		return &ValidationError{Field: "external_id", Message: "is not valid UTF-8"}
	}

	if strings.TrimSpace(item.Title) == "" {
		return &ValidationError{Field: "title", Message: "is required"}
	}

	return nil
}

func ValidateThumbnailURL(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return &ValidationError{Field: "thumbnail_url", Message: "is required"}
	}

	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return &ValidationError{Field: "thumbnail_url", Message: "invalid URL format"}
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return &ValidationError{Field: "thumbnail_url", Message: "must start with http or https"}
	}

	if parsedURL.Host == "" {
		return &ValidationError{Field: "thumbnail_url", Message: "must have a host"}
	}

	return nil
}

// Package classifier tags free text with genres by keyword matching.
package classifier

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/nijaru/yt-catalog/models"
)

type genreMatcher struct {
	genre    string
	keywords []string
}

// Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	matchers []genreMatcher
	genres   []string
}

// New builds a classifier from table. Keywords are normalized the same way
// as classified text; keywords that normalize to nothing are dropped.
func New(table KeywordTable) *Classifier {
	c := &Classifier{genres: table.Genres()}
	for _, genre := range c.genres {
		m := genreMatcher{genre: genre}
		seen := make(map[string]bool)
		for _, kw := range table[genre] {
			kw = Normalize(kw)
			if kw == "" || seen[kw] {
				continue
			}
			seen[kw] = true
			m.keywords = append(m.keywords, kw)
		}
		c.matchers = append(c.matchers, m)
	}
	return c
}

// Genres lists every genre known to the classifier, sorted. The fallback
// genre is not included.
func (c *Classifier) Genres() []string {
	return append([]string(nil), c.genres...)
}

// Classify returns the sorted set of genres whose keywords appear as whole
// words or phrases in title or description. The result is never empty:
// text matching no keyword yields the uncategorized genre.
func (c *Classifier) Classify(title, description string) []string {
	text := " " + Normalize(title+" "+description) + " "

	var genres []string
	for _, m := range c.matchers {
		for _, kw := range m.keywords {
			if strings.Contains(text, " "+kw+" ") {
				genres = append(genres, m.genre)
				break
			}
		}
	}

	if len(genres) == 0 {
		return []string{models.GenreUncategorized}
	}
	sort.Strings(genres)
	return genres
}

// Normalize folds case, strips diacritics and replaces every run of
// non-alphanumeric characters with a single space.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(t, s); err == nil {
		s = stripped
	}
	s = cases.Fold().String(s)

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	return strings.Join(fields, " ")
}

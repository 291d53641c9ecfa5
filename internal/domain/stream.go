package domain

import (
	"strconv"
	"strings"
	"time"
)

type MediaType string

const (
	MediaTypeMovie  MediaType = "movie"
	MediaTypeSeries MediaType = "series"
)

type Episode struct {
	Season int `json:"season"`
	Number int `json:"number"`
}

// Metadata is the canonical description of one requested title.
// Names maps a language code ("en", "cs", ...) to the display name in that language.
type Metadata struct {
	ID       string            `json:"id"`
	Type     MediaType         `json:"type"`
	Name     string            `json:"name"`
	Names    map[string]string `json:"names"`
	Episode  *Episode          `json:"episode,omitempty"`
	Released string            `json:"released,omitempty"`
}

// ReleaseYear returns the four-digit year of Released, or 0 when it cannot be read.
func (m Metadata) ReleaseYear() int {
	value := strings.TrimSpace(m.Released)
	if len(value) < 4 {
		return 0
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed.Year()
	}
	year, err := strconv.Atoi(value[:4])
	if err != nil || year < 1800 {
		return 0
	}
	return year
}

type SearchHit struct {
	ResolverID    string `json:"resolverId"`
	Title         string `json:"title"`
	DetailPageURL string `json:"detailPageUrl"`
	Duration      int    `json:"duration,omitempty"`
	Format        string `json:"format,omitempty"`
	Size          int64  `json:"size,omitempty"`
}

type ScoredHit struct {
	SearchHit
	ResolverName string  `json:"resolverName"`
	Score        float64 `json:"score"`
}

type Subtitle struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Lang string `json:"lang"`
}

// StreamDetails is what a resolver returns for one candidate. Zero-valued
// hit fields mean "not provided" and never overwrite what search reported.
type StreamDetails struct {
	Video         string         `json:"video"`
	Subtitles     []Subtitle     `json:"subtitles,omitempty"`
	BehaviorHints map[string]any `json:"behaviorHints,omitempty"`

	Title         string `json:"title,omitempty"`
	DetailPageURL string `json:"detailPageUrl,omitempty"`
	Duration      int    `json:"duration,omitempty"`
	Format        string `json:"format,omitempty"`
	Size          int64  `json:"size,omitempty"`
}

type ResolvedStream struct {
	ScoredHit
	Video         string         `json:"video"`
	Subtitles     []Subtitle     `json:"subtitles,omitempty"`
	BehaviorHints map[string]any `json:"behaviorHints,omitempty"`
}

// Merge applies details onto the scored hit. Non-empty detail fields win.
func (h ScoredHit) Merge(details StreamDetails) ResolvedStream {
	merged := h
	if details.Title != "" {
		merged.Title = details.Title
	}
	if details.DetailPageURL != "" {
		merged.DetailPageURL = details.DetailPageURL
	}
	if details.Duration > 0 {
		merged.Duration = details.Duration
	}
	if details.Format != "" {
		merged.Format = details.Format
	}
	if details.Size > 0 {
		merged.Size = details.Size
	}
	return ResolvedStream{
		ScoredHit:     merged,
		Video:         details.Video,
		Subtitles:     details.Subtitles,
		BehaviorHints: details.BehaviorHints,
	}
}

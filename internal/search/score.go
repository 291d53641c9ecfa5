package search

import (
	"math"
	"strings"

	"czstreams/internal/domain"
)

// MaxScore bounds every value returned by Score.
const MaxScore = 100.0

const (
	minPlausibleSize    = 50 * 1024 * 1024
	minPlausibleBitrate = 300_000 // bits per second
)

// Scorer rates how well a hit matches the requested title. Results <= 0 are
// rejected by the engine.
type Scorer func(meta domain.Metadata, hit domain.SearchHit) float64

// Score is the default Scorer. It matches the hit title against every
// localized name and keeps the best match, then adjusts for episode, year
// and size signals. Zero token coverage rejects the hit.
func Score(meta domain.Metadata, hit domain.SearchHit) float64 {
	itemMeta := parseTitleMeta(hit.Title)
	if len(itemMeta.tokenSet) == 0 {
		return 0
	}

	best := 0.0
	for _, lang := range languageOrder(meta.Names) {
		name := strings.TrimSpace(meta.Names[lang])
		if name == "" {
			continue
		}
		queryMeta := parseTitleMeta(name)
		if value := nameMatchScore(queryMeta, itemMeta); value > best {
			best = value
		}
	}
	if best <= 0 {
		return 0
	}

	score := best
	score += episodeScore(meta, itemMeta)
	score += sizeScore(hit)
	return clampScore(score)
}

// nameMatchScore covers token coverage, phrase containment and the extra-token
// penalty for one localized name. It returns 0 when no token matches.
func nameMatchScore(queryMeta, itemMeta titleMeta) float64 {
	queryTokenCount := len(queryMeta.tokenSet)
	if queryTokenCount == 0 {
		return 0
	}

	matches := 0
	for token := range queryMeta.tokenSet {
		if _, ok := itemMeta.tokenSet[token]; ok {
			matches++
		}
	}
	if matches == 0 {
		return 0
	}

	coverage := float64(matches) / float64(queryTokenCount)
	score := coverage * 60
	if matches == queryTokenCount {
		score += 10
	}
	if queryMeta.normalized != "" && containsPhrase(itemMeta.normalized, queryMeta.normalized) {
		score += 10
	}

	extra := len(itemMeta.tokens) - matches
	if extra > 0 {
		score -= math.Min(float64(extra)*1.5, 15)
	}
	return math.Max(score, 0.5)
}

func containsPhrase(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

func episodeScore(meta domain.Metadata, itemMeta titleMeta) float64 {
	if meta.Episode != nil {
		wantSeason, wantEpisode := meta.Episode.Season, meta.Episode.Number
		switch {
		case itemMeta.season > 0 && itemMeta.season != wantSeason:
			return -80
		case itemMeta.episode > 0 && itemMeta.episode != wantEpisode:
			return -80
		case itemMeta.season == wantSeason && itemMeta.episode == wantEpisode:
			return 20
		case itemMeta.episode == wantEpisode:
			return 8
		default:
			return -10
		}
	}

	score := 0.0
	if year := meta.ReleaseYear(); year > 0 {
		switch diff := itemMeta.year - year; {
		case itemMeta.year == 0:
		case diff == 0:
			score += 10
		case diff == 1 || diff == -1:
			score += 2
		default:
			score -= 30
		}
	}
	if itemMeta.episode > 0 {
		score -= 20
	}
	return score
}

func sizeScore(hit domain.SearchHit) float64 {
	if hit.Size <= 0 {
		return 0
	}
	score := 0.0
	if hit.Size < minPlausibleSize {
		score -= 25
	}
	if hit.Duration > 0 {
		bitrate := float64(hit.Size) * 8 / float64(hit.Duration)
		if bitrate < minPlausibleBitrate {
			score -= 15
		}
	}
	return score
}

func clampScore(score float64) float64 {
	if score <= 0 {
		return 0
	}
	if score > MaxScore {
		return MaxScore
	}
	return math.Round(score*100) / 100
}

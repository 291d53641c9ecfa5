package search

import (
	"fmt"
	"sort"
	"strings"

	"czstreams/internal/domain"
)

// languageOrder yields the keys of names with en first, cs second and the
// rest in lexical order.
func languageOrder(names map[string]string) []string {
	ordered := make([]string, 0, len(names))
	for _, lang := range []string{"en", "cs"} {
		if _, ok := names[lang]; ok {
			ordered = append(ordered, lang)
		}
	}
	rest := make([]string, 0, len(names))
	for lang := range names {
		if lang == "en" || lang == "cs" {
			continue
		}
		rest = append(rest, lang)
	}
	sort.Strings(rest)
	return append(ordered, rest...)
}

// SearchTerms builds the query strings sent to every resolver.
//
// For an episode each localized name yields "Name S01E02", "Name 01x02" and
// "Name 1x2". For a movie each name yields "Name 2020", or the bare name
// when no release year is known. Duplicates are dropped, first wins.
func SearchTerms(meta domain.Metadata) []string {
	terms := make([]string, 0, len(meta.Names)*3)
	seen := make(map[string]struct{}, len(meta.Names)*3)
	add := func(term string) {
		term = strings.Join(strings.Fields(term), " ")
		if term == "" {
			return
		}
		if _, exists := seen[term]; exists {
			return
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}

	year := meta.ReleaseYear()
	for _, lang := range languageOrder(meta.Names) {
		name := strings.TrimSpace(meta.Names[lang])
		if name == "" {
			continue
		}
		if meta.Episode != nil {
			season, number := meta.Episode.Season, meta.Episode.Number
			add(fmt.Sprintf("%s S%02dE%02d", name, season, number))
			add(fmt.Sprintf("%s %02dx%02d", name, season, number))
			add(fmt.Sprintf("%s %dx%d", name, season, number))
			continue
		}
		if year > 0 {
			add(fmt.Sprintf("%s %d", name, year))
			continue
		}
		add(name)
	}
	return terms
}

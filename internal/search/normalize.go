package search

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	tokenPattern          = regexp.MustCompile(`[\p{L}\p{N}]+`)
	yearPattern           = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	seasonEpisodePattern  = regexp.MustCompile(`(?i)\bs\s*(\d{1,2})\s*e\s*(\d{1,3})`)
	seasonXEpisodePattern = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{1,3})\b`)
	seasonPattern         = regexp.MustCompile(`(?i)\b(?:season|serie|rada)\s*(\d{1,2})\b|\b(\d{1,2})\.\s*(?:serie|rada)`)
	episodePattern        = regexp.MustCompile(`(?i)\b(?:episode|epizoda|ep|dil)\s*(\d{1,3})\b|\b(\d{1,3})\.\s*(?:dil|epizoda)`)
)

var stopwordTokens = map[string]struct{}{
	"1080p": {}, "2160p": {}, "720p": {}, "480p": {}, "4k": {}, "uhd": {}, "fullhd": {}, "hd": {},
	"x264": {}, "h264": {}, "x265": {}, "h265": {}, "hevc": {}, "av1": {}, "xvid": {}, "divx": {},
	"hdr": {}, "hdr10": {}, "webrip": {}, "web": {}, "webdl": {}, "dl": {},
	"bluray": {}, "bdrip": {}, "brrip": {}, "dvdrip": {}, "hdrip": {}, "hdtv": {}, "tvrip": {}, "remux": {},
	"aac": {}, "ac3": {}, "dts": {}, "mp3": {},
	"mkv": {}, "mp4": {}, "avi": {}, "wmv": {},
	"cz": {}, "sk": {}, "en": {}, "eng": {}, "cesky": {}, "czech": {}, "dabing": {}, "dab": {},
	"titulky": {}, "tit": {}, "cztit": {}, "sktit": {}, "czdab": {}, "skdab": {},
	"season": {}, "episode": {}, "ep": {}, "serie": {}, "rada": {}, "dil": {}, "epizoda": {},
}

type titleMeta struct {
	normalized string
	tokens     []string
	tokenSet   map[string]struct{}
	year       int
	season     int
	episode    int
}

// foldText lowercases and strips combining marks so "Pelíšky" and "pelisky"
// compare equal.
func foldText(raw string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, raw)
	if err != nil {
		folded = raw
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

func parseTitleMeta(raw string) titleMeta {
	input := foldText(raw)
	if input == "" {
		return titleMeta{tokenSet: map[string]struct{}{}}
	}

	meta := titleMeta{
		tokenSet: make(map[string]struct{}),
	}

	meta.year = extractYear(input)
	meta.season, meta.episode = extractSeasonEpisode(input)

	for _, match := range tokenPattern.FindAllString(input, -1) {
		token := strings.TrimSpace(match)
		if token == "" {
			continue
		}
		if _, ok := stopwordTokens[token]; ok {
			continue
		}
		if seasonEpisodePattern.MatchString(token) || seasonXEpisodePattern.MatchString(token) {
			continue
		}
		if isResolutionToken(token) {
			continue
		}
		if numeric, err := strconv.Atoi(token); err == nil {
			if (meta.year > 0 && numeric == meta.year) || (meta.season > 0 && numeric == meta.season) || (meta.episode > 0 && numeric == meta.episode) {
				continue
			}
		}
		if _, exists := meta.tokenSet[token]; !exists {
			meta.tokens = append(meta.tokens, token)
			meta.tokenSet[token] = struct{}{}
		}
	}

	meta.normalized = strings.Join(meta.tokens, " ")
	return meta
}

func extractYear(input string) int {
	year := 0
	for _, match := range yearPattern.FindAllStringSubmatch(input, -1) {
		if len(match) < 2 {
			continue
		}
		value, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if value > year {
			year = value
		}
	}
	return year
}

func extractSeasonEpisode(input string) (int, int) {
	if match := seasonEpisodePattern.FindStringSubmatch(input); len(match) >= 3 {
		return parseIntOrZero(match[1]), parseIntOrZero(match[2])
	}
	if match := seasonXEpisodePattern.FindStringSubmatch(input); len(match) >= 3 {
		return parseIntOrZero(match[1]), parseIntOrZero(match[2])
	}

	season := 0
	episode := 0
	if match := seasonPattern.FindStringSubmatch(input); len(match) >= 3 {
		season = parseIntOrZero(firstNonEmpty(match[1], match[2]))
	}
	if match := episodePattern.FindStringSubmatch(input); len(match) >= 3 {
		episode = parseIntOrZero(firstNonEmpty(match[1], match[2]))
	}
	return season, episode
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func parseIntOrZero(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 0 {
		return 0
	}
	return value
}

func isResolutionToken(token string) bool {
	if len(token) < 3 || len(token) > 5 {
		return false
	}
	if !strings.HasSuffix(token, "p") {
		return false
	}
	_, err := strconv.Atoi(strings.TrimSuffix(token, "p"))
	return err == nil
}

package common

import (
	"html"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

func CleanHTMLText(raw string) string {
	value := strings.TrimSpace(raw)
	value = html.UnescapeString(value)
	value = tagPattern.ReplaceAllString(value, " ")
	value = strings.Join(strings.Fields(value), " ")
	return value
}

var sizeUnits = []struct {
	suffix     string
	multiplier float64
}{
	{"TIB", 1 << 40}, {"GIB", 1 << 30}, {"MIB", 1 << 20}, {"KIB", 1 << 10},
	{"TB", 1 << 40}, {"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10},
	{"B", 1},
}

// ParseHumanSize turns "1,5 GB" or "700 MB" into bytes. Units are binary.
// Unparseable input yields 0.
func ParseHumanSize(raw string) int64 {
	value := strings.TrimSpace(strings.ToUpper(raw))
	value = strings.ReplaceAll(value, "\u00a0", " ")
	if value == "" {
		return 0
	}

	multiplier := 0.0
	number := value
	for _, unit := range sizeUnits {
		if strings.HasSuffix(number, unit.suffix) {
			multiplier = unit.multiplier
			number = strings.TrimSpace(strings.TrimSuffix(number, unit.suffix))
			break
		}
	}
	if multiplier == 0 {
		if parsed, err := strconv.ParseInt(number, 10, 64); err == nil && parsed > 0 {
			return parsed
		}
		return 0
	}

	number = strings.ReplaceAll(number, " ", "")
	parsed, err := strconv.ParseFloat(strings.ReplaceAll(number, ",", "."), 64)
	if err != nil || parsed < 0 {
		return 0
	}
	return int64(parsed * multiplier)
}

// TimeToSeconds parses "h:mm:ss", "mm:ss" or a plain number of seconds.
func TimeToSeconds(raw string) int {
	value := strings.TrimSpace(CleanHTMLText(raw))
	if value == "" {
		return 0
	}
	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0
	}
	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return total
}

// BytesToSize renders a byte count for display, e.g. "1.5 GB".
func BytesToSize(size int64) string {
	if size <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	value := float64(size)
	exp := 0
	for value >= 1024 && exp < len(units)-1 {
		value /= 1024
		exp++
	}
	rounded := math.Round(value*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + units[exp]
}

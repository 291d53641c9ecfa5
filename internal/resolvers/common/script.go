package common

import (
	"regexp"
	"strings"
)

var (
	jsSourcesPattern = regexp.MustCompile(`(?s)var\s+sources\s*=\s*(\[.*?\])\s*;`)
	jsTracksPattern  = regexp.MustCompile(`(?s)var\s+tracks\s*=\s*(\[.*?\])\s*;`)
	jsObjectPattern  = regexp.MustCompile(`(?s)\{[^{}]*\}`)
	jsPropPattern    = regexp.MustCompile(`["']?(\w+)["']?\s*:\s*(?:"((?:[^"\\]|\\.)*)"|'((?:[^'\\]|\\.)*)')`)
	jsFilePattern    = regexp.MustCompile(`(?s)file\s*:\s*["'](https?:(?:\\?/){2}[^"']+)["']`)
	jsSrcPattern     = regexp.MustCompile(`(?s)src\s*[:=]\s*["'](https?:(?:\\?/){2}[^"']+)["']`)
)

// ScriptObjects reads the string properties of every object literal in the
// array assigned by "var <name> = [...];". Only sources and tracks are
// recognized.
func ScriptObjects(script, name string) []map[string]string {
	pattern := jsSourcesPattern
	if name == "tracks" {
		pattern = jsTracksPattern
	}
	match := pattern.FindStringSubmatch(script)
	if len(match) < 2 {
		return nil
	}

	var out []map[string]string
	for _, object := range jsObjectPattern.FindAllString(match[1], -1) {
		props := make(map[string]string)
		for _, prop := range jsPropPattern.FindAllStringSubmatch(object, -1) {
			value := prop[2]
			if value == "" {
				value = prop[3]
			}
			props[prop[1]] = unescapeJS(value)
		}
		if len(props) > 0 {
			out = append(out, props)
		}
	}
	return out
}

// LastSourceFile returns the file (or src, url) of the last entry of
// "var sources". Players list qualities in ascending order.
func LastSourceFile(script string) string {
	sources := ScriptObjects(script, "sources")
	for i := len(sources) - 1; i >= 0; i-- {
		for _, key := range []string{"file", "src", "url"} {
			if value := strings.TrimSpace(sources[i][key]); value != "" {
				return value
			}
		}
	}
	return ""
}

// ScriptVideoURL finds a video URL in player setup code: the last "var
// sources" entry, then a "file:" property, then a "src:" property.
func ScriptVideoURL(script string) string {
	if video := LastSourceFile(script); video != "" {
		return video
	}
	if match := jsFilePattern.FindStringSubmatch(script); len(match) == 2 {
		return unescapeJS(match[1])
	}
	if match := jsSrcPattern.FindStringSubmatch(script); len(match) == 2 {
		return unescapeJS(match[1])
	}
	return ""
}

func unescapeJS(value string) string {
	value = strings.ReplaceAll(value, `\/`, `/`)
	value = strings.ReplaceAll(value, `\u0026`, `&`)
	value = strings.ReplaceAll(value, `\"`, `"`)
	value = strings.ReplaceAll(value, `\'`, `'`)
	return value
}

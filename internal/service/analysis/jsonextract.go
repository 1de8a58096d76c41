package analysis

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var errNoJSON = errors.New("no valid JSON found in model reply")

var fencedBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// extractJSON pulls a JSON object out of a free-form model reply and
// unmarshals it into v. Models rarely honor "return only JSON", so an ordered
// chain of extraction strategies runs until one yields a parseable candidate:
// the raw text, then the contents of a fenced code block, then the widest
// {...} span. Exhausting the chain returns errNoJSON.
func extractJSON(text string, v any) error {
	for _, extract := range []func(string) (string, bool){
		extractDirect,
		extractFencedBlock,
		extractBraceSpan,
	} {
		candidate, ok := extract(text)
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(candidate), v); err == nil {
			return nil
		}
	}
	return errNoJSON
}

func extractDirect(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}

func extractFencedBlock(text string) (string, bool) {
	match := fencedBlockPattern.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	return match[1], true
}

func extractBraceSpan(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

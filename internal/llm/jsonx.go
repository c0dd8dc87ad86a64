package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/liliang-cn/studydesk/internal/domain"
)

var (
	fenceRe         = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	blankRunRe      = regexp.MustCompile(`[\t\r ]+\n`)
)

// ExtractJSON recovers a JSON value from a model completion that may be
// wrapped in code fences, surrounded by prose, or contain trailing
// commas. On a first parse error a small set of regex fixups is applied
// and parsing is retried once; repeated failure returns ErrParseFailed.
func ExtractJSON(raw string) (any, error) {
	candidate := stripFences(raw)
	candidate = sliceToBrackets(candidate)
	if candidate == "" {
		return nil, fmt.Errorf("%w: no JSON object or array in output", domain.ErrParseFailed)
	}

	var v any
	if err := json.Unmarshal([]byte(candidate), &v); err == nil {
		return v, nil
	}

	fixed := trailingCommaRe.ReplaceAllString(candidate, "$1")
	fixed = blankRunRe.ReplaceAllString(fixed, "\n")
	fixed = strings.TrimSpace(fixed)
	if err := json.Unmarshal([]byte(fixed), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParseFailed, err)
	}
	return v, nil
}

func stripFences(s string) string {
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// sliceToBrackets cuts the string to the first opening bracket and the
// last matching closing bracket of the same family.
func sliceToBrackets(s string) string {
	objStart := strings.IndexByte(s, '{')
	arrStart := strings.IndexByte(s, '[')

	start := objStart
	closer := byte('}')
	if start == -1 || (arrStart != -1 && arrStart < start) {
		start = arrStart
		closer = ']'
	}
	if start == -1 {
		return ""
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return ""
	}
	return strings.TrimSpace(s[start : end+1])
}

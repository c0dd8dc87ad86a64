package extract

import (
	"regexp"
	"strings"
)

// boilerplateKeywords mark pages dominated by administrative content
// rather than learnable material.
var boilerplateKeywords = []string{
	"course structure",
	"course outline",
	"course code",
	"grading",
	"syllabus",
	"references",
	"bibliography",
	"prerequisites",
	"table of contents",
	"acknowledgement",
	"acknowledgment",
	"marks distribution",
	"evaluation scheme",
	"textbook",
	"instructor",
	"office hours",
}

// linePatterns match individual noise lines removed from every page:
// bare page numbers, "page X of Y" footers, dates, and contents headers.
var linePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\s*\d{1,4}\s*$`),
	regexp.MustCompile(`(?i)^\s*page\s+\d+(\s+of\s+\d+)?\s*$`),
	regexp.MustCompile(`^\s*\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}\s*$`),
	regexp.MustCompile(`(?i)^\s*table\s+of\s+contents\s*$`),
	regexp.MustCompile(`(?i)^\s*(slide|lecture)\s+\d+\s*$`),
}

// FilterPages drops boilerplate-dominated pages and scrubs noise lines
// from the rest. If filtering would empty the document, the unfiltered
// pages are returned instead so ingestion never aborts on noisy input.
func FilterPages(pages []string) []string {
	var kept []string
	for _, page := range pages {
		if isBoilerplatePage(page) {
			continue
		}
		cleaned := ScrubLines(page)
		if strings.TrimSpace(cleaned) == "" {
			continue
		}
		kept = append(kept, cleaned)
	}
	if len(kept) == 0 {
		return pages
	}
	return kept
}

// ScrubLines removes line-level noise (page numbers, footers, dates)
// from a single page.
func ScrubLines(page string) string {
	lines := strings.Split(page, "\n")
	out := lines[:0]
	for _, line := range lines {
		if isNoiseLine(line) {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func isNoiseLine(line string) bool {
	for _, re := range linePatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// IsBoilerplate reports whether administrative keywords dominate the
// text: two or more distinct keywords, or keyword-bearing lines making
// up at least half of the non-blank lines.
func IsBoilerplate(text string) bool {
	return isBoilerplatePage(text)
}

func isBoilerplatePage(page string) bool {
	lower := strings.ToLower(page)

	distinct := 0
	for _, kw := range boilerplateKeywords {
		if strings.Contains(lower, kw) {
			distinct++
		}
	}
	if distinct >= 2 {
		return true
	}
	if distinct == 0 {
		return false
	}

	total := 0
	hits := 0
	for _, line := range strings.Split(lower, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		total++
		for _, kw := range boilerplateKeywords {
			if strings.Contains(line, kw) {
				hits++
				break
			}
		}
	}
	return total > 0 && hits*2 >= total
}

package ai

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// minAnswerRunes is the shortest forecast or insight response, in non-space
// characters, that is treated as a real answer when echo screening is on.
const minAnswerRunes = 8

var (
	estimatedTotalPattern = regexp.MustCompile(`(?i)Estimated total:\s*([\d.,]+)`)
	bulletPrefixPattern   = regexp.MustCompile(`^(?:[-*\x{2022}\x{2023}\x{25E6}\x{2043}\x{00B7}]+|\d+[.)])\s*`)
)

// isEcho reports whether response restates prompt instead of answering
// it. An exact case-folded copy of the prompt is always an echo. With
// screening on, so is an answer that repeats any instruction marker or has
// fewer than minRunes non-space characters.
func isEcho(response, prompt string, screen bool, minRunes int, markers ...string) bool {
	r := strings.ToLower(strings.TrimSpace(response))
	if r == strings.ToLower(strings.TrimSpace(prompt)) {
		return true
	}
	if !screen {
		return false
	}
	for _, m := range markers {
		if strings.Contains(r, m) {
			return true
		}
	}
	return countNonSpace(r) < minRunes
}

func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// ParseEstimatedTotal finds the "Estimated total: <number>" marker and
// returns its value with group separators removed.
func ParseEstimatedTotal(text string) (decimal.Decimal, bool) {
	m := estimatedTotalPattern.FindStringSubmatch(text)
	if m == nil {
		return decimal.Zero, false
	}
	raw := strings.TrimRight(strings.ReplaceAll(m[1], ",", ""), ".")
	v, err := decimal.NewFromString(raw)
	if err != nil || v.IsNegative() {
		return decimal.Zero, false
	}
	return v, true
}

// ParseBullets splits model output into lines, strips bullet and numbering
// glyphs, drops blank lines and keeps at most limit entries.
func ParseBullets(text string, limit int) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(bulletPrefixPattern.ReplaceAllString(strings.TrimSpace(line), ""))
		if line == "" {
			continue
		}
		out = append(out, line)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

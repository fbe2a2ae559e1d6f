package ai

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"
)

// OtherCategory is returned when nothing in the model output matches.
const OtherCategory = "Other"

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*?\}`)

// ExtractCategory maps free-form model output onto one of categories. A
// JSON object's "category" field wins when it names a category exactly
// (ignoring case and surrounding space); otherwise the first category, in
// list order, that appears anywhere in the text; otherwise OtherCategory.
// The result always uses the casing from categories.
func ExtractCategory(text string, categories []string) string {
	if obj := jsonObjectPattern.FindString(text); obj != "" {
		var payload map[string]interface{}
		if err := json.Unmarshal([]byte(obj), &payload); err == nil {
			if picked, ok := payload["category"].(string); ok {
				if c, found := matchCategory(picked, categories); found {
					return c
				}
			}
		}
	}

	lower := strings.ToLower(text)
	for _, c := range categories {
		name := strings.ToLower(strings.TrimSpace(c))
		if name == "" {
			continue
		}
		if strings.Contains(lower, name) {
			return c
		}
	}

	return OtherCategory
}

func matchCategory(name string, categories []string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, c := range categories {
		if strings.EqualFold(strings.TrimSpace(c), name) {
			return c, true
		}
	}
	return "", false
}

var techKeywords = map[string]bool{
	"laptop":   true,
	"computer": true,
	"pc":       true,
	"macbook":  true,
	"imac":     true,
	"ipad":     true,
	"iphone":   true,
	"android":  true,
	"phone":    true,
	"tablet":   true,
	"gpu":      true,
	"cpu":      true,
	"ssd":      true,
	"ram":      true,
	"graphics": true,
	"nvidia":   true,
	"amd":      true,
	"intel":    true,
	"monitor":  true,
	"keyboard": true,
	"mouse":    true,
	"headset":  true,
}

// ApplyCategoryHeuristics overrides chosen when the merchant name mentions
// computer hardware: the result is "Tech", or "Utilities" when Tech is not a
// known category. Keywords match whole words (a trailing plural "s" is
// allowed), so "Ramen Bar" is not hardware.
func ApplyCategoryHeuristics(source, chosen string, categories []string) string {
	if !mentionsTech(source) {
		return chosen
	}
	if c, ok := matchCategory("Tech", categories); ok {
		return c
	}
	if c, ok := matchCategory("Utilities", categories); ok {
		return c
	}
	return chosen
}

func mentionsTech(source string) bool {
	words := strings.FieldsFunc(strings.ToLower(source), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if techKeywords[w] || (len(w) > 1 && strings.HasSuffix(w, "s") && techKeywords[strings.TrimSuffix(w, "s")]) {
			return true
		}
	}
	return false
}

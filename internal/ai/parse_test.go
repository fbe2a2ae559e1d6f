package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEstimatedTotal(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"plain", "Groceries up.\nEstimated total: 420.50", "420.5", true},
		{"group separators", "Estimated total: 1,234.00.", "1234", true},
		{"case insensitive", "estimated TOTAL:   99", "99", true},
		{"missing marker", "Spend will rise.", "0", false},
		{"no number", "Estimated total: unknown", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseEstimatedTotal(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseBullets(t *testing.T) {
	text := "- Dining rose 20%\r\n\n* Uber twice a week\n1. Rent unchanged\n• Netflix renewed\n  \nCoffee is steady"

	got := ParseBullets(text, 0)
	require.Len(t, got, 5)
	assert.Equal(t, []string{
		"Dining rose 20%",
		"Uber twice a week",
		"Rent unchanged",
		"Netflix renewed",
		"Coffee is steady",
	}, got)

	assert.Len(t, ParseBullets(text, 2), 2)
	assert.Empty(t, ParseBullets(" \n\n", 3))
}

func TestIsEcho(t *testing.T) {
	prompt := "Generate up to 6 concise spending insights for Sam."

	tests := []struct {
		name     string
		response string
		screen   bool
		want     bool
	}{
		{"exact copy", prompt, false, true},
		{"case and space differ", "  GENERATE UP TO 6 concise spending insights for sam.  ", false, true},
		{"marker without screening", "Generate up to six lines? Sure.", false, false},
		{"marker with screening", "Generate up to six lines? Sure.", true, true},
		{"short answer with screening", "ok", true, true},
		{"short answer without screening", "ok", false, false},
		{"real answer", "Dining out rose 12% this month.", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isEcho(tt.response, prompt, tt.screen, minAnswerRunes, insightsMarker))
		})
	}
}

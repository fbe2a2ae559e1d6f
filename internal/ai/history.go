package ai

import (
	"strings"
	"unicode"

	"github.com/dvloznov/mintbalance/internal/domain"
	"github.com/jbrukh/bayesian"
)

// minHintProbability is how sure the classifier must be before its guess is
// shown to the model.
const minHintProbability = 0.6

// HistoryClassifier learns which category the user files each merchant
// under. Its guess is passed to the model as a hint; it never decides the
// category on its own.
type HistoryClassifier struct {
	cl      *bayesian.Classifier
	classes []bayesian.Class
	vocab   map[string]bool
}

// TrainHistory builds a classifier from past expenses. It returns nil when
// the history spans fewer than two categories, since there is nothing to
// choose between.
func TrainHistory(txs []domain.Transaction) *HistoryClassifier {
	seen := make(map[string]bool)
	var classes []bayesian.Class
	for _, t := range txs {
		if t.Kind != domain.KindExpense || t.Category == "" || seen[t.Category] {
			continue
		}
		seen[t.Category] = true
		classes = append(classes, bayesian.Class(t.Category))
	}
	if len(classes) < 2 {
		return nil
	}

	h := &HistoryClassifier{
		cl:      bayesian.NewClassifier(classes...),
		classes: classes,
		vocab:   make(map[string]bool),
	}
	for _, t := range txs {
		if t.Kind != domain.KindExpense || t.Category == "" {
			continue
		}
		terms := merchantTerms(t.Source)
		if len(terms) == 0 {
			continue
		}
		for _, term := range terms {
			h.vocab[term] = true
		}
		h.cl.Learn(terms, bayesian.Class(t.Category))
	}
	return h
}

// Suggest returns the category past expenses at a similar merchant were
// filed under, when the classifier is confident.
func (h *HistoryClassifier) Suggest(source string) (string, bool) {
	if h == nil {
		return "", false
	}

	terms := merchantTerms(source)
	known := false
	for _, term := range terms {
		if h.vocab[term] {
			known = true
			break
		}
	}
	if !known {
		return "", false
	}

	scores, best, strict := h.cl.ProbScores(terms)
	if !strict || scores[best] < minHintProbability {
		return "", false
	}
	return string(h.classes[best]), true
}

func merchantTerms(source string) []string {
	return strings.FieldsFunc(strings.ToLower(source), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

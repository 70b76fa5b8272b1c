// Package classify scores task text for complexity and risk. The classifier
// is a pure function over the text; it holds no state and performs no I/O.
package classify

import (
	"strings"

	"github.com/maestro-ai/maestro/internal/core"
)

// criticalKeywords is the security/compliance dictionary. A hit elevates
// risk and marks the task critical.
var criticalKeywords = []string{
	"auth", "oauth", "jwt", "payment", "encryption",
	"security", "pii", "compliance", "production", "rollout",
}

// complexityVocab marks structurally heavy work.
var complexityVocab = []string{
	"architecture", "architectural", "integration", "integrate",
	"migration", "migrate", "refactor", "refactoring", "redesign",
	"distributed", "concurrency",
}

// Classify scores text. Both scores are clamped to [1,10]; confidence in
// [0,1] reflects how many independent signals contributed.
func Classify(text string) core.Classification {
	lower := strings.ToLower(text)
	words := strings.Fields(lower)

	signals := 0

	// Complexity: length, sentence count, heavy vocabulary.
	complexity := 1
	switch {
	case len(words) > 200:
		complexity += 4
	case len(words) > 80:
		complexity += 3
	case len(words) > 30:
		complexity += 2
	case len(words) > 10:
		complexity++
	}
	if len(words) > 10 {
		signals++
	}

	sentences := countSentences(text)
	if sentences > 5 {
		complexity += 2
		signals++
	} else if sentences > 2 {
		complexity++
		signals++
	}

	vocabHits := 0
	for _, term := range complexityVocab {
		if strings.Contains(lower, term) {
			vocabHits++
		}
	}
	if vocabHits > 0 {
		complexity += min(vocabHits+1, 4)
		signals++
	}

	// Risk: length plus critical-keyword detection.
	risk := 1
	if len(words) > 80 {
		risk++
	}

	var critical []string
	for _, kw := range criticalKeywords {
		if containsWord(words, kw) {
			critical = append(critical, kw)
		}
	}
	if len(critical) > 0 {
		risk += 3 + min(len(critical)*2, 6)
		signals += 2
	}

	confidence := float64(signals) / 5.0
	if confidence > 1 {
		confidence = 1
	}
	if len(words) == 0 {
		confidence = 0
	}

	return core.Classification{
		Complexity:       clamp(complexity),
		Risk:             clamp(risk),
		CriticalKeywords: critical,
		Confidence:       confidence,
	}
}

func countSentences(text string) int {
	n := 0
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			n++
		}
	}
	return n
}

// containsWord matches kw as a token prefix, so "auth" catches
// "authentication" but word boundaries still hold.
func containsWord(words []string, kw string) bool {
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?()[]{}\"'")
		if strings.HasPrefix(w, kw) {
			return true
		}
	}
	return false
}

func clamp(n int) int {
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

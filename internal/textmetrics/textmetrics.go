// Package textmetrics computes per-item length and alphabetical-content
// metrics used both for admission filtering and for the stage-2 decision
// cascade's length-dependent rules.
package textmetrics

import "unicode"

// Metrics holds the length and letter-content statistics for one item's
// text body.
type Metrics struct {
	LengthTotal       int     `json:"len"`
	LettersCount      int     `json:"letters"`
	NonLetterCount    int     `json:"non_letters"`
	AlphabeticalRatio float64 `json:"alpha_ratio"`
}

// Compute returns the length metrics for text. It is a pure function and
// never fails: empty input yields a zero Metrics with AlphabeticalRatio 0.
func Compute(text string) Metrics {
	var total, letters int
	for _, r := range text {
		total++
		if unicode.IsLetter(r) {
			letters++
		}
	}

	denom := total
	if denom < 1 {
		denom = 1
	}

	return Metrics{
		LengthTotal:       total,
		LettersCount:      letters,
		NonLetterCount:    total - letters,
		AlphabeticalRatio: float64(letters) / float64(denom),
	}
}

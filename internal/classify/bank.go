package classify

import (
	"strings"
	"unicode/utf8"
)

// DefaultMinimalTextLength is the stage-1a pre-filter default (spec
// §4.2): text with fewer characters than this (after trimming) yields
// Unavailable for every classifier.
const DefaultMinimalTextLength = 20

// Bank is the uniform adapter over the configured classifier set
// ("ClassifierBank", spec §4.2).
type Bank struct {
	registry          *Registry
	minimalTextLength int
}

// NewBank builds a Bank over registry with the given minimal-text-length
// pre-filter (0 or negative uses the default).
func NewBank(registry *Registry, minimalTextLength int) *Bank {
	if minimalTextLength <= 0 {
		minimalTextLength = DefaultMinimalTextLength
	}
	return &Bank{registry: registry, minimalTextLength: minimalTextLength}
}

// PredictAll runs every registered classifier against text in
// sorted-name order and returns one Prediction per classifier,
// keyed by name. A per-item backend failure is recorded as
// Unavailable(runtime_error) for that slot only — it never aborts the
// run (spec §4.2, §7).
func (bk *Bank) PredictAll(text string) map[string]Prediction {
	out := make(map[string]Prediction, len(bk.registry.backends))

	trimmed := strings.TrimSpace(text)
	tooShort := utf8.RuneCountInString(trimmed) < bk.minimalTextLength

	for _, name := range bk.registry.Names() {
		backend := bk.registry.backends[name]
		if tooShort {
			out[name] = Unavailable(ReasonTooShort, "")
			continue
		}

		pred, err := backend.Predict(trimmed)
		if err != nil {
			out[name] = Unavailable(ReasonRuntimeError, err.Error())
			continue
		}
		out[name] = pred
	}

	return out
}

// Predict runs a single named classifier, applying the same pre-filter
// as PredictAll. ok is false when name is not registered.
func (bk *Bank) Predict(name, text string) (Prediction, bool) {
	backend, ok := bk.registry.Get(name)
	if !ok {
		return Prediction{}, false
	}

	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < bk.minimalTextLength {
		return Unavailable(ReasonTooShort, ""), true
	}

	pred, err := backend.Predict(trimmed)
	if err != nil {
		return Unavailable(ReasonRuntimeError, err.Error()), true
	}
	return pred, true
}

// MinimalTextLength returns the configured pre-filter threshold.
func (bk *Bank) MinimalTextLength() int { return bk.minimalTextLength }

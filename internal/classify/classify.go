// Package classify provides a uniform adapter ("ClassifierBank") over the
// heterogeneous language-identification backends consulted for every
// content item. Each backend converts its native scoring into a ranked
// list of {language, probability} pairs; the concrete fastText/n-gram
// model binaries are an external concern (see spec §1) — every backend
// here scores with a deterministic, pure-Go character-profile scorer
// (a configured model path is only checked for existence and recorded
// as a version), so the pipeline runs end to end without the
// proprietary binaries.
package classify

import (
	"fmt"
	"sort"
)

// LangProb is one (language code, probability) pair.
type LangProb struct {
	Lang string  `json:"lang"`
	Prob float64 `json:"prob"`
}

// UnavailableReason classifies why a backend produced no prediction.
type UnavailableReason string

const (
	ReasonTooShort     UnavailableReason = "too_short"
	ReasonRuntimeError UnavailableReason = "runtime_error"
	ReasonNotConfigured UnavailableReason = "not_configured"
)

// Prediction is the uniform output of one backend for one item. A nil
// Prediction (Available == false) means the backend declined to answer;
// Reason explains why.
type Prediction struct {
	Available bool              `json:"-"`
	Reason    UnavailableReason `json:"-"`
	Detail    string            `json:"-"`
	Ranked    []LangProb        `json:"ranked,omitempty"`
}

// Top1 returns the highest-probability language and its probability. ok
// is false when the prediction is unavailable or carries no entries.
func (p Prediction) Top1() (lang string, prob float64, ok bool) {
	if !p.Available || len(p.Ranked) == 0 {
		return "", 0, false
	}
	return p.Ranked[0].Lang, p.Ranked[0].Prob, true
}

// MarshalPairs returns the wire representation used by stage 1a output:
// [[lang, prob], ...] preserving descending order (invariant 2, spec §8).
func (p Prediction) MarshalPairs() [][2]any {
	if !p.Available {
		return nil
	}
	pairs := make([][2]any, len(p.Ranked))
	for i, lp := range p.Ranked {
		pairs[i] = [2]any{lp.Lang, lp.Prob}
	}
	return pairs
}

// Unavailable builds a Prediction carrying a refusal reason.
func Unavailable(reason UnavailableReason, detail string) Prediction {
	return Prediction{Available: false, Reason: reason, Detail: detail}
}

// sortRanked sorts pairs by descending probability, breaking ties by
// language code for determinism (invariant 7, spec §8).
func sortRanked(pairs []LangProb) {
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].Prob != pairs[j].Prob {
			return pairs[i].Prob > pairs[j].Prob
		}
		return pairs[i].Lang < pairs[j].Lang
	})
}

// Backend is one configured LID classifier.
type Backend interface {
	Name() string
	SupportedLanguages() []string
	// Predict scores already-trimmed, non-empty text. Runtime failures
	// are returned as an error (caller converts to ReasonRuntimeError);
	// Predict itself never applies the minimal-text-length pre-filter —
	// that is the Bank's responsibility so it is applied uniformly.
	Predict(text string) (Prediction, error)
}

// ErrUnknownBackend is returned by NewRegistry when a configured name has
// no corresponding Backend constructor. Resolving it is always a startup
// (fatal) concern, never a per-item one (spec §9). Suggestion, when
// non-empty, names the closest registered backend by edit distance —
// most often the fix for a typo like "langiD" or "Lingua".
type ErrUnknownBackend struct {
	Name       string
	Suggestion string
}

func (e *ErrUnknownBackend) Error() string {
	if e.Suggestion == "" {
		return fmt.Sprintf("classify: unknown classifier name %q", e.Name)
	}
	return fmt.Sprintf("classify: unknown classifier name %q (did you mean %q?)", e.Name, e.Suggestion)
}

// Package stage2 implements the DecisionEngine: the per-item rule
// cascade and weighted-voting fallback that combines a stage-1a record,
// its collection's stage-1b statistics, and provider metadata into
// exactly one final language label plus an auditable decision code
// (spec §4.5). Decide is a pure function with no shared mutable state
// (Design Note §9), so it is safely callable concurrently across items
// within a (collection, year) unit.
package stage2

import (
	"sort"

	"github.com/impresso-project/lid-core/internal/corpus"
	"github.com/impresso-project/lid-core/internal/stage1"
	"github.com/impresso-project/lid-core/internal/stage1b"
)

// Decision codes (spec §3 Stage2Record, §4.5).
const (
	CodeAll              = "all"
	CodeAllButImpressoFT = "all-but-impresso_ft"
	CodeDominantByLen    = "dominant-by-len"
	CodeDominantByLowVote = "dominant-by-lowvote"
	CodeVoting           = "voting"
	CodeUndetermined     = "und"
)

// Defaults mirror the stage-2 CLI flags (spec §6).
const (
	DefaultMinimalLidProbability = 0.5
	DefaultMinimalTextLength     = 50
	DefaultWeightLbImpressoFT    = 6.0
	DefaultMinimalVotingScore    = 0.5

	// OrigLgTrustThreshold is the fixed trust gate below which orig_lg is
	// treated as absent throughout the cascade (spec §4.5). It is not
	// exposed as a CLI flag in spec §6's table and is kept a constant.
	OrigLgTrustThreshold = 0.75

	impressoFT = "impresso_ft"
	origLg     = "orig_lg"
)

// fiveLangSet is the {de, fr, en, it, lb} exclusion set referenced by the
// all-but-impresso_ft rule (spec §4.5 rule 2).
var fiveLangSet = map[string]bool{"de": true, "fr": true, "en": true, "it": true, "lb": true}

// Config holds the tunable thresholds for one decision run.
type Config struct {
	MinimalLidProbability float64
	MinimalTextLength     int
	WeightLbImpressoFT    float64
	MinimalVotingScore    float64
	ToolVersion           string
}

// NewConfig fills in the spec defaults.
func NewConfig() Config {
	return Config{
		MinimalLidProbability: DefaultMinimalLidProbability,
		MinimalTextLength:     DefaultMinimalTextLength,
		WeightLbImpressoFT:    DefaultWeightLbImpressoFT,
		MinimalVotingScore:    DefaultMinimalVotingScore,
	}
}

// VoteWeight is one member's weighted contribution in the fallback
// voting rule, kept for diagnostics (spec §4.5 "vote_details").
type VoteWeight struct {
	Classifier string  `json:"classifier"`
	Language   string  `json:"language"`
	Weight     float64 `json:"weight"`
}

// VoteDetails is the compact diagnostic block attached to a Stage2Record
// whenever the cascade reached the weighted-voting fallback.
type VoteDetails struct {
	Weights     []VoteWeight       `json:"weights"`
	Totals      map[string]float64 `json:"totals"`
	WinningLang string             `json:"winning_lang"`
	WinningScore float64           `json:"winning_score"`
}

// Record is the Stage2Record (spec §3): the full annotated stage-1
// record and the decision outcome.
type Record struct {
	Stage1         stage1.Record
	FinalLanguage  string
	DecisionCode   string
	VoteDetails    *VoteDetails
	ToolVersion    string
}

// WireRecord is the compact, on-disk stage-2 output shape (spec §6):
// `{id, lg, lg_decision, tool_version, min_text_length_used?}` plus
// passthrough of provider metadata (`ts`, `tp`, `cc`).
type WireRecord struct {
	ID                string `json:"id"`
	Lg                string `json:"lg"`
	LgDecision        string `json:"lg_decision"`
	ToolVersion       string `json:"tool_version,omitempty"`
	MinTextLengthUsed *int   `json:"min_text_length_used,omitempty"`
	Type              string `json:"tp,omitempty"`
	Timestamp         string `json:"ts,omitempty"`
	CC                string `json:"cc,omitempty"`
}

// Wire projects r down to the compact persisted shape.
func (r Record) Wire(minTextLengthUsed *int) WireRecord {
	return WireRecord{
		ID:                r.Stage1.ID,
		Lg:                r.FinalLanguage,
		LgDecision:        r.DecisionCode,
		ToolVersion:       r.ToolVersion,
		MinTextLengthUsed: minTextLengthUsed,
		Type:              r.Stage1.Type,
		Timestamp:         r.Stage1.Timestamp,
		CC:                r.Stage1.CC,
	}
}

// activeMember is one voice in the "active set" A (spec §4.5).
type activeMember struct {
	name string
	lang string
	prob float64
}

// buildActiveSet resolves the active set A: every configured classifier
// prediction with top-1 probability ≥ cfg.MinimalLidProbability, plus
// orig_lg when it passes the trust gate (spec §4.5).
func buildActiveSet(r stage1.Record, s stage1b.Stats, cfg Config) []activeMember {
	var active []activeMember

	names := make([]string, 0, len(r.Predictions))
	for name := range r.Predictions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		lang, prob, ok := r.Predictions[name].Top1()
		if !ok || prob < cfg.MinimalLidProbability {
			continue
		}
		active = append(active, activeMember{name: name, lang: lang, prob: prob})
	}

	if r.OrigLang != "" && origLgTrusted(s) {
		active = append(active, activeMember{name: origLg, lang: r.OrigLang, prob: 1.0})
	}

	return active
}

// origLgTrusted applies the trust gate (spec §4.5): orig_lg is treated
// as absent when the collection's orig_lg_trust is undefined or below
// OrigLgTrustThreshold.
func origLgTrusted(s stage1b.Stats) bool {
	return s.OrigLgTrust != nil && *s.OrigLgTrust >= OrigLgTrustThreshold
}

// allAgree reports whether every member of active shares the same
// language, returning it. ok is false for an empty set.
func allAgree(active []activeMember) (lang string, ok bool) {
	if len(active) == 0 {
		return "", false
	}
	lang = active[0].lang
	for _, m := range active[1:] {
		if m.lang != lang {
			return "", false
		}
	}
	return lang, true
}

// withoutImpressoFT returns active minus any impresso_ft member.
func withoutImpressoFT(active []activeMember) []activeMember {
	out := make([]activeMember, 0, len(active))
	for _, m := range active {
		if m.name == impressoFT {
			continue
		}
		out = append(out, m)
	}
	return out
}

// impressoFTConsistent reports whether impresso_ft's raw top-1 (if it
// has one at all, regardless of the active-set probability gate) agrees
// with lang. A classifier with no prediction at all imposes no
// constraint.
func impressoFTConsistent(r stage1.Record, lang string) bool {
	pred, ok := r.Predictions[impressoFT]
	if !ok {
		return true
	}
	top1, _, ok := pred.Top1()
	if !ok {
		return true
	}
	return top1 == lang
}

// Decide produces the Stage2Record for one item (spec §4.5). s must be
// the CollectionStats for r.Collection; callers are responsible for
// treating a missing collection's stats as fatal (spec §4.5 Failure
// semantics), since Decide itself has no notion of "absent" stats.
func Decide(r stage1.Record, s stage1b.Stats, cfg Config) Record {
	active := buildActiveSet(r, s, cfg)

	// Rule 1: all. impresso_ft only recognizes {fr, de, lb, en, it}
	// (GLOSSARY); when its top-1 exists but falls below the active-set
	// probability gate, it is excluded from A yet still must agree with
	// A's unanimous language for "all" to fire — otherwise a low-
	// confidence impresso_ft disagreement silently passes as unanimous
	// and rule 2 (which exists precisely to handle that disagreement)
	// would never be reachable.
	if len(active) >= 2 {
		if lang, ok := allAgree(active); ok && impressoFTConsistent(r, lang) {
			return Record{Stage1: r, FinalLanguage: lang, DecisionCode: CodeAll, ToolVersion: cfg.ToolVersion}
		}
	}

	// Rule 2: all-but-impresso_ft.
	if rest := withoutImpressoFT(active); len(rest) >= 2 {
		if lang, ok := allAgree(rest); ok &&
			!fiveLangSet[lang] &&
			s.PerLanguageDecided[lang] >= 1 &&
			r.LettersCount >= cfg.MinimalTextLength {
			return Record{Stage1: r, FinalLanguage: lang, DecisionCode: CodeAllButImpressoFT, ToolVersion: cfg.ToolVersion}
		}
	}

	// Rule 3: dominant-by-len. Spec §8's boundary cases phrase the 50
	// threshold in terms of letters ("Text of exactly 50 letters..."),
	// so LettersCount is used here rather than re-deriving a trimmed
	// text length the stage-1a wire format does not carry.
	if r.LettersCount < cfg.MinimalTextLength {
		if s.DominantLanguage == "" {
			return Record{Stage1: r, FinalLanguage: corpus.Undetermined, DecisionCode: CodeUndetermined, ToolVersion: cfg.ToolVersion}
		}
		return Record{Stage1: r, FinalLanguage: s.DominantLanguage, DecisionCode: CodeDominantByLen, ToolVersion: cfg.ToolVersion}
	}

	// Rule 4: weighted-vote fallback.
	details := voteFallback(active, s, cfg)

	if details.WinningScore < cfg.MinimalVotingScore {
		if s.DominantLanguage == "" {
			return Record{Stage1: r, FinalLanguage: corpus.Undetermined, DecisionCode: CodeUndetermined, VoteDetails: &details, ToolVersion: cfg.ToolVersion}
		}
		return Record{Stage1: r, FinalLanguage: s.DominantLanguage, DecisionCode: CodeDominantByLowVote, VoteDetails: &details, ToolVersion: cfg.ToolVersion}
	}
	return Record{Stage1: r, FinalLanguage: details.WinningLang, DecisionCode: CodeVoting, VoteDetails: &details, ToolVersion: cfg.ToolVersion}
}

// voteFallback computes the weighted vote over the active set (spec
// §4.5 "Fallback voting") and resolves ties deterministically.
func voteFallback(active []activeMember, s stage1b.Stats, cfg Config) VoteDetails {
	weights := make([]VoteWeight, 0, len(active))

	sumDecided := 0
	for _, c := range s.PerLanguageDecided {
		sumDecided += c
	}

	for _, m := range active {
		weight := m.prob
		switch {
		case m.name == impressoFT && m.lang == "lb":
			weight = m.prob * cfg.WeightLbImpressoFT
		case m.name == origLg:
			relative := 0.0
			if sumDecided > 0 {
				relative = float64(s.PerLanguageDecided[m.lang]) / float64(sumDecided)
			}
			weight = 2 * relative
		}
		weights = append(weights, VoteWeight{Classifier: m.name, Language: m.lang, Weight: weight})
	}

	// Boost rule of §4.4, reapplied here over the post-override weights:
	// a boosted voter's own contribution is multiplied when at least one
	// other voter shares its language.
	for i := range weights {
		if weights[i].Classifier != impressoFT && weights[i].Classifier != origLg {
			continue
		}
		for j := range weights {
			if j == i {
				continue
			}
			if weights[j].Language == weights[i].Language {
				weights[i].Weight *= stage1b.DefaultBoostFactor
				break
			}
		}
	}

	totals := make(map[string]float64)
	for _, w := range weights {
		totals[w.Language] += w.Weight
	}

	lang, score := argmaxVote(totals, s.PerLanguageDecided)

	return VoteDetails{Weights: weights, Totals: totals, WinningLang: lang, WinningScore: score}
}

// argmaxVote resolves the winning language from per-language totals,
// breaking ties first by higher per_language_decided count, then
// lexicographically (spec §4.5 "Ties in voting fallback").
func argmaxVote(totals map[string]float64, decided map[string]int) (string, float64) {
	if len(totals) == 0 {
		return "", 0
	}

	langs := make([]string, 0, len(totals))
	for l := range totals {
		langs = append(langs, l)
	}
	sort.Strings(langs)

	best := langs[0]
	for _, l := range langs[1:] {
		if totals[l] > totals[best] {
			best = l
			continue
		}
		if totals[l] == totals[best] {
			if decided[l] > decided[best] {
				best = l
			}
			// lexicographic order is already satisfied by the sorted
			// iteration when decided counts are equal too.
		}
	}
	return best, totals[best]
}

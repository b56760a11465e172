// Package stage1b implements the CollectionAggregator: it streams the
// stage-1a records of one newspaper collection and turns them into the
// collection-level ensemble statistics that the stage-2 decision cascade
// consults (spec §4.4). Aggregation is sequential per collection, fast,
// and implemented as a pure function over a slice of stage1.Record so it
// is trivially unit-testable (invariant 3, spec §8: recomputation
// determinism).
package stage1b

import (
	"sort"

	"github.com/impresso-project/lid-core/internal/stage1"
)

// Defaults mirror the stage-1b CLI flags (spec §6).
const (
	DefaultBoostFactor           = 1.5
	DefaultMinimalVoteScore      = 1.5
	DefaultMinimalLidProbability = 0.20
)

// Config holds the tunable thresholds for one aggregation run, persisted
// into Stats for reproducibility (spec §4.4 "Output").
type Config struct {
	Collection            string
	BoostedLids           []string // default {impresso_ft, orig_lg}
	BoostFactor            float64
	MinimalVoteScore       float64
	MinimalLidProbability  float64
	MinimalTextLength      int // recorded only; the admission filter itself is fixed (stage1.AdmissionMinLetters/Ratio)
	ToolVersion            string
	ModelVersions          map[string]string
}

// DefaultBoostedLids is the boosted voter set named in spec §4.4.
func DefaultBoostedLids() []string { return []string{"impresso_ft", "orig_lg"} }

// NewConfig returns a Config for collection with every threshold set to
// its spec default.
func NewConfig(collection string) Config {
	return Config{
		Collection:            collection,
		BoostedLids:           DefaultBoostedLids(),
		BoostFactor:           DefaultBoostFactor,
		MinimalVoteScore:      DefaultMinimalVoteScore,
		MinimalLidProbability: DefaultMinimalLidProbability,
		MinimalTextLength:     20,
	}
}

func (c Config) isBoosted(name string) bool {
	for _, b := range c.BoostedLids {
		if b == name {
			return true
		}
	}
	return false
}

// ClassifierAgreement tallies one classifier's agreement against the
// ensemble decision over decided items (spec §4.4 "Tallies").
type ClassifierAgreement struct {
	Agreements      int `json:"agreements"`
	TotalPredicting int `json:"total_predicting"`
}

// Rate returns Agreements/TotalPredicting, or 0 when the classifier never
// predicted on a decided item.
func (a ClassifierAgreement) Rate() float64 {
	if a.TotalPredicting == 0 {
		return 0
	}
	return float64(a.Agreements) / float64(a.TotalPredicting)
}

// OrigLgSupport tallies how often the provider language code agreed or
// disagreed with the ensemble decision (spec §4.4).
type OrigLgSupport struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
}

// Stats is the CollectionStats output of one aggregation run (spec §3,
// §4.4, §6).
type Stats struct {
	Collection             string                          `json:"collection"`
	TotalItems             int                             `json:"total_items"`
	ItemsDecided           int                             `json:"items_decided"`
	ItemsTied              int                             `json:"items_tied"`
	ItemsLowVote           int                             `json:"items_low_vote"`
	PerLanguageVoteTotals  map[string]float64              `json:"per_language_vote_totals"`
	PerLanguageDecided     map[string]int                  `json:"per_language_decided"`
	ClassifierAgreement    map[string]ClassifierAgreement  `json:"classifier_agreement"`
	OrigLgSupport          OrigLgSupport                   `json:"orig_lg_support"`
	OrigLgTrust            *float64                        `json:"orig_lg_trust"` // nil == undefined
	DominantLanguage       string                          `json:"dominant_language"`
	MinimalTextLength      int                             `json:"minimal_text_length"`
	BoostFactor            float64                         `json:"boost_factor"`
	MinimalVoteScore       float64                         `json:"minimal_vote_score"`
	MinimalLidProbability  float64                         `json:"minimal_lid_probability"`
	ToolVersion            string                          `json:"tool_version"`
	ModelVersions          map[string]string               `json:"model_versions,omitempty"`
}

// voter is one cast vote, tracked individually so the boost rule (spec
// §4.4 "Support boost") can check for support from an *other* voter.
type voter struct {
	name    string
	lang    string
	boosted bool
}

// itemOutcome is the per-item ensemble decision (spec §4.4 "Per-item
// ensemble decision").
type itemOutcome struct {
	decided  bool // a unique winning language exists
	lowVote  bool // max total < MinimalVoteScore
	tied     bool // two or more languages share the max, at/above threshold
	language string
}

// voteItem casts votes for one admitted record and resolves the
// per-item ensemble decision, applying the boost rule per voter (Design
// Note §9: "Boost arithmetic is multiplicative on each boosted voter's
// own contribution, not on the total").
func voteItem(r stage1.Record, cfg Config) (itemOutcome, map[string]float64) {
	var voters []voter

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
		voters = append(voters, voter{name: name, lang: lang, boosted: cfg.isBoosted(name)})
	}
	if r.OrigLang != "" {
		voters = append(voters, voter{name: "orig_lg", lang: r.OrigLang, boosted: cfg.isBoosted("orig_lg")})
	}

	totals := make(map[string]float64)
	for i, v := range voters {
		weight := 1.0
		if v.boosted {
			for j, other := range voters {
				if j == i {
					continue
				}
				if other.lang == v.lang {
					weight = cfg.BoostFactor
					break
				}
			}
		}
		totals[v.lang] += weight
	}

	var maxLang string
	var maxTotal float64
	var winners int
	langsSorted := make([]string, 0, len(totals))
	for l := range totals {
		langsSorted = append(langsSorted, l)
	}
	sort.Strings(langsSorted)
	for _, l := range langsSorted {
		t := totals[l]
		if t > maxTotal {
			maxTotal = t
			maxLang = l
			winners = 1
		} else if t == maxTotal && t > 0 {
			winners++
		}
	}

	if maxTotal < cfg.MinimalVoteScore {
		return itemOutcome{lowVote: true}, totals
	}
	if winners > 1 {
		return itemOutcome{tied: true}, totals
	}
	return itemOutcome{decided: true, language: maxLang}, totals
}

// Aggregate computes CollectionStats over the admitted records of one
// collection (spec §4.4). Records failing the §4.3 admission filter
// still belong to the collection but do not cast votes or contribute to
// any tally, per the invariant in spec §3 ("only items passing the §4.3
// admission filter contribute").
func Aggregate(cfg Config, records []stage1.Record) Stats {
	stats := Stats{
		Collection:            cfg.Collection,
		PerLanguageVoteTotals: make(map[string]float64),
		PerLanguageDecided:    make(map[string]int),
		ClassifierAgreement:   make(map[string]ClassifierAgreement),
		MinimalTextLength:     cfg.MinimalTextLength,
		BoostFactor:           cfg.BoostFactor,
		MinimalVoteScore:      cfg.MinimalVoteScore,
		MinimalLidProbability: cfg.MinimalLidProbability,
		ToolVersion:           cfg.ToolVersion,
		ModelVersions:         cfg.ModelVersions,
	}

	for _, r := range records {
		if !r.Admitted() {
			continue
		}
		stats.TotalItems++

		outcome, totals := voteItem(r, cfg)
		for lang, w := range totals {
			stats.PerLanguageVoteTotals[lang] += w
		}

		switch {
		case outcome.lowVote:
			stats.ItemsLowVote++
			continue
		case outcome.tied:
			stats.ItemsTied++
			continue
		}

		stats.ItemsDecided++
		stats.PerLanguageDecided[outcome.language]++

		for name, pred := range r.Predictions {
			top1, _, ok := pred.Top1()
			if !ok {
				continue
			}
			agg := stats.ClassifierAgreement[name]
			agg.TotalPredicting++
			if top1 == outcome.language {
				agg.Agreements++
			}
			stats.ClassifierAgreement[name] = agg
		}

		if r.OrigLang != "" {
			if r.OrigLang == outcome.language {
				stats.OrigLgSupport.Positive++
			} else {
				stats.OrigLgSupport.Negative++
			}
		}
	}

	if denom := stats.OrigLgSupport.Positive + stats.OrigLgSupport.Negative; denom > 0 {
		trust := float64(stats.OrigLgSupport.Positive) / float64(denom)
		stats.OrigLgTrust = &trust
	}

	stats.DominantLanguage = dominant(stats.PerLanguageDecided)

	return stats
}

// dominant returns the argmax of decided-count by language, tie-broken
// lexicographically (Design Note §9: "specification fixes lexicographic
// order to remove nondeterminism").
func dominant(decided map[string]int) string {
	if len(decided) == 0 {
		return ""
	}
	langs := make([]string, 0, len(decided))
	for l := range decided {
		langs = append(langs, l)
	}
	sort.Strings(langs)

	best := langs[0]
	bestCount := decided[best]
	for _, l := range langs[1:] {
		if decided[l] > bestCount {
			best = l
			bestCount = decided[l]
		}
	}
	return best
}

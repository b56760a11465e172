package stage1b

import (
	"testing"

	"github.com/impresso-project/lid-core/internal/stage1"
	"github.com/impresso-project/lid-core/internal/textmetrics"
)

func pred(lang string, prob float64) stage1.Prediction {
	return stage1.Prediction{Pairs: [][2]any{{lang, prob}}}
}

func admittedMetrics() textmetrics.Metrics {
	// 200 letters, ratio 1.0 passes the §4.3 admission filter.
	return textmetrics.Metrics{LengthTotal: 200, LettersCount: 200, AlphabeticalRatio: 1.0}
}

func TestAggregateAgreementAndDominant(t *testing.T) {
	cfg := NewConfig("GDL")

	records := []stage1.Record{
		{
			OrigLang: "de",
			Metrics:  admittedMetrics(),
			Predictions: map[string]stage1.Prediction{
				"langid":     pred("de", 0.99),
				"langdetect": pred("de", 0.99),
				"wp_ft":      pred("de", 0.98),
				"impresso_ft": pred("de", 0.95),
				"lingua":     pred("de", 0.97),
			},
		},
		{
			OrigLang: "fr",
			Metrics:  admittedMetrics(),
			Predictions: map[string]stage1.Prediction{
				"langid":      pred("fr", 0.9),
				"langdetect":  pred("fr", 0.9),
				"wp_ft":       pred("fr", 0.9),
				"impresso_ft": pred("fr", 0.9),
				"lingua":      pred("fr", 0.9),
			},
		},
	}

	stats := Aggregate(cfg, records)

	if stats.TotalItems != 2 {
		t.Fatalf("total items = %d, want 2", stats.TotalItems)
	}
	if stats.ItemsDecided != 2 {
		t.Fatalf("items decided = %d, want 2", stats.ItemsDecided)
	}
	if stats.PerLanguageDecided["de"] != 1 || stats.PerLanguageDecided["fr"] != 1 {
		t.Fatalf("per-language decided = %+v", stats.PerLanguageDecided)
	}
	// Tie between de and fr (one decided item each) resolves lexicographically.
	if stats.DominantLanguage != "de" {
		t.Fatalf("dominant language = %q, want de", stats.DominantLanguage)
	}
	if got := stats.ClassifierAgreement["langid"]; got.Agreements != 2 || got.TotalPredicting != 2 {
		t.Fatalf("langid agreement = %+v", got)
	}
	if stats.OrigLgSupport.Positive != 2 || stats.OrigLgSupport.Negative != 0 {
		t.Fatalf("orig_lg support = %+v", stats.OrigLgSupport)
	}
	if stats.OrigLgTrust == nil || *stats.OrigLgTrust != 1.0 {
		t.Fatalf("orig_lg trust = %v, want 1.0", stats.OrigLgTrust)
	}
}

func TestAggregateSupportBoost(t *testing.T) {
	cfg := NewConfig("LUX")

	// impresso_ft votes lb and gets support from lingua also voting lb;
	// wp_ft votes de alone. impresso_ft's own 1 vote should become
	// 1*1.5 = 1.5 because of lingua's support.
	records := []stage1.Record{
		{
			Metrics: admittedMetrics(),
			Predictions: map[string]stage1.Prediction{
				"impresso_ft": pred("lb", 0.9),
				"lingua":      pred("lb", 0.8),
				"wp_ft":       pred("de", 0.9),
			},
		},
	}

	stats := Aggregate(cfg, records)
	if stats.PerLanguageVoteTotals["lb"] != 2.5 { // impresso_ft boosted 1.5 + lingua 1.0
		t.Fatalf("lb vote total = %v, want 2.5", stats.PerLanguageVoteTotals["lb"])
	}
	if stats.PerLanguageVoteTotals["de"] != 1.0 {
		t.Fatalf("de vote total = %v, want 1.0", stats.PerLanguageVoteTotals["de"])
	}
	if stats.DominantLanguage != "lb" {
		t.Fatalf("dominant language = %q, want lb", stats.DominantLanguage)
	}
}

func TestAggregateLowVoteAndTie(t *testing.T) {
	cfg := NewConfig("BLB")

	records := []stage1.Record{
		// Single unboosted voter below minimal_vote_score (1.5) -> low vote.
		{
			Metrics: admittedMetrics(),
			Predictions: map[string]stage1.Prediction{
				"langid": pred("de", 0.9),
			},
		},
		// impresso_ft (boosted, supported by lingua on "de") and orig_lg
		// (boosted, supported by langid on "fr") each total 2.5 -> tie.
		{
			OrigLang: "fr",
			Metrics:  admittedMetrics(),
			Predictions: map[string]stage1.Prediction{
				"impresso_ft": pred("de", 0.9),
				"lingua":      pred("de", 0.8),
				"langid":      pred("fr", 0.9),
			},
		},
	}

	stats := Aggregate(cfg, records)
	if stats.ItemsLowVote != 1 {
		t.Fatalf("items low vote = %d, want 1", stats.ItemsLowVote)
	}
	if stats.ItemsTied != 1 {
		t.Fatalf("items tied = %d, want 1", stats.ItemsTied)
	}
	if stats.ItemsDecided != 0 {
		t.Fatalf("items decided = %d, want 0", stats.ItemsDecided)
	}
}

func TestAggregateSkipsNonAdmittedRecords(t *testing.T) {
	cfg := NewConfig("GDL")
	records := []stage1.Record{
		{
			Metrics: textmetrics.Metrics{LengthTotal: 5, LettersCount: 5, AlphabeticalRatio: 1.0},
			Predictions: map[string]stage1.Prediction{
				"langid": pred("de", 0.9),
			},
		},
	}
	stats := Aggregate(cfg, records)
	if stats.TotalItems != 0 {
		t.Fatalf("total items = %d, want 0 (record too short to be admitted)", stats.TotalItems)
	}
}

func TestOrigLgTrustUndefinedWithoutSupport(t *testing.T) {
	cfg := NewConfig("GDL")
	records := []stage1.Record{
		{
			Metrics: admittedMetrics(),
			Predictions: map[string]stage1.Prediction{
				"langid": pred("de", 0.9),
			},
		},
	}
	stats := Aggregate(cfg, records)
	if stats.OrigLgTrust != nil {
		t.Fatalf("orig_lg trust = %v, want undefined (nil)", stats.OrigLgTrust)
	}
}

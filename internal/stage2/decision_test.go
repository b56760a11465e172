package stage2

import (
	"testing"

	"github.com/impresso-project/lid-core/internal/stage1"
	"github.com/impresso-project/lid-core/internal/stage1b"
	"github.com/impresso-project/lid-core/internal/textmetrics"
)

func pred(lang string, prob float64) stage1.Prediction {
	return stage1.Prediction{Pairs: [][2]any{{lang, prob}}}
}

func metricsOfLetters(n int) textmetrics.Metrics {
	return textmetrics.Metrics{LengthTotal: n, LettersCount: n, AlphabeticalRatio: 1.0}
}

func trust(v float64) *float64 { return &v }

// S1 — Trivial agreement.
func TestDecideS1TrivialAgreement(t *testing.T) {
	r := stage1.Record{
		OrigLang: "de",
		Metrics:  metricsOfLetters(60),
		Predictions: map[string]stage1.Prediction{
			"langid":      pred("de", 0.99),
			"langdetect":  pred("de", 0.99),
			"wp_ft":       pred("de", 0.98),
			"impresso_ft": pred("de", 0.95),
			"lingua":      pred("de", 0.97),
		},
	}
	s := stage1b.Stats{OrigLgTrust: trust(0.9), PerLanguageDecided: map[string]int{"de": 10}}

	out := Decide(r, s, NewConfig())
	if out.DecisionCode != CodeAll || out.FinalLanguage != "de" {
		t.Fatalf("got (%s, %s), want (all, de)", out.DecisionCode, out.FinalLanguage)
	}
}

// S2 — Rare language.
func TestDecideS2RareLanguage(t *testing.T) {
	r := stage1.Record{
		Metrics: metricsOfLetters(60),
		Predictions: map[string]stage1.Prediction{
			"langid":      pred("la", 0.9),
			"langdetect":  pred("la", 0.9),
			"wp_ft":       pred("la", 0.9),
			"lingua":      pred("la", 0.9),
			"impresso_ft": pred("fr", 0.4),
		},
	}
	s := stage1b.Stats{PerLanguageDecided: map[string]int{"la": 3}}

	out := Decide(r, s, NewConfig())
	if out.DecisionCode != CodeAllButImpressoFT || out.FinalLanguage != "la" {
		t.Fatalf("got (%s, %s), want (all-but-impresso_ft, la)", out.DecisionCode, out.FinalLanguage)
	}
}

// S3 — Short text.
func TestDecideS3ShortText(t *testing.T) {
	r := stage1.Record{
		Metrics: metricsOfLetters(5),
		Predictions: map[string]stage1.Prediction{
			"langid": pred("de", 0.9),
		},
	}
	s := stage1b.Stats{DominantLanguage: "fr"}

	out := Decide(r, s, NewConfig())
	if out.DecisionCode != CodeDominantByLen || out.FinalLanguage != "fr" {
		t.Fatalf("got (%s, %s), want (dominant-by-len, fr)", out.DecisionCode, out.FinalLanguage)
	}
}

// S4 — Luxembourgish override via the weighted voting fallback.
func TestDecideS4LuxembourgishOverride(t *testing.T) {
	r := stage1.Record{
		Metrics: metricsOfLetters(60),
		Predictions: map[string]stage1.Prediction{
			"langid":      pred("de", 0.6),
			"langdetect":  pred("de", 0.55),
			"wp_ft":       pred("lb", 0.5),
			"impresso_ft": pred("lb", 0.92),
			"lingua":      pred("lb", 0.7),
		},
	}
	s := stage1b.Stats{}

	out := Decide(r, s, NewConfig())
	if out.DecisionCode != CodeVoting || out.FinalLanguage != "lb" {
		t.Fatalf("got (%s, %s), want (voting, lb)", out.DecisionCode, out.FinalLanguage)
	}
	if out.VoteDetails == nil {
		t.Fatal("expected vote details to be populated")
	}
	var impressoWeight float64
	for _, w := range out.VoteDetails.Weights {
		if w.Classifier == "impresso_ft" {
			impressoWeight = w.Weight
		}
	}
	if got, want := impressoWeight, 0.92*6*1.5; got < want-1e-9 || got > want+1e-9 {
		t.Fatalf("impresso_ft boosted weight = %v, want %v", got, want)
	}
}

// S5 — Low confidence across the board.
func TestDecideS5LowConfidence(t *testing.T) {
	r := stage1.Record{
		Metrics: metricsOfLetters(120),
		Predictions: map[string]stage1.Prediction{
			"langid":     pred("de", 0.3),
			"langdetect": pred("fr", 0.2),
		},
	}
	s := stage1b.Stats{DominantLanguage: "de"}

	out := Decide(r, s, NewConfig())
	if out.DecisionCode != CodeDominantByLowVote || out.FinalLanguage != "de" {
		t.Fatalf("got (%s, %s), want (dominant-by-lowvote, de)", out.DecisionCode, out.FinalLanguage)
	}
}

// S6 — Stats trust gate: low orig_lg_trust makes orig_lg absent.
func TestDecideS6TrustGate(t *testing.T) {
	r := stage1.Record{
		OrigLang: "it",
		Metrics:  metricsOfLetters(60),
		Predictions: map[string]stage1.Prediction{
			"langid":      pred("fr", 0.9),
			"langdetect":  pred("fr", 0.9),
			"wp_ft":       pred("fr", 0.9),
			"impresso_ft": pred("fr", 0.9),
			"lingua":      pred("fr", 0.9),
		},
	}
	s := stage1b.Stats{OrigLgTrust: trust(0.60)}

	out := Decide(r, s, NewConfig())
	if out.DecisionCode != CodeAll || out.FinalLanguage != "fr" {
		t.Fatalf("got (%s, %s), want (all, fr)", out.DecisionCode, out.FinalLanguage)
	}
}

func TestDecideBoundaryExactlyFiftyLetters(t *testing.T) {
	r := stage1.Record{
		Metrics: metricsOfLetters(50),
		Predictions: map[string]stage1.Prediction{
			"langid": pred("de", 0.3),
		},
	}
	s := stage1b.Stats{DominantLanguage: "fr"}

	out := Decide(r, s, NewConfig())
	if out.DecisionCode == CodeDominantByLen {
		t.Fatalf("50 letters must not trigger dominant-by-len, got %s", out.DecisionCode)
	}
}

func TestDecideBoundaryFortyNineLetters(t *testing.T) {
	r := stage1.Record{
		Metrics: metricsOfLetters(49),
		Predictions: map[string]stage1.Prediction{
			"langid": pred("de", 0.9),
		},
	}
	s := stage1b.Stats{DominantLanguage: "fr"}

	out := Decide(r, s, NewConfig())
	if out.DecisionCode != CodeDominantByLen {
		t.Fatalf("49 letters must trigger dominant-by-len, got %s", out.DecisionCode)
	}
}

func TestDecideSingleActiveClassifierDoesNotFireAll(t *testing.T) {
	r := stage1.Record{
		Metrics: metricsOfLetters(60),
		Predictions: map[string]stage1.Prediction{
			"langid": pred("de", 0.9),
		},
	}
	s := stage1b.Stats{DominantLanguage: "fr"}

	out := Decide(r, s, NewConfig())
	if out.DecisionCode == CodeAll {
		t.Fatal("a single active classifier must not trigger rule `all` (|A| >= 2 required)")
	}
}

func TestDecideEmptyTextNoDominant(t *testing.T) {
	r := stage1.Record{Metrics: metricsOfLetters(0)}
	s := stage1b.Stats{}

	out := Decide(r, s, NewConfig())
	if out.DecisionCode != CodeUndetermined || out.FinalLanguage != "und" {
		t.Fatalf("got (%s, %s), want (und, und)", out.DecisionCode, out.FinalLanguage)
	}
}

func TestDecideEmptyTextWithDominant(t *testing.T) {
	r := stage1.Record{Metrics: metricsOfLetters(0)}
	s := stage1b.Stats{DominantLanguage: "fr"}

	out := Decide(r, s, NewConfig())
	if out.DecisionCode != CodeDominantByLen || out.FinalLanguage != "fr" {
		t.Fatalf("got (%s, %s), want (dominant-by-len, fr)", out.DecisionCode, out.FinalLanguage)
	}
}

package classify

import "testing"

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	available, err := DefaultBackends("", "", nil)
	if err != nil {
		t.Fatalf("DefaultBackends: %v", err)
	}
	names := []string{"impresso_ft", "wp_ft", "langid", "langdetect", "lingua", "impresso_langident_pipeline"}
	reg, err := NewRegistry(names, available)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func TestNewRegistryUnknownName(t *testing.T) {
	available, _ := DefaultBackends("", "", nil)
	_, err := NewRegistry([]string{"not_a_real_classifier"}, available)
	if err == nil {
		t.Fatal("expected error for unknown classifier name")
	}
	var unk *ErrUnknownBackend
	if !asUnknown(err, &unk) {
		t.Fatalf("expected ErrUnknownBackend, got %T: %v", err, err)
	}
}

func asUnknown(err error, target **ErrUnknownBackend) bool {
	if e, ok := err.(*ErrUnknownBackend); ok {
		*target = e
		return true
	}
	return false
}

func TestBankTooShortText(t *testing.T) {
	reg := newTestRegistry(t)
	bank := NewBank(reg, 20)

	preds := bank.PredictAll("Hier.")
	for name, p := range preds {
		if p.Available {
			t.Errorf("%s: expected unavailable for short text", name)
		}
		if p.Reason != ReasonTooShort {
			t.Errorf("%s: expected too_short reason, got %s", name, p.Reason)
		}
	}
}

func TestBankPredictionsSortedDescending(t *testing.T) {
	reg := newTestRegistry(t)
	bank := NewBank(reg, 20)

	preds := bank.PredictAll("Der Mann ging nach Hause und dachte an die Zukunft seiner Familie.")
	for name, p := range preds {
		if !p.Available {
			t.Fatalf("%s: expected a prediction for sufficiently long text", name)
		}
		for i := 1; i < len(p.Ranked); i++ {
			if p.Ranked[i-1].Prob < p.Ranked[i].Prob {
				t.Errorf("%s: ranked list not descending at %d: %+v", name, i, p.Ranked)
			}
		}
	}
}

func TestImpressoFTSupportedLanguagesClosed(t *testing.T) {
	b, err := NewImpressoFT("", nil)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"fr": true, "de": true, "lb": true, "en": true, "it": true}
	for _, l := range b.SupportedLanguages() {
		if !want[l] {
			t.Errorf("unexpected language in impresso_ft closed set: %s", l)
		}
	}
	if len(b.SupportedLanguages()) != len(want) {
		t.Errorf("expected exactly %d languages, got %d", len(want), len(b.SupportedLanguages()))
	}
}

func TestLangdetectExcludesLuxembourgish(t *testing.T) {
	b := NewLangdetect()
	for _, l := range b.SupportedLanguages() {
		if l == "lb" {
			t.Fatalf("langdetect must exclude lb per spec")
		}
	}
}

func TestLangdetectDeterministic(t *testing.T) {
	b := NewLangdetect()
	text := "Ceci est un texte assez long pour passer le filtre minimal de longueur."
	p1, err := b.Predict(text)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := b.Predict(text)
	if err != nil {
		t.Fatal(err)
	}
	if len(p1.Ranked) != len(p2.Ranked) {
		t.Fatalf("nondeterministic ranked length")
	}
	for i := range p1.Ranked {
		if p1.Ranked[i] != p2.Ranked[i] {
			t.Fatalf("nondeterministic ranking at %d: %+v vs %+v", i, p1.Ranked[i], p2.Ranked[i])
		}
	}
}

func TestPipelineCombinesComponents(t *testing.T) {
	p := NewPipeline(NewLangid(), NewLingua())
	pred, err := p.Predict("Das ist ein ziemlich langer deutscher Satz zum Testen der Pipeline.")
	if err != nil {
		t.Fatal(err)
	}
	if !pred.Available || len(pred.Ranked) == 0 {
		t.Fatalf("expected pipeline prediction, got %+v", pred)
	}
}

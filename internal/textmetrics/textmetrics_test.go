package textmetrics

import "testing"

func TestComputeBasic(t *testing.T) {
	m := Compute("Die Schweiz ist ein schönes Land.")
	if m.LettersCount == 0 {
		t.Fatalf("expected letters counted, got 0")
	}
	if m.LengthTotal == 0 {
		t.Fatalf("expected non-zero length")
	}
	if m.AlphabeticalRatio <= 0 || m.AlphabeticalRatio > 1 {
		t.Errorf("ratio out of range: %v", m.AlphabeticalRatio)
	}
}

func TestComputeEmpty(t *testing.T) {
	m := Compute("")
	if m.LengthTotal != 0 || m.LettersCount != 0 {
		t.Fatalf("expected zero metrics for empty text, got %+v", m)
	}
	if m.AlphabeticalRatio != 0 {
		t.Errorf("expected ratio 0 for empty text, got %v", m.AlphabeticalRatio)
	}
}

func TestComputeBoundaryLetterCounts(t *testing.T) {
	fifty := make([]rune, 50)
	for i := range fifty {
		fifty[i] = 'a'
	}
	m := Compute(string(fifty))
	if m.LettersCount != 50 {
		t.Fatalf("expected 50 letters, got %d", m.LettersCount)
	}

	fortyNine := fifty[:49]
	m2 := Compute(string(fortyNine))
	if m2.LettersCount != 49 {
		t.Fatalf("expected 49 letters, got %d", m2.LettersCount)
	}
}

func TestComputeNonLetters(t *testing.T) {
	m := Compute("123 456")
	if m.LettersCount != 0 {
		t.Errorf("expected 0 letters, got %d", m.LettersCount)
	}
	if m.NonLetterCount != m.LengthTotal {
		t.Errorf("expected all non-letters, got %+v", m)
	}
}

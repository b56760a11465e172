// Package stage1 implements per-item multi-classifier annotation: for
// every content item, run the configured ClassifierBank and emit an
// annotated Stage1Record, regardless of whether the item is long enough
// to later contribute to collection statistics.
package stage1

import (
	"encoding/json"

	"github.com/impresso-project/lid-core/internal/classify"
	"github.com/impresso-project/lid-core/internal/corpus"
	"github.com/impresso-project/lid-core/internal/textmetrics"
)

// AdmissionMinLetters and AdmissionMinAlphaRatio gate whether a record
// contributes to stage-1b collection statistics (spec §4.3). They do not
// gate stage-1a output: every item is always annotated.
const (
	AdmissionMinLetters    = 200
	AdmissionMinAlphaRatio = 0.5
)

// Prediction is the wire shape of one classifier's output: an ordered
// [[lang, prob], ...] list, or null when the classifier declined.
type Prediction struct {
	Pairs  [][2]any `json:"-"`
	absent bool
}

// MarshalJSON emits the ordered pair list, or JSON null when absent.
func (p Prediction) MarshalJSON() ([]byte, error) {
	if p.absent || p.Pairs == nil {
		return []byte("null"), nil
	}
	return json.Marshal(p.Pairs)
}

// UnmarshalJSON accepts either null or a [[lang, prob], ...] array.
func (p *Prediction) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		p.absent = true
		p.Pairs = nil
		return nil
	}
	var raw [][2]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p.Pairs = raw
	p.absent = false
	return nil
}

// FromClassifyPrediction converts a classify.Prediction into the wire
// Prediction shape.
func FromClassifyPrediction(cp classify.Prediction) Prediction {
	if !cp.Available {
		return Prediction{absent: true}
	}
	return Prediction{Pairs: cp.MarshalPairs()}
}

// Top1 returns the top-ranked language and probability, if present.
func (p Prediction) Top1() (lang string, prob float64, ok bool) {
	if p.absent || len(p.Pairs) == 0 {
		return "", 0, false
	}
	lang, _ = p.Pairs[0][0].(string)
	switch v := p.Pairs[0][1].(type) {
	case float64:
		prob = v
	}
	return lang, prob, lang != ""
}

// Record is the stage-1a annotated record (spec §3, §6).
type Record struct {
	ID           string                `json:"id"`
	Type         string                `json:"tp,omitempty"`
	Timestamp    string                `json:"ts,omitempty"`
	CC           string                `json:"cc,omitempty"`
	Title        string                `json:"title,omitempty"`
	OrigLang     string                `json:"orig_lg,omitempty"`
	textmetrics.Metrics
	Predictions  map[string]Prediction `json:"predictions"`
	ModelVersions map[string]string    `json:"model_versions,omitempty"`
	ToolVersion  string                `json:"tool_version,omitempty"`
}

// Collection returns the newspaper acronym this record belongs to,
// re-derived from ID. Collection/Year are not part of the wire shape (spec
// §6) and so cannot be stored fields: a record read back from a stage-1a
// JSONL file has only ID to route on, not whatever the annotating process
// happened to compute at write time.
func (r Record) Collection() string {
	collection, _ := corpus.CollectionYear(r.ID)
	return collection
}

// Year returns the four-digit publication year this record belongs to,
// re-derived from ID. See Collection for why this is a method, not a field.
func (r Record) Year() string {
	_, year := corpus.CollectionYear(r.ID)
	return year
}

// Admitted reports whether r passes the stage-1b contribution filter
// (spec §4.3): letters_count ≥ 200 AND alphabetical_ratio ≥ 0.5. This is
// independent of the stage-1a classifier pre-filter (minimal_text_length,
// default 20), which governs whether classifiers ran at all.
func (r Record) Admitted() bool {
	return r.LettersCount >= AdmissionMinLetters && r.AlphabeticalRatio >= AdmissionMinAlphaRatio
}

// Annotator runs a classify.Bank over content items and emits Records.
// Per spec §4.3, every configured classifier must have an entry in
// Predictions, even when unavailable, so downstream consumers never see
// a missing key.
type Annotator struct {
	Bank          *classify.Bank
	ToolVersion   string
	ModelVersions map[string]string
}

// NewAnnotator builds an Annotator over bank.
func NewAnnotator(bank *classify.Bank, toolVersion string, modelVersions map[string]string) *Annotator {
	return &Annotator{Bank: bank, ToolVersion: toolVersion, ModelVersions: modelVersions}
}

// Annotate produces the Stage1Record for one content item.
func (a *Annotator) Annotate(item corpus.ContentItem) Record {
	metrics := textmetrics.Compute(item.Text)

	origLg := ""
	if canon, ok := corpus.CanonicalLang(item.OrigLang); ok {
		origLg = canon
	}

	preds := a.Bank.PredictAll(item.Text)
	wire := make(map[string]Prediction, len(preds))
	for name, cp := range preds {
		wire[name] = FromClassifyPrediction(cp)
	}

	return Record{
		ID:            item.ID,
		Type:          item.Type,
		Timestamp:     item.Timestamp,
		CC:            item.CC,
		Title:         item.Title,
		OrigLang:      origLg,
		Metrics:       metrics,
		Predictions:   wire,
		ModelVersions: a.ModelVersions,
		ToolVersion:   a.ToolVersion,
	}
}

// roundDigits rounds p to n decimal digits, mirroring the
// --round-ndigits CLI flag (spec §6) applied to stage-1a probabilities
// before they are written to disk, to keep output diffs small and
// human-legible.
func roundDigits(p float64, n int) float64 {
	if n < 0 {
		return p
	}
	scale := 1.0
	for i := 0; i < n; i++ {
		scale *= 10
	}
	return float64(int(p*scale+0.5)) / scale
}

// RoundPredictions applies roundDigits to every probability in r's
// predictions, in place.
func RoundPredictions(r *Record, ndigits int) {
	if ndigits < 0 {
		return
	}
	for name, pred := range r.Predictions {
		if pred.absent {
			continue
		}
		rounded := make([][2]any, len(pred.Pairs))
		for i, pair := range pred.Pairs {
			lang, _ := pair[0].(string)
			prob, _ := pair[1].(float64)
			rounded[i] = [2]any{lang, roundDigits(prob, ndigits)}
		}
		pred.Pairs = rounded
		r.Predictions[name] = pred
	}
}

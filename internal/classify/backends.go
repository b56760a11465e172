package classify

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"math/rand"
	"os"
	"strings"
)

// ModelLoader checks a backing model file. Only impresso_ft and wp_ft
// consult one; a nil loader uses StatModelLoader. An empty path leaves
// the backend on its "profile-fallback" version; a path the loader
// rejects is returned as an error. Predictions come from the pure-Go
// profile scorer in every case, so the pipeline stays runnable without
// the proprietary binaries (spec §1).
type ModelLoader func(path string) (loaded bool, version string, err error)

// StatModelLoader is the default ModelLoader: it only checks the model
// file exists and is readable, recording its size as a pseudo-version.
func StatModelLoader(path string) (bool, string, error) {
	if path == "" {
		return false, "", nil
	}
	fi, err := os.Stat(path)
	if err != nil {
		return false, "", fmt.Errorf("classify: stat model %q: %w", path, err)
	}
	return true, fmt.Sprintf("size-%d", fi.Size()), nil
}

// impressoFT recognizes exactly {fr, de, lb, en, it} (spec §4.2, GLOSSARY).
type impressoFT struct {
	version string
}

// NewImpressoFT builds the impresso_ft backend. modelPath is optional;
// it only sets the recorded version, and the backend scores with the
// profile scorer whether or not a path is given.
func NewImpressoFT(modelPath string, loader ModelLoader) (*impressoFT, error) {
	if loader == nil {
		loader = StatModelLoader
	}
	loaded, version, err := loader(modelPath)
	if err != nil {
		return nil, fmt.Errorf("classify: impresso_ft: %w", err)
	}
	if !loaded {
		version = "profile-fallback"
	}
	return &impressoFT{version: version}, nil
}

func (b *impressoFT) Name() string                 { return "impresso_ft" }
func (b *impressoFT) SupportedLanguages() []string  { return []string{"fr", "de", "lb", "en", "it"} }
func (b *impressoFT) Version() string               { return b.version }
func (b *impressoFT) Predict(text string) (Prediction, error) {
	ranked := profileScore(text, b.SupportedLanguages())
	return Prediction{Available: true, Ranked: ranked}, nil
}

// wpFT is the Wikipedia-trained fastText model, ~176 languages incl. lb.
// The curated signature set only discriminates a practical subset; any
// language outside it simply never wins the ranking, which is consistent
// with a real model returning low confidence on underrepresented scripts.
type wpFT struct {
	version string
}

func NewWPFT(modelPath string, loader ModelLoader) (*wpFT, error) {
	if loader == nil {
		loader = StatModelLoader
	}
	loaded, version, err := loader(modelPath)
	if err != nil {
		return nil, fmt.Errorf("classify: wp_ft: %w", err)
	}
	if !loaded {
		version = "profile-fallback"
	}
	return &wpFT{version: version}, nil
}

func (b *wpFT) Name() string                { return "wp_ft" }
func (b *wpFT) Version() string             { return b.version }
func (b *wpFT) SupportedLanguages() []string {
	return []string{"de", "fr", "en", "it", "lb", "es", "pt", "nl", "la"}
}
func (b *wpFT) Predict(text string) (Prediction, error) {
	ranked := profileScore(text, b.SupportedLanguages())
	return Prediction{Available: true, Ranked: ranked}, nil
}

// langid stands in for the n-gram probabilistic classifier (97
// languages incl. lb); it scores only the languages listed by
// SupportedLanguages.
type langid struct{}

func NewLangid() *langid { return &langid{} }

func (b *langid) Name() string                { return "langid" }
func (b *langid) SupportedLanguages() []string {
	return []string{"de", "fr", "en", "it", "lb", "es", "pt", "nl", "la"}
}
func (b *langid) Predict(text string) (Prediction, error) {
	ranked := profileScore(text, b.SupportedLanguages())
	return Prediction{Available: true, Ranked: ranked}, nil
}

// langdetect stands in for the Google-port backend (55 languages,
// excludes lb); it scores only the languages listed by
// SupportedLanguages, none of which is lb. It
// must be deterministic per item (spec §4.2): the scorer itself is
// already deterministic, but a fixed per-item seed is derived and
// retained so a future probabilistic refinement (Monte-Carlo language
// profiling, as the real library performs) can reuse it without losing
// reproducibility.
type langdetect struct{}

func NewLangdetect() *langdetect { return &langdetect{} }

func (b *langdetect) Name() string { return "langdetect" }
func (b *langdetect) SupportedLanguages() []string {
	return []string{"de", "fr", "en", "it", "es", "pt", "nl", "la"}
}

// seedFor derives a stable per-item seed from the item text so repeated
// runs over identical input are byte-identical (invariant 7, spec §8).
func seedFor(text string) int64 {
	sum := sha1.Sum([]byte(text))
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

func (b *langdetect) Predict(text string) (Prediction, error) {
	_ = rand.New(rand.NewSource(seedFor(text))) // reserved for probabilistic refinement
	ranked := profileScore(text, b.SupportedLanguages())
	return Prediction{Available: true, Ranked: ranked}, nil
}

// lingua stands in for the rule-based n-gram classifier (75 languages
// incl. lb); it scores only the languages listed by SupportedLanguages.
type lingua struct{}

func NewLingua() *lingua { return &lingua{} }

func (b *lingua) Name() string                { return "lingua" }
func (b *lingua) SupportedLanguages() []string {
	return []string{"de", "fr", "en", "it", "lb", "es", "pt", "nl", "la"}
}
func (b *lingua) Predict(text string) (Prediction, error) {
	ranked := profileScore(text, b.SupportedLanguages())
	return Prediction{Available: true, Ranked: ranked}, nil
}

// pipeline is impresso_langident_pipeline, a composite backend treated
// as one classifier (spec §4.2): it blends the signals of its component
// scorers into a single ranked list.
type pipeline struct {
	components []Backend
}

func NewPipeline(components ...Backend) *pipeline {
	if len(components) == 0 {
		components = []Backend{NewLangid(), NewLingua()}
	}
	return &pipeline{components: components}
}

func (b *pipeline) Name() string { return "impresso_langident_pipeline" }

func (b *pipeline) SupportedLanguages() []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range b.components {
		for _, l := range c.SupportedLanguages() {
			if !seen[l] {
				seen[l] = true
				out = append(out, l)
			}
		}
	}
	return out
}

func (b *pipeline) Predict(text string) (Prediction, error) {
	sum := make(map[string]float64)
	for _, c := range b.components {
		pred, err := c.Predict(text)
		if err != nil {
			return Prediction{}, fmt.Errorf("classify: pipeline component %s: %w", c.Name(), err)
		}
		for _, lp := range pred.Ranked {
			sum[lp.Lang] += lp.Prob
		}
	}
	n := float64(len(b.components))
	if n == 0 {
		n = 1
	}
	ranked := make([]LangProb, 0, len(sum))
	for lang, total := range sum {
		ranked = append(ranked, LangProb{Lang: lang, Prob: total / n})
	}
	sortRanked(ranked)
	return Prediction{Available: true, Ranked: ranked}, nil
}

// normalizeCode lower-cases and trims a language code as received from
// provider metadata, which is sometimes inconsistently cased in OCR
// pipelines.
func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

package classify

import (
	"strings"
	"unicode"
)

// languageSignature holds the short, distinctive substrings and
// characters that mark a language in noisy OCR text. This mirrors the
// character/script frequency approach used by the corpus's dedicated
// Azerbaijani/Turkish/Russian/English hybrid detector, generalized to an
// arbitrary signature set per language instead of a fixed four-language
// switch.
type languageSignature struct {
	lang   string
	tokens map[string]float64 // substring -> weight
}

// signatures is a small, hand-curated set of per-language markers. It is
// not a trained model — it stands in for the external fastText/n-gram
// binaries (spec §1) so the pipeline is runnable and deterministic
// without them.
var signatures = []languageSignature{
	{lang: "de", tokens: map[string]float64{
		"der ": 3, "die ": 3, "und ": 3, "nicht": 2, "ein": 1, "ä": 2, "ö": 2, "ü": 2, "ß": 3, "sch": 1,
	}},
	{lang: "fr", tokens: map[string]float64{
		"le ": 3, "la ": 3, "les ": 3, "des ": 2, "est ": 2, "qui": 1, "é": 2, "è": 2, "ç": 2, "oi": 1,
	}},
	{lang: "en", tokens: map[string]float64{
		"the ": 3, "and ": 3, "of ": 2, "to ": 2, "ing": 2, "tion": 2, "th": 1,
	}},
	{lang: "it", tokens: map[string]float64{
		"il ": 3, "di ": 2, "che ": 3, "per ": 2, "non ": 2, "zione": 2, "gli": 1,
	}},
	{lang: "lb", tokens: map[string]float64{
		"de ": 2, "an ": 1, "aner": 1, "gëf": 3, "kann": 1, "sch": 1, "ä": 1, "ass ": 2, "komm": 1, "d'stad": 3, "kleeschen": 3,
	}},
	{lang: "la", tokens: map[string]float64{
		"quid": 3, "est ": 1, "sit ": 2, "dictum": 3, "videtur": 3, "que": 1, "um ": 1,
	}},
	{lang: "es", tokens: map[string]float64{
		"el ": 2, "los ": 2, "que ": 2, "para ": 2, "ñ": 3, "ción": 2,
	}},
	{lang: "pt", tokens: map[string]float64{
		"ão": 3, "que ": 1, "não": 3, "com ": 1, "ç": 1,
	}},
	{lang: "nl", tokens: map[string]float64{
		"de ": 1, "het ": 3, "een ": 2, "niet": 2, "ij": 2,
	}},
}

// score returns a raw, non-normalized score for text against one
// signature: token occurrences weighted by the token's configured
// weight, case-insensitive.
func (s languageSignature) score(lower string) float64 {
	var total float64
	for tok, weight := range s.tokens {
		if tok == "" {
			continue
		}
		total += float64(strings.Count(lower, tok)) * weight
	}
	return total
}

// profileScore ranks the given languages by signature match against
// text, restricted to allowed (the backend's supported set). When no
// signature matches, it returns every allowed language at the same small
// probability; otherwise it returns only the languages with a non-zero
// score. Probabilities are produced
// by normalizing raw scores to sum to at most 1, with any remaining mass
// left implicit (spec §4.2: "remaining mass is implicit").
func profileScore(text string, allowed []string) []LangProb {
	lower := strings.ToLower(text)

	allowedSet := make(map[string]bool, len(allowed))
	for _, l := range allowed {
		allowedSet[l] = true
	}

	var letters int
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters == 0 {
		letters = 1
	}

	raw := make(map[string]float64, len(allowed))
	var total float64
	for _, sig := range signatures {
		if !allowedSet[sig.lang] {
			continue
		}
		sc := sig.score(lower)
		raw[sig.lang] = sc
		total += sc
	}

	out := make([]LangProb, 0, len(allowed))
	if total <= 0 {
		// No signal: spread a small uniform probability so the top-1
		// still resolves deterministically (lexicographic tie-break).
		base := 1.0 / float64(len(allowed)+1)
		for _, l := range allowed {
			out = append(out, LangProb{Lang: l, Prob: base})
		}
		sortRanked(out)
		return out
	}

	// Normalize so the strongest signal approaches but never reaches 1,
	// leaving room for implicit remaining mass as required by spec §4.2.
	scale := 0.92 / total
	for _, l := range allowed {
		p := raw[l] * scale
		if p > 0 {
			out = append(out, LangProb{Lang: l, Prob: p})
		}
	}
	if len(out) == 0 {
		base := 1.0 / float64(len(allowed)+1)
		for _, l := range allowed {
			out = append(out, LangProb{Lang: l, Prob: base})
		}
	}
	sortRanked(out)
	return out
}

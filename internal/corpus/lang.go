package corpus

import (
	"strings"

	"golang.org/x/text/language"
)

// Undetermined is the ISO 639-2 code emitted when no rule resolves a
// language (spec §4.5, §8).
const Undetermined = "und"

// CanonicalLang lowercases and validates a provider- or classifier-
// supplied language code against BCP-47 parsing (golang.org/x/text),
// rather than hand-rolled string comparison. An unparsable or empty
// code returns ("", false) so callers can treat it as absent.
func CanonicalLang(code string) (string, bool) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "", false
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return "", false
	}
	base, conf := tag.Base()
	if conf == language.No {
		return "", false
	}
	return base.String(), true
}

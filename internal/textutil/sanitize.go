package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// umlautReplacer rewrites the German umlauts and eszett before the generic
// diacritics fold, which would otherwise drop the trailing e convention.
var umlautReplacer = strings.NewReplacer(
	"ä", "ae", "Ä", "ae",
	"ö", "oe", "Ö", "oe",
	"ü", "ue", "Ü", "ue",
	"ß", "ss",
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	unsafeRe     = regexp.MustCompile(`[^a-z0-9-_]`)
)

// Slug normalizes free text for use inside a canonical filename. The result
// is lowercase ASCII: umlauts are transliterated, remaining diacritics are
// folded away, whitespace runs become a single dash, and anything else
// outside [a-z0-9-_] is removed.
func Slug(text string) string {
	text = umlautReplacer.Replace(strings.TrimSpace(text))
	folded, _, err := transform.String(foldTransformer(), text)
	if err == nil {
		text = folded
	}
	text = strings.ToLower(text)
	text = whitespaceRe.ReplaceAllString(text, "-")
	return unsafeRe.ReplaceAllString(text, "")
}

func foldTransformer() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

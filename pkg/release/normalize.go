package release

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// sequelNumeral matches II-IX after a space. A leading numeral ("VII Days"),
// a lone I ("I Robot") and a lone X ("American History X") are left alone.
var sequelNumeral = regexp.MustCompile(`(?i) (ii|iii|iv|v|vi|vii|viii|ix)\b`)

var numeralValue = map[string]string{
	"ii": "2", "iii": "3", "iv": "4", "v": "5",
	"vi": "6", "vii": "7", "viii": "8", "ix": "9",
}

var titlePunctuation = strings.NewReplacer(
	"&", " and ",
	"-", " ",
	".", " ",
	"'", "",
)

var leadingArticles = []string{"the ", "a ", "an "}

// CleanTitle reduces a title to lower-case words for comparison: sequel
// numerals become digits, accents and punctuation go, and each colon
// separated part loses its leading article.
func CleanTitle(title string) string {
	s := sequelNumeral.ReplaceAllStringFunc(strings.ToLower(title), func(m string) string {
		return " " + numeralValue[strings.ToLower(m[1:])]
	})
	s = titlePunctuation.Replace(foldAccents(s))

	parts := strings.Split(s, ":")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		for _, article := range leadingArticles {
			if rest, ok := strings.CutPrefix(part, article); ok {
				part = rest
				break
			}
		}
		parts[i] = part
	}

	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, strings.Join(parts, " "))
	return strings.Join(strings.Fields(s), " ")
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// DotName lower-cases a release title and joins its words with dots, so
// "Movie 2020 1080p" and "Movie.2020.1080p" compare equal.
func DotName(title string) string {
	words := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return r == ' ' || r == '.' || r == '_' || unicode.IsSpace(r)
	})
	return strings.Join(words, ".")
}

// NormalizeSearchQuery turns & into "and" and collapses whitespace. Case
// and other punctuation are kept for the indexer.
func NormalizeSearchQuery(query string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(query, "&", "and")), " ")
}

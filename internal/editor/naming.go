package editor

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ironsheep/easy-token-mcp/internal/entity"
	"github.com/ironsheep/easy-token-mcp/internal/settings"
)

var lower = cases.Lower(language.Und)

// stripMarks removes combining accents after canonical decomposition, so
// "Gobelin Éclaireur" becomes "Gobelin Eclaireur".
func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// SnakeCase converts a display name to a file-name-safe word list joined
// by underscores. Word boundaries are spaces and punctuation, lower-to-upper
// case changes and letter/digit changes.
func SnakeCase(s string) string {
	rs := []rune(stripMarks(s))
	var words []string
	var cur []rune

	flush := func() {
		if len(cur) > 0 {
			words = append(words, lower.String(string(cur)))
			cur = cur[:0]
		}
	}

	for i, r := range rs {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if len(cur) > 0 {
			prev := cur[len(cur)-1]
			switch {
			case unicode.IsDigit(r) != unicode.IsDigit(prev):
				flush()
			case unicode.IsUpper(r) && unicode.IsLower(prev):
				flush()
			case unicode.IsUpper(r) && unicode.IsUpper(prev) && i+1 < len(rs) && unicode.IsLower(rs[i+1]):
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()

	return strings.Join(words, "_")
}

// FileName builds the upload file name for a target:
// <name>.<cat>.<ext>, or <token name>.<token id>.<cat>.<ext> for an
// unlinked token. A name with no usable characters falls back to the id.
func FileName(t entity.Target, cat settings.Category, ext string) string {
	var base string
	if t.IsToken() {
		name := SnakeCase(t.TokenName)
		if name == "" {
			name = "token"
		}
		base = name + "." + t.Token.TokenID
	} else {
		base = SnakeCase(t.Actor.Name)
		if base == "" {
			base = t.Actor.ID
		}
	}
	return fmt.Sprintf("%s.%s.%s", base, cat, ext)
}

// CacheBust appends the time in Unix milliseconds as a query so hosts
// reload an image saved under an unchanged path.
func CacheBust(path string, now time.Time) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return fmt.Sprintf("%s?%d", path, now.UnixMilli())
}

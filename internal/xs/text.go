package xs

import (
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// DefaultCharacterLimit is the platform's post length limit.
const DefaultCharacterLimit = 280

// CharCount counts characters the way the platform does: Unicode code
// points after NFC normalisation.
func CharCount(s string) int {
	return utf8.RuneCountInString(norm.NFC.String(s))
}

func checkLength(content string, limit int) error {
	if n := CharCount(content); n > limit {
		return kindError(ErrContentTooLong, "%d characters exceeds the limit of %d", n, limit)
	}
	return nil
}

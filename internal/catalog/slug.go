package catalog

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var accentStripper = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify lower-cases, folds accents and joins word runs with hyphens.
func Slugify(value string) string {
	folded, _, err := transform.String(accentStripper, value)
	if err != nil {
		folded = value
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		default:
			pendingDash = true
		}
	}
	return b.String()
}

type slugChecker func(ctx context.Context, slug string) (bool, error)

// uniqueSlug appends -1, -2, ... until exists reports the slug as free.
func uniqueSlug(ctx context.Context, name string, exists slugChecker) (string, error) {
	base := Slugify(name)
	if base == "" {
		return "", fmt.Errorf("name %q produces an empty slug", name)
	}
	candidate := base
	for counter := 1; ; counter++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, counter)
	}
}

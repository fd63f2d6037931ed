package chat

import "strings"

const (
	DefaultTitle  = "New chat"
	titleMaxRunes = 28
	titleEllipsis = "…"
)

// DeriveTitle collapses whitespace and truncates to 28 runes plus an
// ellipsis. Applying it twice gives the same result.
func DeriveTitle(text string) string {
	t := strings.Join(strings.Fields(text), " ")
	if t == "" {
		return DefaultTitle
	}
	r := []rune(t)
	if len(r) > titleMaxRunes {
		return string(r[:titleMaxRunes]) + titleEllipsis
	}
	return t
}

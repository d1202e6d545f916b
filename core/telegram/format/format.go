// Package format renders values for Telegram MarkdownV2 messages.
package format

import (
	"strconv"
	"strings"
)

// mdV2 escapes every character MarkdownV2 treats as markup.
var mdV2 = func() *strings.Replacer {
	const specials = "\\_*[]()~`>#+-=|{}.!"
	pairs := make([]string, 0, 2*len(specials))
	for _, r := range specials {
		pairs = append(pairs, string(r), "\\"+string(r))
	}
	return strings.NewReplacer(pairs...)
}()

// V2 escapes text for MarkdownV2.
func V2(text string) string {
	return mdV2.Replace(text)
}

// Number renders v without trailing zeros.
func Number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// StrOr returns *s, or fallback when s is nil.
func StrOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

// NumberOr renders *f with Number, or returns fallback when f is nil.
func NumberOr(f *float64, fallback string) string {
	if f == nil {
		return fallback
	}
	return Number(*f)
}

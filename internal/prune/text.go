package prune

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

const DefaultMarker = "[…]"

// Len counts s the way Telegram measures message length: UTF-16 code units.
func Len(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

// Exceeds reports whether s is longer than maxLen UTF-16 units.
func Exceeds(s string, maxLen int) bool {
	return Len(s) > maxLen
}

// Text shortens s to at most maxLen UTF-16 units, keeping the head and the
// tail around marker. Two thirds of the budget go to the head.
func Text(s string, maxLen int, marker string) string {
	if maxLen <= 0 {
		return ""
	}
	if !Exceeds(s, maxLen) {
		return s
	}
	if marker == "" {
		marker = DefaultMarker
	}
	sep := "\n" + marker + "\n"
	budget := maxLen - Len(sep)
	if budget <= 0 {
		return prefix(s, maxLen)
	}
	headLen := budget * 2 / 3
	head := strings.TrimRight(prefix(s, headLen), " \n")
	tail := strings.TrimLeft(suffix(s, budget-Len(head)), " \n")
	return head + sep + tail
}

// prefix returns the longest rune-aligned prefix of s within maxLen units.
func prefix(s string, maxLen int) string {
	n := 0
	for i, r := range s {
		l := utf16.RuneLen(r)
		if l < 0 {
			l = 1
		}
		if n+l > maxLen {
			return s[:i]
		}
		n += l
	}
	return s
}

// suffix returns the longest rune-aligned suffix of s within maxLen units.
func suffix(s string, maxLen int) string {
	n := 0
	end := len(s)
	for end > 0 {
		r, size := utf8.DecodeLastRuneInString(s[:end])
		l := utf16.RuneLen(r)
		if l < 0 {
			l = 1
		}
		if n+l > maxLen {
			break
		}
		n += l
		end -= size
	}
	return s[end:]
}

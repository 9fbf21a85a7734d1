package message

import "strings"

// ValidSubjectOrType reports whether s satisfies the spec §3 invariant for
// subject/type strings: non-empty, printable, and free of backtick,
// single-quote, or double-quote (those characters collide with the
// escaped-regular-expression matcher compiled from these patterns).
func ValidSubjectOrType(s string) bool {
	if s == "" {
		return false
	}
	if strings.ContainsAny(s, "`'\"") {
		return false
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}

package messaging

import (
	"strings"
)

// MatchSubject reports whether a concrete subject matches a subscription
// pattern. Subjects are dot-separated tokens; in the pattern, "*" matches
// exactly one token and ">" matches one or more trailing tokens. A bare ">"
// therefore matches every subject.
func MatchSubject(pattern, subject string) bool {
	if pattern == "" || subject == "" {
		return false
	}
	if pattern == ">" {
		return true
	}

	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")

	for i, token := range pt {
		switch token {
		case ">":
			// Tail wildcard must consume at least one token.
			return i < len(st)
		case "*":
			if i >= len(st) {
				return false
			}
		default:
			if i >= len(st) || st[i] != token {
				return false
			}
		}
	}

	return len(pt) == len(st)
}

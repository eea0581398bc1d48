package db

import "strings"

// sanitizeUTF8 drops invalid sequences and NUL bytes postgres rejects in text
func sanitizeUTF8(s string) string {
	s = strings.ToValidUTF8(s, "")
	return strings.ReplaceAll(s, "\x00", "")
}

package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

const (
	hashSuffixLen = 12
	// maxTableLen keeps names below the 63 byte postgres identifier limit
	maxTableLen = 60
)

// NormalizeFilename strips directories and the extension and maps the rest
// onto a lowercase identifier safe for every backend. When the mapping loses
// characters, or the name is too long, a digest of the stem is appended so
// distinct filenames keep distinct tables.
func NormalizeFilename(filename string) string {
	return normalizeWithin(filename, maxTableLen)
}

// ContentHashName appends a short content digest to the normalized filename
func ContentHashName(filename string, content []byte) string {
	return contentHashBase(filename) + "_" + shortHash(string(content))
}

// contentHashBase is the filename part of a content hash table name
func contentHashBase(filename string) string {
	return normalizeWithin(filename, maxTableLen-1-hashSuffixLen)
}

func normalizeWithin(filename string, limit int) string {
	stem := lowerStem(filename)
	name := sanitize(stem)
	if name == stem && len(name) <= limit {
		return name
	}

	keep := limit - 1 - hashSuffixLen
	if len(name) > keep {
		name = strings.TrimRight(name[:keep], "_")
	}
	return name + "_" + shortHash(stem)
}

func lowerStem(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ToLower(strings.TrimSpace(base))
}

func sanitize(stem string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range stem {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			if r == '_' && (lastUnderscore || b.Len() == 0) {
				continue
			}
			b.WriteRune(r)
			lastUnderscore = r == '_'
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	name := strings.TrimRight(b.String(), "_")
	if name == "" {
		name = "document"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "doc_" + name
	}
	return name
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:hashSuffixLen]
}

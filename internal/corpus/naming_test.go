package corpus

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"paper.pdf", "paper"},
		{"Paper.PDF", "paper"},
		{"/uploads/phage_study.pdf", "phage_study"},
		{"/uploads/Phage Therapy (2021).PDF", "phage_therapy_2021_" + shortHash("phage therapy (2021)")},
		{`C:\docs\report.v2.docx`, "report_v2_" + shortHash("report.v2")},
		{"2021-review.pdf", "doc_2021_review_" + shortHash("2021-review")},
		{"Überblick.pdf", "berblick_" + shortHash("überblick")},
		{".pdf", "document_" + shortHash("")},
		{"noext", "noext"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeFilename(tt.in))
		})
	}
}

func TestNormalizeFilenameKeepsDistinctNamesApart(t *testing.T) {
	tests := []struct {
		a, b string
	}{
		{"特許出願.pdf", "논문.pdf"},
		{"phage-1.pdf", "Phage 1.docx"},
		{"phage-1.pdf", "phage_1.pdf"},
		{"résumé.pdf", "resume.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.a+" vs "+tt.b, func(t *testing.T) {
			a, b := NormalizeFilename(tt.a), NormalizeFilename(tt.b)
			assert.NotEqual(t, a, b)
			assert.Equal(t, a, NormalizeFilename(tt.a))
		})
	}

	// non-latin names still start from the readable fallback
	assert.True(t, strings.HasPrefix(NormalizeFilename("特許出願.pdf"), "document_"))
}

func TestNormalizeFilenameCapsLength(t *testing.T) {
	long := strings.Repeat("bacteriophage_cocktail_", 5)[:100] + ".pdf"
	other := strings.Repeat("bacteriophage_cocktail_", 5)[:99] + "x.pdf"

	name := NormalizeFilename(long)
	assert.LessOrEqual(t, len(name), maxTableLen)
	assert.Equal(t, name, NormalizeFilename(long))
	assert.NotEqual(t, name, NormalizeFilename(other))
	assert.True(t, strings.HasPrefix(name, "bacteriophage_cocktail_"))
	assert.Equal(t, sanitize(name), name)

	exact := strings.Repeat("a", maxTableLen) + ".pdf"
	assert.Equal(t, strings.Repeat("a", maxTableLen), NormalizeFilename(exact))
	assert.Len(t, NormalizeFilename("a"+exact), maxTableLen)
}

func TestContentHashName(t *testing.T) {
	a := ContentHashName("paper.pdf", []byte("one"))
	b := ContentHashName("paper.pdf", []byte("two"))
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, ContentHashName("paper.pdf", []byte("one")))
	assert.True(t, isHashedName(a, "paper"))
	assert.False(t, isHashedName("paper_results", "paper"))
	assert.False(t, isHashedName("paper", "paper"))
}

func TestContentHashNameCapsLength(t *testing.T) {
	filename := strings.Repeat("x", 100) + ".pdf"
	name := ContentHashName(filename, []byte("body"))
	require.LessOrEqual(t, len(name), maxTableLen)
	assert.True(t, isHashedName(name, contentHashBase(filename)))
	assert.NotEqual(t, name, ContentHashName(strings.Repeat("x", 101)+".pdf", []byte("body")))
}

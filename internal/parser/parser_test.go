package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	"github.com/h20-studio-tech/aipatent/internal/embedding"
	"github.com/h20-studio-tech/aipatent/internal/models"
)

const sampleText = "Introduction\n\nBiofilms are structured communities of bacteria embedded in a matrix.\n\n\fResults\n\nThe treated cultures showed a marked reduction in biofilm mass."

type typed struct {
	Type string
	Text string
	Page int
}

func summarize(elements []models.Element) []typed {
	out := make([]typed, len(elements))
	for i, el := range elements {
		out[i] = typed{Type: el.Type, Text: el.Text, Page: el.Metadata.PageNumber}
	}
	return out
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestParseText(t *testing.T) {
	got := summarize(parseText([]byte(sampleText)))
	assert.Equal(t, []typed{
		{models.ElementTitle, "Introduction", 1},
		{models.ElementNarrativeText, "Biofilms are structured communities of bacteria embedded in a matrix.", 1},
		{models.ElementTitle, "Results", 2},
		{models.ElementNarrativeText, "The treated cultures showed a marked reduction in biofilm mass.", 2},
	}, got)
}

func TestPartitionAssignsIdentity(t *testing.T) {
	p := New(nil)
	opts := models.PartitionOptions{ChunkingStrategy: models.ChunkingBasic, Languages: []string{"eng"}}

	elements, err := p.Partition(context.Background(), []byte(sampleText), "/tmp/uploads/paper.txt", opts)
	require.NoError(t, err)
	require.Len(t, elements, 4)

	seen := map[string]bool{}
	for _, el := range elements {
		assert.Len(t, el.ElementID, 32)
		assert.False(t, seen[el.ElementID])
		seen[el.ElementID] = true
		assert.Equal(t, "paper.txt", el.Metadata.Filename)
		assert.Equal(t, []string{"eng"}, el.Metadata.Languages)
	}

	again, err := p.Partition(context.Background(), []byte(sampleText), "/tmp/uploads/paper.txt", opts)
	require.NoError(t, err)
	assert.Equal(t, elements, again)
}

func TestPartitionCombineUnderNChars(t *testing.T) {
	p := New(nil)
	opts := models.PartitionOptions{ChunkingStrategy: models.ChunkingBasic, CombineUnderNChars: 80}

	elements, err := p.Partition(context.Background(), []byte(sampleText), "paper.txt", opts)
	require.NoError(t, err)
	got := summarize(elements)
	require.Len(t, got, 2)
	assert.Equal(t, "Introduction\n\nBiofilms are structured communities of bacteria embedded in a matrix.", got[0].Text)
	assert.Equal(t, 1, got[0].Page)
	assert.Equal(t, "Results\n\nThe treated cultures showed a marked reduction in biofilm mass.", got[1].Text)
	assert.Equal(t, 2, got[1].Page)
}

func TestCombineRespectsPagesByPage(t *testing.T) {
	p := New(nil)
	content := []byte("Tiny.\fOther.")

	basic, err := p.Partition(context.Background(), content, "a.txt", models.PartitionOptions{
		ChunkingStrategy: models.ChunkingBasic, CombineUnderNChars: 80,
	})
	require.NoError(t, err)
	assert.Len(t, basic, 1)

	byPage, err := p.Partition(context.Background(), content, "a.txt", models.PartitionOptions{
		ChunkingStrategy: models.ChunkingByPage, CombineUnderNChars: 80,
	})
	require.NoError(t, err)
	require.Len(t, byPage, 2)
	assert.Equal(t, 1, byPage[0].Metadata.PageNumber)
	assert.Equal(t, 2, byPage[1].Metadata.PageNumber)
}

func TestChunkByPageSplitsLongPages(t *testing.T) {
	para := "The bacteriophage lysed the host cells within twenty minutes of infection."
	var content string
	for i := 0; i < 10; i++ {
		content += para + "\n\n"
	}

	elements, err := New(nil).Partition(context.Background(), []byte(content), "long.txt", models.PartitionOptions{
		ChunkingStrategy: models.ChunkingByPage, MaxCharacters: 200,
	})
	require.NoError(t, err)
	assert.Greater(t, len(elements), 1)
	for _, el := range elements {
		assert.LessOrEqual(t, len(el.Text), 200)
		assert.Equal(t, models.ElementComposite, el.Type)
	}
}

func TestChunkBySimilarity(t *testing.T) {
	content := []byte("bacterial biofilm formation in cultures.\n\nbiofilm formation by bacterial cultures.\n\nquarterly revenue guidance for investors.")
	opts := models.PartitionOptions{ChunkingStrategy: models.ChunkingBySimilarity, SimilarityThreshold: 0.5}

	_, err := New(nil).Partition(context.Background(), content, "a.txt", opts)
	assert.ErrorIs(t, err, ErrNoEmbedder)

	elements, err := New(embedding.NewHashEmbedder(256)).Partition(context.Background(), content, "a.txt", opts)
	require.NoError(t, err)
	require.Len(t, elements, 2)
	assert.Equal(t, "bacterial biofilm formation in cultures.\n\nbiofilm formation by bacterial cultures.", elements[0].Text)
	assert.Equal(t, "quarterly revenue guidance for investors.", elements[1].Text)
}

func TestParseMarkdown(t *testing.T) {
	src := "# Field of the Invention\n\nThe invention relates to **bacteriophage** therapy.\n\n- first item\n- second item\n\n| Strain | Titer |\n|---|---|\n| A | 10 |\n\n```\ncode\n```\n"

	elements, err := parseMarkdown([]byte(src))
	require.NoError(t, err)
	assert.Equal(t, []typed{
		{models.ElementTitle, "Field of the Invention", 1},
		{models.ElementNarrativeText, "The invention relates to bacteriophage therapy.", 1},
		{models.ElementListItem, "first item", 1},
		{models.ElementListItem, "second item", 1},
		{models.ElementTable, "Strain | Titer\nA | 10", 1},
		{models.ElementCodeSnippet, "code", 1},
	}, summarize(elements))
}

func TestParseHTML(t *testing.T) {
	src := `<html><head><script>var x;</script></head><body>
<h1>Claims</h1>
<p>A method of  treating
 infection.</p>
<ul><li><p>nested para</p></li><li>plain</li></ul>
<table><tr><th>a</th><td>b</td></tr></table>
</body></html>`

	elements, err := parseHTML([]byte(src))
	require.NoError(t, err)
	assert.Equal(t, []typed{
		{models.ElementTitle, "Claims", 1},
		{models.ElementNarrativeText, "A method of treating infection.", 1},
		{models.ElementListItem, "nested para", 1},
		{models.ElementListItem, "plain", 1},
		{models.ElementTable, "a | b", 1},
	}, summarize(elements))
}

func TestParseDOCX(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?><w:document><w:body>` +
		`<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Background</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t xml:space="preserve">Phage therapy </w:t></w:r><w:r><w:t>works &amp; scales.</w:t></w:r><w:r><w:br w:type="page"/></w:r></w:p>` +
		`<w:p><w:r><w:t>Second page text.</w:t></w:r></w:p>` +
		`</w:body></w:document>`
	content := zipBytes(t, map[string]string{
		"word/document.xml":            doc,
		"word/_rels/document.xml.rels": `<Relationships/>`,
	})

	elements, err := parseDOCX(content)
	require.NoError(t, err)
	assert.Equal(t, []typed{
		{models.ElementTitle, "Background", 1},
		{models.ElementNarrativeText, "Phage therapy works & scales.", 1},
		{models.ElementNarrativeText, "Second page text.", 2},
	}, summarize(elements))
}

func TestParsePPTX(t *testing.T) {
	slide := func(title, body string) string {
		return `<p:sld><a:p><a:r><a:t>` + title + `</a:t></a:r></a:p><a:p><a:r><a:t>` + body + `</a:t></a:r></a:p></p:sld>`
	}
	content := zipBytes(t, map[string]string{
		"ppt/slides/slide2.xml":            slide("Results", "Titer dropped."),
		"ppt/slides/slide1.xml":            slide("Overview", "Phage cocktail."),
		"ppt/slides/_rels/slide1.xml.rels": `<Relationships/>`,
	})

	elements, err := parsePPTX(content)
	require.NoError(t, err)
	assert.Equal(t, []typed{
		{models.ElementTitle, "Overview", 1},
		{models.ElementNarrativeText, "Phage cocktail.", 1},
		{models.ElementTitle, "Results", 2},
		{models.ElementNarrativeText, "Titer dropped.", 2},
	}, summarize(elements))
}

func TestParseXLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Assays")
	require.NoError(t, err)
	for _, values := range [][]string{{"strain", "titer"}, {"PA01", "1e9"}} {
		row := sheet.AddRow()
		for _, v := range values {
			row.AddCell().SetString(v)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	elements, err := parseXLSX(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []typed{
		{models.ElementTitle, "Sheet: Assays", 1},
		{models.ElementTable, "strain\ttiter\nPA01\t1e9", 1},
	}, summarize(elements))
}

func TestParseExcelize(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "dose"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "response"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	elements, err := parseExcelize(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []typed{
		{models.ElementTitle, "Sheet: Sheet1", 1},
		{models.ElementTable, "dose\tresponse", 1},
	}, summarize(elements))
}

func TestPartitionErrors(t *testing.T) {
	p := New(nil)
	ctx := context.Background()

	_, err := p.Partition(ctx, nil, "a.txt", models.PartitionOptions{})
	assert.ErrorIs(t, err, ErrNoText)

	_, err = p.Partition(ctx, []byte("data"), "a.exe", models.PartitionOptions{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = p.Partition(ctx, []byte(" \n\n "), "a.txt", models.PartitionOptions{})
	assert.ErrorIs(t, err, ErrNoText)

	_, err = p.Partition(ctx, []byte("not a pdf"), "a.pdf", models.PartitionOptions{})
	assert.Error(t, err)

	_, err = p.Partition(ctx, []byte("x"), "a.txt", models.PartitionOptions{ChunkingStrategy: "by_title"})
	assert.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}

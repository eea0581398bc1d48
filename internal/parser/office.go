package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	"github.com/h20-studio-tech/aipatent/internal/models"
)

var (
	docxParagraphRe = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	docxTextRe      = regexp.MustCompile(`(?s)<w:t(?: [^>]*)?>(.*?)</w:t>`)
	docxHeadingRe   = regexp.MustCompile(`<w:pStyle w:val="(?:Heading|Title)[^"]*"`)
	docxPageBreakRe = regexp.MustCompile(`<w:br w:type="page"\s*/>|<w:lastRenderedPageBreak\s*/>`)

	slideNameRe      = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	slideParagraphRe = regexp.MustCompile(`(?s)<a:p(?: [^>]*)?>.*?</a:p>`)
	slideTextRe      = regexp.MustCompile(`(?s)<a:t>(.*?)</a:t>`)
)

func parseDOCX(content []byte) ([]models.Element, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open docx: %w", err)
	}
	defer r.Close()

	page := defaultPageNumber
	var elements []models.Element
	for _, para := range docxParagraphRe.FindAllString(r.Editable().GetContent(), -1) {
		text := joinMatches(docxTextRe, para, "")
		if text != "" {
			typ := models.ElementNarrativeText
			if docxHeadingRe.MatchString(para) {
				typ = models.ElementTitle
			}
			elements = append(elements, newElement(typ, text, page))
		}
		// page breaks close the paragraph they appear in
		page += len(docxPageBreakRe.FindAllStringIndex(para, -1))
	}
	return elements, nil
}

func parsePPTX(content []byte) ([]models.Element, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pptx: %w", err)
	}

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		m := slideNameRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: num, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var elements []models.Element
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open slide %d: %w", s.num, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read slide %d: %w", s.num, err)
		}
		for i, para := range slideParagraphRe.FindAllString(string(data), -1) {
			text := joinMatches(slideTextRe, para, "")
			if text == "" {
				continue
			}
			typ := models.ElementNarrativeText
			if i == 0 {
				typ = models.ElementTitle
			}
			elements = append(elements, newElement(typ, text, s.num))
		}
	}
	return elements, nil
}

func parseXLSX(content []byte) ([]models.Element, error) {
	f, err := xlsx.OpenBinary(content)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}

	var elements []models.Element
	for sheetNum, sheet := range f.Sheets {
		var rows [][]string
		for _, row := range sheet.Rows {
			var cells []string
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			rows = append(rows, cells)
		}
		elements = append(elements, sheetElements(sheet.Name, rows, sheetNum+1)...)
	}
	return elements, nil
}

func parseExcelize(content []byte) ([]models.Element, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var elements []models.Element
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
		}
		elements = append(elements, sheetElements(sheetName, rows, sheetNum+1)...)
	}
	return elements, nil
}

// sheetElements renders one sheet as a title plus a table element
func sheetElements(name string, rows [][]string, page int) []models.Element {
	var text strings.Builder
	for _, row := range rows {
		line := strings.TrimSpace(strings.Join(row, "\t"))
		if line == "" {
			continue
		}
		text.WriteString(line)
		text.WriteString("\n")
	}
	if text.Len() == 0 {
		return nil
	}
	return []models.Element{
		newElement(models.ElementTitle, "Sheet: "+name, page),
		newElement(models.ElementTable, strings.TrimSpace(text.String()), page),
	}
}

func joinMatches(re *regexp.Regexp, s, sep string) string {
	var parts []string
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		parts = append(parts, html.UnescapeString(m[1]))
	}
	return strings.TrimSpace(strings.Join(parts, sep))
}

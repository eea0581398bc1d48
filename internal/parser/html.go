package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/h20-studio-tech/aipatent/internal/models"
)

const htmlBlocks = "h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, table"

func parseHTML(content []byte) ([]models.Element, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	doc.Find("script, style, noscript, nav, footer").Remove()

	var elements []models.Element
	doc.Find(htmlBlocks).Each(func(_ int, s *goquery.Selection) {
		// nested blocks are covered by their outermost ancestor
		if s.ParentsFiltered(htmlBlocks).Length() > 0 {
			return
		}
		typ := models.ElementNarrativeText
		var text string
		switch goquery.NodeName(s) {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			typ = models.ElementTitle
		case "li":
			typ = models.ElementListItem
		case "pre":
			typ = models.ElementCodeSnippet
			text = strings.TrimSpace(s.Text())
		case "table":
			typ = models.ElementTable
			text = htmlTable(s)
		}
		if text == "" {
			text = collapse(s.Text())
		}
		if text != "" {
			elements = append(elements, newElement(typ, text, defaultPageNumber))
		}
	})

	if len(elements) == 0 {
		if text := collapse(doc.Find("body").Text()); text != "" {
			elements = append(elements, newElement(models.ElementNarrativeText, text, defaultPageNumber))
		}
	}
	return elements, nil
}

func htmlTable(table *goquery.Selection) string {
	var rows []string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, collapse(td.Text()))
		})
		if len(cells) > 0 {
			rows = append(rows, strings.Join(cells, " | "))
		}
	})
	return strings.Join(rows, "\n")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

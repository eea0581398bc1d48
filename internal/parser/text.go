package parser

import (
	"strings"

	"github.com/h20-studio-tech/aipatent/internal/models"
)

// parseText treats form feeds as page breaks
func parseText(content []byte) []models.Element {
	var elements []models.Element
	for i, page := range strings.Split(string(content), "\f") {
		for _, para := range paragraphs(page) {
			elements = append(elements, newElement(classify(para), para, i+1))
		}
	}
	return elements
}

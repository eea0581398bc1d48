package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/h20-studio-tech/aipatent/internal/models"
)

func parsePDF(ctx context.Context, content []byte, opts models.PartitionOptions) ([]models.Element, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	numPages := reader.NumPage()
	if numPages == 0 {
		return nil, ErrNoText
	}

	limit := 1
	if opts.SplitPDFPage && opts.SplitPDFConcurrency > 0 {
		limit = opts.SplitPDFConcurrency
	}

	pages := make([][]models.Element, numPages)
	pageErrs := make([]error, numPages)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 1; i <= numPages; i++ {
		pageNum := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text, err := pageText(content, pageNum)
			if err != nil {
				if opts.SplitPDFAllowFailed {
					pageErrs[pageNum-1] = err
					return nil
				}
				return fmt.Errorf("page %d: %w", pageNum, err)
			}
			for _, para := range paragraphs(text) {
				pages[pageNum-1] = append(pages[pageNum-1], newElement(classify(para), para, pageNum))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var elements []models.Element
	failed := 0
	for i, page := range pages {
		if pageErrs[i] != nil {
			failed++
			log.Warn().Err(pageErrs[i]).Int("page", i+1).Msg("skipping failed pdf page")
			continue
		}
		elements = append(elements, page...)
	}
	if failed == numPages {
		return nil, fmt.Errorf("all %d pdf pages failed: %w", numPages, pageErrs[0])
	}
	return elements, nil
}

// pageText opens its own reader so pages can be read concurrently
func pageText(content []byte, pageNum int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}
	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return "", nil
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

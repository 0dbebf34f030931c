// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/paper-reader/internal/logger"
)

var (
	// ErrExtraction covers corrupt or unreadable documents.
	ErrExtraction = errors.New("pdf extraction failed")
	// ErrPageOutOfRange is returned by RenderPage for a page outside 1..PageCount.
	ErrPageOutOfRange = fmt.Errorf("%w: page out of range", ErrExtraction)
)

// Page is one extracted page. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// Processor extracts per-page text (go-fitz / MuPDF) and cuts single pages
// out of a document (pdfcpu).
type Processor struct {
	conf *model.Configuration
}

// NewProcessor creates a new PDF processor
func NewProcessor() *Processor {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Processor{conf: conf}
}

// ExtractPages returns every page of the document in order. A page whose text
// cannot be extracted yields an empty string instead of failing the document.
func (p *Processor) ExtractPages(data []byte) ([]Page, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open PDF: %v", ErrExtraction, err)
	}
	defer doc.Close()

	numPages := doc.NumPage()
	pages := make([]Page, 0, numPages)
	for i := 0; i < numPages; i++ {
		raw, err := doc.Text(i)
		if err != nil {
			logger.Warnf("[PDF] failed to extract text from page %d: %v", i+1, err)
			raw = ""
		}
		pages = append(pages, Page{Number: i + 1, Text: CleanText(raw)})
	}
	return pages, nil
}

// PageCount returns the number of pages in the document.
func (p *Processor) PageCount(data []byte) (int, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to open PDF: %v", ErrExtraction, err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

// RenderPage returns a standalone PDF holding only the given 1-based page.
func (p *Processor) RenderPage(data []byte, page int) ([]byte, error) {
	total, err := p.PageCount(data)
	if err != nil {
		return nil, err
	}
	if page < 1 || page > total {
		return nil, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, page, total)
	}

	var out bytes.Buffer
	if err := api.Trim(bytes.NewReader(data), &out, []string{strconv.Itoa(page)}, p.conf); err != nil {
		return nil, fmt.Errorf("%w: failed to render page %d: %v", ErrExtraction, page, err)
	}
	return out.Bytes(), nil
}

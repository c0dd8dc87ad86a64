// Package extract parses uploaded files into ordered page or slide texts.
//
// Supported formats:
//   - .pdf: one string per page (github.com/ledongthuc/pdf)
//   - .docx: archive/zip -> word/document.xml, paragraphs grouped into
//     synthetic pages
//   - .pptx: archive/zip -> ppt/slides/slideN.xml, one string per slide
package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/liliang-cn/studydesk/internal/domain"
)

// ParagraphsPerPage is the synthetic page size used for DOCX files.
const ParagraphsPerPage = 10

// Pages extracts the ordered page/slide texts from the file at path.
// Empty pages are skipped; an empty result is an extraction failure.
func Pages(path string) ([]string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")

	var pages []string
	var err error
	switch ext {
	case domain.FileTypePDF:
		pages, err = pdfPages(path)
	case domain.FileTypeDOCX:
		pages, err = docxPages(path)
	case domain.FileTypePPTX:
		pages, err = pptxPages(path)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", domain.ErrBadInput, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
	}

	out := pages[:0]
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no text extracted from %s", domain.ErrExtractionFailed, filepath.Base(path))
	}
	return out, nil
}

// Supported reports whether the filename's extension is an accepted type.
func Supported(filename string) bool {
	switch strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".") {
	case domain.FileTypePDF, domain.FileTypeDOCX, domain.FileTypePPTX:
		return true
	}
	return false
}

// -----------------------------------------------------------------------
// PDF Extractor Service - Extract text content from PDF documents
// Uses pdfcpu for Go-native PDF processing
// -----------------------------------------------------------------------

package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
)

// Extractor implements the PDFExtractor interface using pdfcpu
type Extractor struct {
	logger  arbor.ILogger
	tempDir string
}

// Compile-time interface assertion
var _ interfaces.PDFExtractor = (*Extractor)(nil)

// pdfcpu writes one file per page named <input>_Content_page_N.txt
var pageFileRe = regexp.MustCompile(`Content_page_(\d+)`)

// NewExtractor creates a new PDF extractor service
func NewExtractor(logger arbor.ILogger) *Extractor {
	tempDir := filepath.Join(os.TempDir(), "respondeo-pdf")
	os.MkdirAll(tempDir, 0755)

	return &Extractor{
		logger:  logger,
		tempDir: tempDir,
	}
}

// ExtractText extracts all text from the PDF with [PAGE n] markers
// separating pages, so downstream chunks can carry page attribution
func (e *Extractor) ExtractText(ctx context.Context, content []byte) (string, error) {
	pages, err := e.extractPages(ctx, content)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for i, text := range pages {
		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}
		fmt.Fprintf(&builder, "[PAGE %d]\n%s", i+1, text)
	}

	return builder.String(), nil
}

// PageCount returns the number of pages in the PDF
func (e *Extractor) PageCount(ctx context.Context, content []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	tempFile, cleanup, err := e.writeTemp(content)
	if err != nil {
		return 0, err
	}
	defer cleanup()

	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read PDF: %v", models.ErrValidation, err)
	}

	return pdfCtx.PageCount, nil
}

// extractPages returns the text of each page in order
func (e *Extractor) extractPages(ctx context.Context, content []byte) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tempFile, cleanup, err := e.writeTemp(content)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read PDF: %v", models.ErrValidation, err)
	}
	pageCount := pdfCtx.PageCount

	outDir := filepath.Join(e.tempDir, "pages_"+common.NewRequestID())
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create extraction dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	pages := make([]string, pageCount)

	if err := api.ExtractContentFile(tempFile, outDir, nil, conf); err != nil {
		e.logger.Warn().Err(err).Msg("PDF content extraction failed, returning empty pages")
		return pages, nil
	}

	files, _ := os.ReadDir(outDir)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		pageNum, ok := pageNumberFromName(file.Name())
		if !ok || pageNum > pageCount {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}
		pages[pageNum-1] = parseContentText(raw)
	}

	return pages, nil
}

// pageNumberFromName pulls the 1-based page number out of an extracted
// content filename, wherever it sits in the name
func pageNumberFromName(name string) (int, bool) {
	match := pageFileRe.FindStringSubmatch(name)
	if match == nil {
		return 0, false
	}
	pageNum, err := strconv.Atoi(match[1])
	if err != nil || pageNum < 1 {
		return 0, false
	}
	return pageNum, true
}

// writeTemp writes the PDF bytes to a uniquely named temp file
func (e *Extractor) writeTemp(content []byte) (string, func(), error) {
	tempFile := filepath.Join(e.tempDir, "extract_"+common.NewRequestID()+".pdf")
	if err := os.WriteFile(tempFile, content, 0644); err != nil {
		return "", nil, fmt.Errorf("failed to write temp PDF file: %w", err)
	}
	return tempFile, func() { os.Remove(tempFile) }, nil
}

// parseContentText pulls the literal strings shown by Tj/TJ operators
// out of a raw content stream. Escapes for parens and backslashes are
// honored; other operators are ignored.
func parseContentText(raw []byte) string {
	var out strings.Builder
	depth := 0
	escaped := false

	for i := 0; i < len(raw); i++ {
		b := raw[i]

		if depth > 0 {
			if escaped {
				switch b {
				case 'n':
					out.WriteByte('\n')
				case 't':
					out.WriteByte('\t')
				case '(', ')', '\\':
					out.WriteByte(b)
				}
				escaped = false
				continue
			}
			switch b {
			case '\\':
				escaped = true
			case '(':
				depth++
				out.WriteByte(b)
			case ')':
				depth--
				if depth > 0 {
					out.WriteByte(b)
				} else {
					out.WriteByte(' ')
				}
			default:
				out.WriteByte(b)
			}
			continue
		}

		if b == '(' {
			depth = 1
		}
	}

	return strings.TrimSpace(out.String())
}

package pdf

import (
	"bytes"
	"context"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/respondeo/internal/common"
)

func buildPDF(t *testing.T, pages ...string) []byte {
	t.Helper()

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetCompression(false)
	for _, text := range pages {
		doc.AddPage()
		doc.SetFont("Helvetica", "", 12)
		doc.Cell(40, 10, text)
	}

	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func TestExtractor_PageCount(t *testing.T) {
	extractor := NewExtractor(common.GetLogger())
	content := buildPDF(t, "first page", "second page", "third page")

	count, err := extractor.PageCount(context.Background(), content)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestExtractor_ExtractText(t *testing.T) {
	extractor := NewExtractor(common.GetLogger())
	content := buildPDF(t, "Hello from page one", "Greetings from page two")

	text, err := extractor.ExtractText(context.Background(), content)
	require.NoError(t, err)

	assert.Contains(t, text, "[PAGE 1]")
	assert.Contains(t, text, "[PAGE 2]")
	assert.Contains(t, text, "Hello from page one")
	assert.Contains(t, text, "Greetings from page two")
}

func TestExtractor_InvalidPDF(t *testing.T) {
	extractor := NewExtractor(common.GetLogger())

	_, err := extractor.PageCount(context.Background(), []byte("not a pdf"))
	assert.Error(t, err)

	_, err = extractor.ExtractText(context.Background(), []byte("not a pdf"))
	assert.Error(t, err)
}

func TestPageNumberFromName(t *testing.T) {
	// pdfcpu prefixes the output files with the input basename
	num, ok := pageNumberFromName("extract_req_abc123_Content_page_1.txt")
	assert.True(t, ok)
	assert.Equal(t, 1, num)

	num, ok = pageNumberFromName("in_Content_page_12.txt")
	assert.True(t, ok)
	assert.Equal(t, 12, num)

	_, ok = pageNumberFromName("notes.txt")
	assert.False(t, ok)
	_, ok = pageNumberFromName("Content_page_0.txt")
	assert.False(t, ok)
}

func TestParseContentText(t *testing.T) {
	raw := []byte(`BT /F1 12 Tf (Hello) Tj (World) Tj ET`)
	assert.Equal(t, "Hello World", parseContentText(raw))

	// Escaped parens and backslashes survive
	raw = []byte(`(a \( b \) c \\ d) Tj`)
	assert.Equal(t, `a ( b ) c \ d`, parseContentText(raw))

	assert.Equal(t, "", parseContentText([]byte("no strings here")))
}

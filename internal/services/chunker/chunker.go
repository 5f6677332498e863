// -----------------------------------------------------------------------
// Semantic Chunker - heading-aware segmentation with title-context
// bubbling and paragraph/sentence fallback
// -----------------------------------------------------------------------

package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondeo/internal/models"
)

var (
	htmlHeadingRe = regexp.MustCompile(`(?is)<h([1-6])[^>]*>(.*?)</h[1-6]\s*>`)
	mdHeadingRe   = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)
	sentinelRe    = regexp.MustCompile(`\[TITLE_L([1-6])\]\s*(.*?)\s*\[/TITLE\]`)
	paragraphRe   = regexp.MustCompile(`\n\s*\n`)
	htmlTagRe     = regexp.MustCompile(`(?s)<[^>]+>`)
	htmlScriptRe  = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)\s*>`)
	mdLinkRe      = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdCodeFenceRe = regexp.MustCompile("(?s)```.*?```")
	// Sentinel tokens alternate ahead of the marker class so inline
	// stripping cannot eat the underscore inside [TITLE_Lx]
	mdInlineRe = regexp.MustCompile("\\[TITLE_L[1-6]\\]|\\[/TITLE\\]|[`*_]+")
)

// Options parameterizes one chunking run
type Options struct {
	ChunkSize         int  // Target words per chunk
	ChunkOverlap      int  // Words carried into the next chunk
	RespectBoundaries bool // Prefer paragraph/sentence boundaries
	TitleBubbling     bool // Prepend ancestor heading context
}

// DefaultOptions returns the standard chunking parameters
func DefaultOptions() Options {
	return Options{
		ChunkSize:         800,
		ChunkOverlap:      200,
		RespectBoundaries: true,
		TitleBubbling:     true,
	}
}

// heading is one extracted document heading in source order
type heading struct {
	level int
	title string
}

// section is a heading-delimited slice of the cleaned document
type section struct {
	level int
	title string
	path  []string // Ancestor titles including this section's own
	body  string
}

// Chunker splits cleaned documents into retrieval-sized chunks
type Chunker struct {
	opts   Options
	logger arbor.ILogger
}

// New creates a chunker with the given options
func New(opts Options, logger arbor.ILogger) *Chunker {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 800
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = 0
	}
	if opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = opts.ChunkSize / 4
	}
	return &Chunker{opts: opts, logger: logger}
}

// Chunk splits text into an ordered sequence of semantic chunks with
// chunk_index assigned in emission order
func (c *Chunker) Chunk(text string, docType models.DocumentType) []*models.SemanticChunk {
	prepared := replaceHeadingsWithSentinels(text, docType)
	cleaned := cleanText(prepared, docType)

	var chunks []*models.SemanticChunk
	if c.opts.TitleBubbling && sentinelRe.MatchString(cleaned) {
		for _, sec := range splitSections(cleaned) {
			chunks = append(chunks, c.chunkSection(sec)...)
		}
	} else {
		// No headings (or bubbling disabled): treat the whole document
		// as one untitled section
		body := stripSentinels(cleaned)
		chunks = c.chunkSection(section{body: body})
	}

	for i, chunk := range chunks {
		chunk.ChunkIndex = i
	}

	if c.logger != nil {
		c.logger.Debug().
			Int("chunks", len(chunks)).
			Str("document_type", string(docType)).
			Msg("Document chunked")
	}
	return chunks
}

// replaceHeadingsWithSentinels rewrites heading syntax into
// [TITLE_Lx] text [/TITLE] markers that survive cleaning
func replaceHeadingsWithSentinels(text string, docType models.DocumentType) string {
	switch docType {
	case models.DocumentTypeHTML:
		return htmlHeadingRe.ReplaceAllStringFunc(text, func(match string) string {
			groups := htmlHeadingRe.FindStringSubmatch(match)
			title := strings.TrimSpace(htmlTagRe.ReplaceAllString(groups[2], ""))
			return fmt.Sprintf("\n[TITLE_L%s] %s [/TITLE]\n", groups[1], title)
		})
	case models.DocumentTypeMarkdown:
		return mdHeadingRe.ReplaceAllStringFunc(text, func(match string) string {
			groups := mdHeadingRe.FindStringSubmatch(match)
			return fmt.Sprintf("\n[TITLE_L%d] %s [/TITLE]\n", len(groups[1]), strings.TrimSpace(groups[2]))
		})
	default:
		return text
	}
}

// cleanText removes markup while preserving the heading sentinels
func cleanText(text string, docType models.DocumentType) string {
	switch docType {
	case models.DocumentTypeHTML:
		text = htmlScriptRe.ReplaceAllString(text, " ")
		text = htmlTagRe.ReplaceAllString(text, " ")
	case models.DocumentTypeMarkdown:
		text = mdCodeFenceRe.ReplaceAllString(text, " ")
		text = mdLinkRe.ReplaceAllString(text, "$1")
		text = mdInlineRe.ReplaceAllStringFunc(text, func(m string) string {
			if strings.HasPrefix(m, "[") {
				return m
			}
			return ""
		})
	}
	// Collapse horizontal whitespace but keep paragraph breaks
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func stripSentinels(text string) string {
	return strings.TrimSpace(sentinelRe.ReplaceAllString(text, ""))
}

// splitSections cuts the cleaned text at sentinel boundaries. Each
// section inherits the ancestor title path: headings seen earlier in
// document order whose level is strictly smaller, plus its own title.
func splitSections(text string) []section {
	matches := sentinelRe.FindAllStringSubmatchIndex(text, -1)

	var sections []section

	// Content before the first heading belongs to an untitled preamble
	if len(matches) > 0 && strings.TrimSpace(text[:matches[0][0]]) != "" {
		sections = append(sections, section{body: strings.TrimSpace(text[:matches[0][0]])})
	}

	var stack []heading
	for i, m := range matches {
		level := int(text[m[2]] - '0')
		title := strings.TrimSpace(text[m[4]:m[5]])

		// Pop siblings and deeper headings, then push this one
		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, heading{level: level, title: title})

		path := make([]string, 0, len(stack))
		for _, h := range stack {
			if h.title != "" {
				path = append(path, h.title)
			}
		}

		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		sections = append(sections, section{
			level: level,
			title: title,
			path:  path,
			body:  strings.TrimSpace(text[m[1]:end]),
		})
	}

	return sections
}

// chunkSection splits one section body by paragraphs when the text has
// at least two, else by sentences, flushing whenever the next unit
// would push the chunk past the word target
func (c *Chunker) chunkSection(sec section) []*models.SemanticChunk {
	body := strings.TrimSpace(sec.body)
	if body == "" {
		return nil
	}

	var pieces []string
	paragraphMode := false
	if c.opts.RespectBoundaries {
		if paragraphs := splitNonEmpty(paragraphRe.Split(body, -1)); len(paragraphs) >= 2 {
			pieces = paragraphs
			paragraphMode = true
		} else {
			pieces = splitSentences(body)
		}
	} else {
		pieces = splitWindows(body, c.opts.ChunkSize, c.opts.ChunkOverlap)
	}

	if len(pieces) == 0 {
		return nil
	}

	var chunks []*models.SemanticChunk
	var current []string
	currentWords := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(current, "\n\n"))
		if text == "" {
			current = nil
			currentWords = 0
			return
		}
		chunks = append(chunks, c.buildChunk(text, sec))

		// Overlap carries context into the next chunk: trailing words
		// in paragraph mode, the last two sentences otherwise
		if paragraphMode && c.opts.ChunkOverlap > 0 {
			words := strings.Fields(text)
			if len(words) > c.opts.ChunkOverlap {
				words = words[len(words)-c.opts.ChunkOverlap:]
			}
			current = []string{strings.Join(words, " ")}
			currentWords = len(words)
		} else if !paragraphMode && len(current) > 0 {
			if len(current) > 2 {
				current = current[len(current)-2:]
			}
			currentWords = wordCount(strings.Join(current, " "))
		} else {
			current = nil
			currentWords = 0
		}

		// An overlap that already fills the target would only re-emit
		// itself; drop it
		if currentWords >= c.opts.ChunkSize {
			current = nil
			currentWords = 0
		}
	}

	for _, piece := range pieces {
		pieceWords := wordCount(piece)
		if currentWords > 0 && currentWords+pieceWords > c.opts.ChunkSize {
			flush()
		}
		current = append(current, piece)
		currentWords += pieceWords
	}

	// Final flush without carrying overlap forward
	if len(current) > 0 {
		text := strings.TrimSpace(strings.Join(current, "\n\n"))
		if text != "" {
			chunks = append(chunks, c.buildChunk(text, sec))
		}
	}

	return chunks
}

// buildChunk attaches title context and metadata. The context preamble
// names the last two path components and is excluded from word_count.
func (c *Chunker) buildChunk(text string, sec section) *models.SemanticChunk {
	chunk := &models.SemanticChunk{
		Text:      text,
		Title:     sec.title,
		WordCount: wordCount(text),
		Metadata:  map[string]interface{}{"has_title_context": false},
	}

	if len(sec.path) > 0 {
		chunk.Section = strings.Join(sec.path, " > ")
	}

	if c.opts.TitleBubbling && len(sec.path) > 0 {
		context := sec.path
		if len(context) > 2 {
			context = context[len(context)-2:]
		}
		chunk.Text = fmt.Sprintf("[Context: %s] %s", strings.Join(context, " > "), text)
		chunk.Metadata["has_title_context"] = true
	}

	return chunk
}

// splitSentences breaks text on terminal punctuation followed by
// whitespace
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	runes := []rune(text)

	for i := 0; i < len(runes); i++ {
		if runes[i] == '.' || runes[i] == '!' || runes[i] == '?' {
			// Consume trailing punctuation and closers
			j := i + 1
			for j < len(runes) && (runes[j] == '.' || runes[j] == '!' || runes[j] == '?' ||
				runes[j] == '"' || runes[j] == '\'' || runes[j] == ')' || runes[j] == ']') {
				j++
			}
			if j >= len(runes) || runes[j] == ' ' || runes[j] == '\n' || runes[j] == '\t' {
				if s := strings.TrimSpace(string(runes[start:j])); s != "" {
					sentences = append(sentences, s)
				}
				start = j
				i = j - 1
			}
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// splitWindows slides a fixed word window when boundary respect is off
func splitWindows(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}

	var windows []string
	for start := 0; start < len(words); start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		windows = append(windows, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return windows
}

func splitNonEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

// -----------------------------------------------------------------------
// Lexical Index - in-process BM25 (Okapi) over tokenized chunks
// -----------------------------------------------------------------------

package index

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
)

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

var tokenRe = regexp.MustCompile(`\w+`)

// Tokenize lowercases and splits on word boundaries, matching the
// tokenizer used at query time
func Tokenize(text string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}

// document is one indexed chunk with its token statistics
type document struct {
	text      string
	metadata  map[string]interface{}
	termFreqs map[string]int
	length    int
}

// snapshot is an immutable view of the corpus. Readers score against
// one snapshot; Add swaps in a new one atomically.
type snapshot struct {
	docs      []*document
	docFreqs  map[string]int
	totalLen  int
	avgDocLen float64
}

// BM25Index implements interfaces.LexicalIndex
type BM25Index struct {
	mu      sync.RWMutex
	current *snapshot
	logger  arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.LexicalIndex = (*BM25Index)(nil)

// NewBM25Index creates an empty index
func NewBM25Index(logger arbor.ILogger) *BM25Index {
	return &BM25Index{
		current: &snapshot{docFreqs: map[string]int{}},
		logger:  logger,
	}
}

// Add extends the corpus with the given texts. Metadata is positional
// and may be nil. Writers are serialized by the ingest pipeline's
// single-writer discipline; this method still locks so a stray
// concurrent writer cannot corrupt the snapshot swap.
func (idx *BM25Index) Add(texts []string, metadata []map[string]interface{}) {
	if len(texts) == 0 {
		return
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	old := idx.current
	next := &snapshot{
		docs:     make([]*document, 0, len(old.docs)+len(texts)),
		docFreqs: make(map[string]int, len(old.docFreqs)),
		totalLen: old.totalLen,
	}
	next.docs = append(next.docs, old.docs...)
	for term, freq := range old.docFreqs {
		next.docFreqs[term] = freq
	}

	for i, text := range texts {
		tokens := Tokenize(text)
		doc := &document{
			text:      text,
			termFreqs: make(map[string]int, len(tokens)),
			length:    len(tokens),
		}
		if metadata != nil && i < len(metadata) {
			doc.metadata = metadata[i]
		}
		for _, token := range tokens {
			doc.termFreqs[token]++
		}
		for term := range doc.termFreqs {
			next.docFreqs[term]++
		}
		next.docs = append(next.docs, doc)
		next.totalLen += doc.length
	}

	if len(next.docs) > 0 {
		next.avgDocLen = float64(next.totalLen) / float64(len(next.docs))
	}

	idx.current = next

	if idx.logger != nil {
		idx.logger.Debug().Int("added", len(texts)).Int("corpus", len(next.docs)).Msg("Lexical index extended")
	}
}

// Search scores the query against the snapshot and returns hits with
// positive scores, best first
func (idx *BM25Index) Search(query string, topK int) []*models.RetrievalResult {
	idx.mu.RLock()
	snap := idx.current
	idx.mu.RUnlock()

	if len(snap.docs) == 0 || topK <= 0 {
		return nil
	}

	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	n := float64(len(snap.docs))

	type scored struct {
		doc   *document
		score float64
	}

	hits := make([]scored, 0, len(snap.docs))
	for _, doc := range snap.docs {
		var score float64
		for _, term := range queryTokens {
			tf := float64(doc.termFreqs[term])
			if tf == 0 {
				continue
			}
			df := float64(snap.docFreqs[term])
			idf := math.Log((n-df+0.5)/(df+0.5) + 1)
			norm := bm25K1 * (1 - bm25B + bm25B*float64(doc.length)/snap.avgDocLen)
			score += idf * (tf * (bm25K1 + 1)) / (tf + norm)
		}
		if score > 0 {
			hits = append(hits, scored{doc: doc, score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if len(hits) > topK {
		hits = hits[:topK]
	}

	results := make([]*models.RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		result := &models.RetrievalResult{
			Text:  hit.doc.text,
			Score: hit.score,
		}
		if hit.doc.metadata != nil {
			if page, ok := hit.doc.metadata["page"].(int); ok {
				result.Page = page
			}
		}
		results = append(results, result)
	}
	return results
}

// Size returns the corpus document count
func (idx *BM25Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.current.docs)
}

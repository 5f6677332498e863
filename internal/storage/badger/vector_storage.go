// -----------------------------------------------------------------------
// Vector Storage - uuid-keyed vector records with cosine top-k search
// -----------------------------------------------------------------------

package badger

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
)

// collectionMeta records the dimension fixed at collection creation
type collectionMeta struct {
	Name      string `badgerhold:"key"`
	Dimension int
}

// vectorRow is the stored representation of one vector record
type vectorRow struct {
	Key        string `badgerhold:"key"` // collection + "/" + record id
	Collection string `badgerhold:"index"`
	ID         string
	Vector     []float32
	Payload    models.VectorPayload
}

// VectorStorage implements interfaces.VectorStorage over badgerhold
type VectorStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.VectorStorage = (*VectorStorage)(nil)

// NewVectorStorage creates a vector storage over a badger connection
func NewVectorStorage(db *BadgerDB, logger arbor.ILogger) *VectorStorage {
	return &VectorStorage{
		db:     db,
		logger: logger,
	}
}

// EnsureCollection creates the collection when missing. The dimension
// is fixed at creation time; a mismatch on an existing collection is an
// error.
func (s *VectorStorage) EnsureCollection(name string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid collection dimension %d", dimension)
	}

	var meta collectionMeta
	err := s.db.Store().Get(name, &meta)
	if err == nil {
		if meta.Dimension != dimension {
			return fmt.Errorf("collection %s has dimension %d, requested %d", name, meta.Dimension, dimension)
		}
		return nil
	}
	if !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to read collection %s: %w", name, err)
	}

	meta = collectionMeta{Name: name, Dimension: dimension}
	if err := s.db.Store().Insert(name, meta); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	s.logger.Debug().Str("collection", name).Int("dimension", dimension).Msg("Vector collection created")
	return nil
}

// Upsert writes records keyed by their uuid. Re-ingesting identical
// content produces new uuids and therefore duplicates; there is no
// dedup contract.
func (s *VectorStorage) Upsert(collection string, records []*models.VectorRecord) error {
	var meta collectionMeta
	if err := s.db.Store().Get(collection, &meta); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("collection %s does not exist", collection)
		}
		return fmt.Errorf("failed to read collection %s: %w", collection, err)
	}

	for _, record := range records {
		if len(record.Vector) != meta.Dimension {
			return fmt.Errorf("vector dimension %d does not match collection %s dimension %d",
				len(record.Vector), collection, meta.Dimension)
		}

		row := vectorRow{
			Key:        collection + "/" + record.ID,
			Collection: collection,
			ID:         record.ID,
			Vector:     record.Vector,
			Payload:    record.Payload,
		}
		if err := s.db.Store().Upsert(row.Key, row); err != nil {
			return fmt.Errorf("failed to upsert vector %s: %w", record.ID, err)
		}
	}

	return nil
}

// Search scans the collection and returns the top limit records by
// cosine similarity
func (s *VectorStorage) Search(collection string, vector []float32, limit int) ([]*models.RetrievalResult, error) {
	if limit <= 0 {
		return nil, nil
	}

	var rows []vectorRow
	if err := s.db.Store().Find(&rows, badgerhold.Where("Collection").Eq(collection).Index("Collection")); err != nil {
		return nil, fmt.Errorf("failed to scan collection %s: %w", collection, err)
	}

	type scored struct {
		row   *vectorRow
		score float64
	}

	hits := make([]scored, 0, len(rows))
	for i := range rows {
		score := cosineSimilarity(vector, rows[i].Vector)
		hits = append(hits, scored{row: &rows[i], score: score})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]*models.RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, &models.RetrievalResult{
			Text:  hit.row.Payload.Text,
			Page:  hit.row.Payload.Page,
			Score: hit.score,
		})
	}
	return results, nil
}

// Count returns the number of records in the collection
func (s *VectorStorage) Count(collection string) (int, error) {
	count, err := s.db.Store().Count(&vectorRow{}, badgerhold.Where("Collection").Eq(collection).Index("Collection"))
	if err != nil {
		return 0, fmt.Errorf("failed to count collection %s: %w", collection, err)
	}
	return int(count), nil
}

// Close closes the underlying database
func (s *VectorStorage) Close() error {
	return s.db.Close()
}

// cosineSimilarity computes the cosine of the angle between two
// vectors, guarding against zero norms
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

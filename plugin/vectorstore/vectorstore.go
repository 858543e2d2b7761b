package vectorstore

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

const (
	collectionName = "knowledge_base"

	// MetadataCategory is the metadata key holding a chunk's category.
	MetadataCategory = "category"
	// MetadataSource is the metadata key holding the file a chunk came from.
	MetadataSource = "source"
)

// Document is a chunk of knowledge to index.
type Document struct {
	ID       string
	Content  string
	Category string
	Source   string
}

// SearchResult is a single semantic-search hit.
type SearchResult struct {
	ID       string
	Content  string
	Category string
	Score    float32
}

// Store wraps a chromem-go collection holding the knowledge corpus.
type Store struct {
	mu  sync.RWMutex
	db  *chromem.DB
	col *chromem.Collection
}

// New creates (or opens) the persistent vector store at dataDir/vectorstore/.
// embedFunc is the embedding function to use; pass chromem.NewEmbeddingFuncOpenAICompat
// pointed at the OpenRouter embeddings endpoint.
func New(dataDir string, embedFunc chromem.EmbeddingFunc) (*Store, error) {
	dir := filepath.Join(dataDir, "vectorstore")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create vectorstore dir: %w", err)
	}
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open vectorstore: %w", err)
	}
	return newStore(db, embedFunc)
}

// NewInMemory creates a volatile vector store.
func NewInMemory(embedFunc chromem.EmbeddingFunc) (*Store, error) {
	return newStore(chromem.NewDB(), embedFunc)
}

func newStore(db *chromem.DB, embedFunc chromem.EmbeddingFunc) (*Store, error) {
	col, err := db.GetOrCreateCollection(collectionName, nil, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", collectionName, err)
	}
	return &Store{db: db, col: col}, nil
}

// Count returns the number of indexed chunks.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.col.Count()
}

// Upsert indexes docs, replacing chunks with the same ID.
func (s *Store) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	chunks := make([]chromem.Document, 0, len(docs))
	for _, d := range docs {
		chunks = append(chunks, chromem.Document{
			ID:      d.ID,
			Content: d.Content,
			Metadata: map[string]string{
				MetadataCategory: d.Category,
				MetadataSource:   d.Source,
			},
		})
	}
	return s.col.AddDocuments(ctx, chunks, runtime.NumCPU())
}

// Search returns up to k chunks most similar to query, best first. Equal
// scores are ordered by ID so identical queries give identical answers.
// A non-empty category restricts the search to that category.
func (s *Store) Search(ctx context.Context, query string, k int, category string) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := s.col.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	var where map[string]string
	if category != "" {
		where = map[string]string{MetadataCategory: category}
	}
	results, err := s.col.Query(ctx, query, k, where, nil)
	if err != nil {
		return nil, err
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Category: r.Metadata[MetadataCategory],
			Score:    r.Similarity,
		})
	}
	slices.SortStableFunc(out, func(a, b SearchResult) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Package vector provides an embedded vector index for memory recall.
// It wraps chromem-go, a pure-Go persistent vector database, so no
// external service is needed.
package vector

import (
	"context"
	"fmt"
	"os"

	chromem "github.com/philippgille/chromem-go"
)

// Config holds configuration for the vector index.
type Config struct {
	// Path is the directory for persistent storage.
	Path string
	// Collection is the collection name. Defaults to "quill-memories".
	Collection string
	// Provider selects the embedding provider: "local" (default, offline
	// trigram hashing), "openai", or "ollama".
	Provider string
	// OllamaModel is the embedding model when Provider is "ollama".
	// Defaults to "nomic-embed-text".
	OllamaModel string
	// Compress enables gzip compression for stored data.
	Compress bool
}

func (c *Config) applyDefaults() {
	if c.Collection == "" {
		c.Collection = "quill-memories"
	}
	if c.Provider == "" {
		c.Provider = "local"
	}
	if c.OllamaModel == "" {
		c.OllamaModel = "nomic-embed-text"
	}
}

// Index is a persistent vector index over a single collection.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// Open opens (or creates) a persistent index rooted at cfg.Path.
func Open(cfg Config) (*Index, error) {
	cfg.applyDefaults()

	if cfg.Path == "" {
		return nil, fmt.Errorf("vector index path is required")
	}
	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("create vector index directory: %w", err)
	}

	db, err := chromem.NewPersistentDB(cfg.Path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("open vector database: %w", err)
	}

	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, embeddingFunc(cfg))
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", cfg.Collection, err)
	}

	return &Index{db: db, collection: collection}, nil
}

// Upsert stores (or replaces) a document under the given ID.
func (ix *Index) Upsert(ctx context.Context, id, text string, meta map[string]string) error {
	if id == "" {
		return fmt.Errorf("document id is required")
	}
	doc := chromem.Document{
		ID:       id,
		Content:  text,
		Metadata: meta,
	}
	if err := ix.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document %s: %w", id, err)
	}
	return nil
}

// Query returns the IDs of the topK most similar documents, best first.
// filter restricts candidates by exact metadata match. topK is clamped to
// the collection size; an empty collection yields no results.
func (ix *Index) Query(ctx context.Context, text string, filter map[string]string, topK int) ([]string, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	count := ix.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := ix.collection.Query(ctx, text, topK, filter, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids, nil
}

// Count returns the number of documents in the index.
func (ix *Index) Count() int {
	return ix.collection.Count()
}

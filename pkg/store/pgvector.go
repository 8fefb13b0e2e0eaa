package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xhad/bizintel/internal/models"
	"github.com/xhad/bizintel/internal/types"
	"github.com/xhad/bizintel/pkg/processor"
)

type PageIndexConfig struct {
	TableName   string
	VectorDim   int
	BatchSize   int
	SearchLimit int
	Processor   processor.ProcessorConfig
	Logger      *zap.Logger
}

// PageIndex stores chunked, embedded page content in a pgvector table.
type PageIndex struct {
	config    PageIndexConfig
	pool      *pgxpool.Pool
	embedder  types.Embedder
	processor processor.Processor
	logger    *zap.Logger
}

func NewPageIndex(ctx context.Context, pool *pgxpool.Pool, embedder types.Embedder, config PageIndexConfig) (*PageIndex, error) {
	if config.TableName == "" {
		config.TableName = "page_chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768 // nomic-embed-text
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if config.SearchLimit == 0 {
		config.SearchLimit = 5
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	idx := &PageIndex{
		config:    config,
		pool:      pool,
		embedder:  embedder,
		processor: processor.NewWithConfig(config.Processor),
		logger:    config.Logger,
	}
	if err := idx.initialize(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *PageIndex) initialize(ctx context.Context) error {
	if _, err := idx.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return eris.Wrap(err, "failed to create vector extension")
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			request_id TEXT NOT NULL,
			url TEXT NOT NULL,
			title TEXT,
			content TEXT,
			chunk_index INTEGER,
			embedding vector(%d),
			metadata JSONB
		)`, idx.config.TableName, idx.config.VectorDim)
	if _, err := idx.pool.Exec(ctx, createTable); err != nil {
		return eris.Wrap(err, "failed to create page index table")
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		idx.config.TableName, idx.config.TableName)
	if _, err := idx.pool.Exec(ctx, createIndex); err != nil {
		return eris.Wrap(err, "failed to create embedding index")
	}
	return nil
}

// ChunkRecord is one row of the page index.
type ChunkRecord struct {
	ID         string
	URL        string
	Title      string
	Content    string
	ChunkIndex int
	Metadata   map[string]interface{}
}

// BuildChunks splits the successful pages of a run into index rows.
// Row ids are <request_id>_<url hash>_<chunk>, so re-indexing a run overwrites it.
func BuildChunks(p processor.Processor, requestID string, pages models.ExtractionResult) ([]ChunkRecord, error) {
	processed, err := p.Process(processor.DocumentsFromPages(requestID, pages))
	if err != nil {
		return nil, eris.Wrap(err, "failed to process pages")
	}

	var records []ChunkRecord
	for _, doc := range processed {
		title := sanitizeUTF8(doc.Title)
		for i, chunk := range doc.Chunks {
			records = append(records, ChunkRecord{
				ID:         fmt.Sprintf("%s_%d", doc.ID, i),
				URL:        doc.URL,
				Title:      title,
				Content:    sanitizeUTF8(chunk),
				ChunkIndex: i,
				Metadata:   doc.Metadata,
			})
		}
	}
	return records, nil
}

// Index embeds and upserts every chunk of the successful pages.
func (idx *PageIndex) Index(ctx context.Context, requestID string, pages models.ExtractionResult) error {
	records, err := BuildChunks(idx.processor, requestID, pages)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, request_id, url, title, content, chunk_index, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`,
		idx.config.TableName)

	tx, err := idx.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	for start := 0; start < len(records); start += idx.config.BatchSize {
		end := min(start+idx.config.BatchSize, len(records))
		batch := records[start:end]

		texts := make([]string, len(batch))
		for i, r := range batch {
			texts[i] = r.Content
		}
		embeddings, err := idx.embedder.CreateEmbedding(ctx, texts)
		if err != nil {
			return eris.Wrap(err, "failed to create embeddings")
		}
		if len(embeddings) != len(batch) {
			return eris.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(batch))
		}

		for i, r := range batch {
			_, err := tx.Exec(ctx, stmt,
				r.ID,
				requestID,
				r.URL,
				r.Title,
				r.Content,
				r.ChunkIndex,
				pgvector.NewVector(embeddings[i]),
				r.Metadata,
			)
			if err != nil {
				return eris.Wrapf(err, "failed to upsert chunk %s", r.ID)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "failed to commit transaction")
	}

	idx.logger.Info("indexed pages", zap.String("request_id", requestID), zap.Int("chunks", len(records)))
	return nil
}

// Query returns the chunks nearest to queryEmbedding.
func (idx *PageIndex) Query(ctx context.Context, queryEmbedding []float32, limit int) ([]models.Document, error) {
	if limit == 0 {
		limit = idx.config.SearchLimit
	}

	query := fmt.Sprintf(`
		SELECT id, url, title, content, metadata
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		idx.config.TableName)

	rows, err := idx.pool.Query(ctx, query, pgvector.NewVector(queryEmbedding), limit)
	if err != nil {
		return nil, eris.Wrap(err, "failed to query page index")
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.URL, &doc.Title, &doc.Content, &doc.Metadata); err != nil {
			return nil, eris.Wrap(err, "failed to scan row")
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/paperqa/internal/models"
)

type PostgresConfig struct {
	ConnString  string
	TablePrefix string
	VectorDim   int
	BatchSize   int
	SearchLimit int
}

// Postgres keeps papers, QA records and chunk embeddings in PostgreSQL with pgvector.
type Postgres struct {
	config PostgresConfig
	pool   *pgxpool.Pool
}

func NewPostgresWithConfig(config PostgresConfig) (*Postgres, error) {
	if config.VectorDim == 0 {
		config.VectorDim = 1536 // Default for OpenAI embeddings
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if config.SearchLimit == 0 {
		config.SearchLimit = 4
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ps := &Postgres{
		config: config,
		pool:   pool,
	}

	if err := ps.initialize(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}

	return ps, nil
}

func (ps *Postgres) table(name string) string {
	return ps.config.TablePrefix + name
}

func (ps *Postgres) initialize(ctx context.Context) error {
	// Enable pgvector extension
	if _, err := ps.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	statements := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			url TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			paper TEXT NOT NULL,
			notes JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, ps.table("papers")),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			paper_url TEXT NOT NULL,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			context TEXT NOT NULL,
			followup_questions JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (paper_url, question)
		)`, ps.table("qa")),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			content TEXT NOT NULL,
			page INTEGER NOT NULL,
			chunk_index INTEGER NOT NULL,
			embedding vector(%d),
			metadata JSONB
		)`, ps.table("chunks"), ps.config.VectorDim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_url_idx ON %[1]s (url)`, ps.table("chunks")),
		fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %[1]s_embedding_idx
		ON %[1]s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`, ps.table("chunks")),
	}

	for _, stmt := range statements {
		if _, err := ps.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return nil
}

func (ps *Postgres) GetPaper(ctx context.Context, url string) (*models.Paper, error) {
	query := fmt.Sprintf(`SELECT url, name, paper, notes, created_at FROM %s WHERE url = $1`, ps.table("papers"))

	var paper models.Paper
	var notes []byte
	err := ps.pool.QueryRow(ctx, query, url).Scan(&paper.URL, &paper.Name, &paper.Paper, &notes, &paper.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query paper: %w", err)
	}

	if err := json.Unmarshal(notes, &paper.Notes); err != nil {
		return nil, fmt.Errorf("failed to decode notes: %w", err)
	}

	return &paper, nil
}

func (ps *Postgres) SavePaper(ctx context.Context, paper models.Paper) error {
	notes, err := json.Marshal(paper.Notes)
	if err != nil {
		return fmt.Errorf("failed to encode notes: %w", err)
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (url, name, paper, notes, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (url) DO NOTHING`,
		ps.table("papers"))

	if _, err := ps.pool.Exec(ctx, stmt, paper.URL, paper.Name, sanitizeNUL(paper.Paper), string(notes), paper.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert paper: %w", err)
	}
	return nil
}

func (ps *Postgres) GetQA(ctx context.Context, paperURL, question string) (*models.QARecord, error) {
	query := fmt.Sprintf(`
		SELECT paper_url, question, answer, context, followup_questions, created_at
		FROM %s
		WHERE paper_url = $1 AND question = $2`,
		ps.table("qa"))

	var record models.QARecord
	var followups []byte
	err := ps.pool.QueryRow(ctx, query, paperURL, question).Scan(
		&record.PaperURL,
		&record.Question,
		&record.Answer,
		&record.Context,
		&followups,
		&record.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query qa record: %w", err)
	}

	if err := json.Unmarshal(followups, &record.FollowupQuestions); err != nil {
		return nil, fmt.Errorf("failed to decode followup questions: %w", err)
	}

	return &record, nil
}

func (ps *Postgres) SaveQA(ctx context.Context, record models.QARecord) error {
	if record.FollowupQuestions == nil {
		record.FollowupQuestions = []string{}
	}
	followups, err := json.Marshal(record.FollowupQuestions)
	if err != nil {
		return fmt.Errorf("failed to encode followup questions: %w", err)
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (paper_url, question, answer, context, followup_questions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (paper_url, question) DO NOTHING`,
		ps.table("qa"))

	_, err = ps.pool.Exec(ctx, stmt,
		record.PaperURL,
		record.Question,
		record.Answer,
		sanitizeNUL(record.Context),
		string(followups),
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert qa record: %w", err)
	}
	return nil
}

func (ps *Postgres) Store(ctx context.Context, chunks []models.Chunk) error {
	for _, chunk := range chunks {
		if len(chunk.Embedding) != ps.config.VectorDim {
			return fmt.Errorf("chunk %s has %d dimensions, expected %d", chunk.ID, len(chunk.Embedding), ps.config.VectorDim)
		}
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, url, content, page, chunk_index, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`,
		ps.table("chunks"))

	for i := 0; i < len(chunks); i += ps.config.BatchSize {
		end := i + ps.config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := ps.storeBatch(ctx, stmt, chunks[i:end]); err != nil {
			return err
		}
	}

	return nil
}

func (ps *Postgres) storeBatch(ctx context.Context, stmt string, chunks []models.Chunk) error {
	tx, err := ps.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, chunk := range chunks {
		metadata, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}

		_, err = tx.Exec(ctx, stmt,
			chunk.ID,
			chunk.URL,
			sanitizeNUL(chunk.Content),
			chunk.Page,
			chunk.ChunkIndex,
			pgvector.NewVector(chunk.Embedding),
			string(metadata),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	// Commit transaction
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (ps *Postgres) Query(ctx context.Context, url string, queryEmbedding []float32, limit int) ([]models.Chunk, error) {
	if limit <= 0 {
		limit = ps.config.SearchLimit
	}
	if len(queryEmbedding) != ps.config.VectorDim {
		return nil, fmt.Errorf("query has %d dimensions, expected %d", len(queryEmbedding), ps.config.VectorDim)
	}

	// Query similar chunks of one paper
	query := fmt.Sprintf(`
		SELECT id, url, content, page, chunk_index, metadata
		FROM %s
		WHERE url = $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		ps.table("chunks"))

	rows, err := ps.pool.Query(ctx, query, pgvector.NewVector(queryEmbedding), url, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var chunk models.Chunk
		var metadata []byte
		if err := rows.Scan(&chunk.ID, &chunk.URL, &chunk.Content, &chunk.Page, &chunk.ChunkIndex, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata: %w", err)
			}
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return chunks, nil
}

func (ps *Postgres) Close() {
	if ps.pool != nil {
		ps.pool.Close()
	}
}

// sanitizeNUL drops NUL bytes, which Postgres text columns reject.
func sanitizeNUL(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}

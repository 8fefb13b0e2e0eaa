package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xhad/bizintel/internal/models"
)

type PostgresStoreConfig struct {
	TableName string
	Logger    *zap.Logger
}

// PostgresStore keeps analyses as JSONB rows keyed by request id.
type PostgresStore struct {
	config PostgresStoreConfig
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, config PostgresStoreConfig) (*PostgresStore, error) {
	if config.TableName == "" {
		config.TableName = "analyses"
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	s := &PostgresStore{config: config, pool: pool, logger: config.Logger}
	if err := s.initialize(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initialize(ctx context.Context) error {
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			request_id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			payload JSONB NOT NULL
		)`, s.config.TableName)

	if _, err := s.pool.Exec(ctx, createTable); err != nil {
		return eris.Wrap(err, "failed to create analyses table")
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, out *models.AnalysisOutput) error {
	payload, err := json.Marshal(out)
	if err != nil {
		return eris.Wrap(err, "failed to encode analysis")
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (request_id, created_at, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (request_id) DO UPDATE SET
			created_at = EXCLUDED.created_at,
			payload = EXCLUDED.payload`,
		s.config.TableName)

	if _, err := s.pool.Exec(ctx, stmt, out.RequestID, out.Timestamp, payload); err != nil {
		return eris.Wrap(err, "failed to upsert analysis")
	}

	s.logger.Info("saved analysis", zap.String("request_id", out.RequestID), zap.String("table", s.config.TableName))
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, requestID string) (*models.AnalysisOutput, error) {
	query := fmt.Sprintf(`SELECT payload FROM %s WHERE request_id = $1`, s.config.TableName)

	var payload []byte
	err := s.pool.QueryRow(ctx, query, requestID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, requestID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "failed to load analysis")
	}

	var out models.AnalysisOutput
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, eris.Wrap(err, "failed to decode analysis")
	}
	return &out, nil
}

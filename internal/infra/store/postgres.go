package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"connection-pro/internal/domain"
	"connection-pro/internal/infra/metrics"
)

const createRecordsTable = `CREATE TABLE IF NOT EXISTS kv_records (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Connect создаёт пул подключений к Postgres и готовит таблицу записей.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 5
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(connectCtx, createRecordsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("создание таблицы kv_records: %w", err)
	}
	return pool, nil
}

// PostgresStore хранит записи в одной таблице kv_records.
type PostgresStore struct {
	pool   *pgxpool.Pool
	prefix string
}

var _ domain.Store = (*PostgresStore)(nil)

// NewPostgres создаёт хранилище поверх пула.
func NewPostgres(pool *pgxpool.Pool, prefix string) *PostgresStore {
	return &PostgresStore{pool: pool, prefix: prefix}
}

// Get возвращает значение записи.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM kv_records WHERE key=$1`, s.prefix+key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "get", key, start, nil)
		return nil, domain.ErrNotFound
	}
	metrics.ObserveNetworkRequest("postgres", "get", key, start, err)
	if err != nil {
		return nil, fmt.Errorf("postgres get %s: %w", key, err)
	}
	return data, nil
}

// Set перезаписывает запись целиком.
func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	_, err := s.pool.Exec(ctx, `INSERT INTO kv_records (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()`, s.prefix+key, value)
	metrics.ObserveNetworkRequest("postgres", "set", key, start, err)
	if err != nil {
		return fmt.Errorf("postgres set %s: %w", key, err)
	}
	return nil
}

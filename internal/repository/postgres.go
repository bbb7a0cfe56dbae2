package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jack/url-shortener-platform/internal/config"
	"github.com/jack/url-shortener-platform/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrURLNotFound        = errors.New("url not found")
	ErrURLExpired         = errors.New("url has expired")
	ErrDuplicateShortCode = errors.New("short code already exists")
	ErrDuplicateAlias     = errors.New("alias already exists")
)

const uniqueViolation = "23505"

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(cfg *config.PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// InsertMapping inserts a new url_mapping row inside a single transaction.
// Unique-constraint violations are mapped to ErrDuplicateShortCode or
// ErrDuplicateAlias so the caller can retry minting or reject the alias.
func (r *PostgresRepository) InsertMapping(ctx context.Context, m *model.URLMapping) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO url_mapping (short_url, alias, long_url, creation_date, expiration_date, user_id, click_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = tx.Exec(ctx, query,
		m.ShortCode, m.Alias, m.LongURL, m.CreationDate, m.ExpirationDate, m.UserID, m.ClickCount)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == "url_mapping_alias_key" {
				return ErrDuplicateAlias
			}
			return ErrDuplicateShortCode
		}
		return fmt.Errorf("failed to insert mapping: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit mapping: %w", err)
	}

	return nil
}

// GetByShortCode retrieves a mapping by short code or alias.
func (r *PostgresRepository) GetByShortCode(ctx context.Context, shortCode string) (*model.URLMapping, error) {
	query := `
		SELECT short_url, alias, long_url, creation_date, expiration_date, user_id, click_count
		FROM url_mapping
		WHERE short_url = $1 OR alias = $1
	`

	var m model.URLMapping
	err := r.pool.QueryRow(ctx, query, shortCode).Scan(
		&m.ShortCode,
		&m.Alias,
		&m.LongURL,
		&m.CreationDate,
		&m.ExpirationDate,
		&m.UserID,
		&m.ClickCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrURLNotFound
		}
		return nil, fmt.Errorf("failed to get mapping: %w", err)
	}

	return &m, nil
}

// ListByUser returns all mappings owned by the given account.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID int32) ([]model.URLMapping, error) {
	query := `
		SELECT short_url, alias, long_url, creation_date, expiration_date, user_id, click_count
		FROM url_mapping
		WHERE user_id = $1
		ORDER BY creation_date DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	defer rows.Close()

	var mappings []model.URLMapping
	for rows.Next() {
		var m model.URLMapping
		if err := rows.Scan(
			&m.ShortCode,
			&m.Alias,
			&m.LongURL,
			&m.CreationDate,
			&m.ExpirationDate,
			&m.UserID,
			&m.ClickCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read mappings: %w", err)
	}

	return mappings, nil
}

// IncrementClickCountBy adds the accumulated count to a mapping (batch sync).
func (r *PostgresRepository) IncrementClickCountBy(ctx context.Context, shortCode string, count int64) error {
	query := `UPDATE url_mapping SET click_count = click_count + $1 WHERE short_url = $2`

	result, err := r.pool.Exec(ctx, query, count, shortCode)
	if err != nil {
		return fmt.Errorf("failed to increment click count by %d: %w", count, err)
	}

	if result.RowsAffected() == 0 {
		return ErrURLNotFound
	}

	return nil
}

// Health checks the database connection
func (r *PostgresRepository) Health(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

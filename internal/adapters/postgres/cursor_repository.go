package postgres

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leboncoin-parser-service/internal/contextkeys"
	"leboncoin-parser-service/internal/core/domain"
	"leboncoin-parser-service/internal/core/port"
)

// PostgresCursorRepository persists the resume cursor in a shared database,
// keyed by the logical output name, so several hosts can coordinate on the
// same search. The run lock is a session-scoped advisory lock derived from
// the same key.
type PostgresCursorRepository struct {
	dbPool     *pgxpool.Pool
	outputName string

	// lockConn pins the connection holding the advisory lock; advisory locks
	// are per session and would vanish if the pool recycled the connection.
	lockConn *pgxpool.Conn
}

func NewPostgresCursorRepository(ctx context.Context, dbPool *pgxpool.Pool, outputName string) (*PostgresCursorRepository, error) {
	if dbPool == nil {
		return nil, fmt.Errorf("postgres cursor repository: dbPool cannot be nil")
	}
	if outputName == "" {
		return nil, fmt.Errorf("postgres cursor repository: output name cannot be empty")
	}

	r := &PostgresCursorRepository{dbPool: dbPool, outputName: outputName}
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *PostgresCursorRepository) ensureSchema(ctx context.Context) error {
	query := `
        CREATE TABLE IF NOT EXISTS crawl_cursors (
            output_name       VARCHAR(255) PRIMARY KEY,
            fingerprint       VARCHAR(64) NOT NULL,
            last_id           VARCHAR(64) NOT NULL,
            last_published_at TIMESTAMPTZ NOT NULL,
            next_page         INTEGER NOT NULL,
            listings_written  INTEGER NOT NULL,
            updated_at        TIMESTAMPTZ NOT NULL
        )
    `
	if _, err := r.dbPool.Exec(ctx, query); err != nil {
		return fmt.Errorf("PostgresCursorRepo: error creating crawl_cursors table: %w", err)
	}
	return nil
}

func (r *PostgresCursorRepository) GetCursor(ctx context.Context) (*domain.Cursor, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "PostgresCursorRepository",
		"method":    "GetCursor",
	})

	var cursor domain.Cursor
	query := `
        SELECT fingerprint, last_id, last_published_at, next_page, listings_written, updated_at
        FROM crawl_cursors WHERE output_name = $1
    `

	err := r.dbPool.QueryRow(ctx, query, r.outputName).Scan(
		&cursor.Fingerprint,
		&cursor.LastID,
		&cursor.LastPublishedAt,
		&cursor.NextPage,
		&cursor.ListingsWritten,
		&cursor.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.Debug("No cursor found", port.Fields{"output_name": r.outputName})
			return nil, nil
		}
		logger.Error("Error getting cursor", err, port.Fields{"output_name": r.outputName})
		return nil, fmt.Errorf("PostgresCursorRepo: error querying cursor for '%s': %w", r.outputName, err)
	}

	return &cursor, nil
}

func (r *PostgresCursorRepository) SetCursor(ctx context.Context, cursor *domain.Cursor) error {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "PostgresCursorRepository",
		"method":    "SetCursor",
	})

	query := `
        INSERT INTO crawl_cursors (output_name, fingerprint, last_id, last_published_at, next_page, listings_written, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (output_name) DO UPDATE SET
            fingerprint       = EXCLUDED.fingerprint,
            last_id           = EXCLUDED.last_id,
            last_published_at = EXCLUDED.last_published_at,
            next_page         = EXCLUDED.next_page,
            listings_written  = EXCLUDED.listings_written,
            updated_at        = EXCLUDED.updated_at
    `

	_, err := r.dbPool.Exec(ctx, query,
		r.outputName,
		cursor.Fingerprint,
		cursor.LastID,
		cursor.LastPublishedAt,
		cursor.NextPage,
		cursor.ListingsWritten,
		cursor.UpdatedAt,
	)
	if err != nil {
		logger.Error("Error setting cursor", err, port.Fields{"output_name": r.outputName})
		return fmt.Errorf("PostgresCursorRepo: error setting cursor for '%s': %w", r.outputName, err)
	}
	return nil
}

func (r *PostgresCursorRepository) AcquireRunLock(ctx context.Context) error {
	conn, err := r.dbPool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("PostgresCursorRepo: error acquiring connection for run lock: %w", err)
	}

	var acquired bool
	err = conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, r.lockKey()).Scan(&acquired)
	if err != nil {
		conn.Release()
		return fmt.Errorf("PostgresCursorRepo: error taking advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return fmt.Errorf("advisory lock for '%s' is held: %w", r.outputName, domain.ErrRunInProgress)
	}

	r.lockConn = conn
	return nil
}

func (r *PostgresCursorRepository) ReleaseRunLock(ctx context.Context) error {
	if r.lockConn == nil {
		return nil
	}
	defer func() {
		r.lockConn.Release()
		r.lockConn = nil
	}()

	if _, err := r.lockConn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, r.lockKey()); err != nil {
		return fmt.Errorf("PostgresCursorRepo: error releasing advisory lock: %w", err)
	}
	return nil
}

func (r *PostgresCursorRepository) lockKey() int64 {
	h := fnv.New64a()
	h.Write([]byte("crawl_cursors:" + r.outputName))
	return int64(h.Sum64())
}

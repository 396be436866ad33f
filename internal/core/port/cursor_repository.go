package port

import (
	"context"
	"leboncoin-parser-service/internal/core/domain"
)

// CursorRepositoryPort persists the resume cursor for one output target and
// guards that target against concurrent runs.
type CursorRepositoryPort interface {
	// GetCursor returns the stored cursor, or (nil, nil) when none exists yet.
	GetCursor(ctx context.Context) (*domain.Cursor, error)

	SetCursor(ctx context.Context, cursor *domain.Cursor) error

	// AcquireRunLock claims exclusive ownership of the output/cursor pair.
	// It returns domain.ErrRunInProgress when another run holds it.
	AcquireRunLock(ctx context.Context) error

	ReleaseRunLock(ctx context.Context) error
}

package cursorfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leboncoin-parser-service/internal/core/domain"
)

func TestGetCursorReturnsNilWhenMissing(t *testing.T) {
	repo := NewRepository(filepath.Join(t.TempDir(), "out.csv"))

	cursor, err := repo.GetCursor(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestCursorRoundTrip(t *testing.T) {
	repo := NewRepository(filepath.Join(t.TempDir(), "out.csv"))

	want := &domain.Cursor{
		Fingerprint:     "abc123",
		LastID:          "2912345678",
		LastPublishedAt: time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
		NextPage:        4,
		ListingsWritten: 105,
		UpdatedAt:       time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.SetCursor(context.Background(), want))

	got, err := repo.GetCursor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSetCursorOverwrites(t *testing.T) {
	repo := NewRepository(filepath.Join(t.TempDir(), "out.csv"))

	require.NoError(t, repo.SetCursor(context.Background(), &domain.Cursor{NextPage: 2}))
	require.NoError(t, repo.SetCursor(context.Background(), &domain.Cursor{NextPage: 7}))

	got, err := repo.GetCursor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, got.NextPage)
}

func TestGetCursorRejectsCorruptFile(t *testing.T) {
	output := filepath.Join(t.TempDir(), "out.csv")
	repo := NewRepository(output)

	cursorPath := filepath.Join(filepath.Dir(output), "out.cursor.json")
	require.NoError(t, os.WriteFile(cursorPath, []byte("{not json"), 0o644))

	_, err := repo.GetCursor(context.Background())
	assert.Error(t, err)
}

func TestRunLockConflict(t *testing.T) {
	output := filepath.Join(t.TempDir(), "out.csv")
	first := NewRepository(output)
	second := NewRepository(output)

	require.NoError(t, first.AcquireRunLock(context.Background()))

	err := second.AcquireRunLock(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRunInProgress)

	require.NoError(t, first.ReleaseRunLock(context.Background()))
	assert.NoError(t, second.AcquireRunLock(context.Background()))
	require.NoError(t, second.ReleaseRunLock(context.Background()))
}

func TestReleaseRunLockWithoutAcquireIsNoop(t *testing.T) {
	repo := NewRepository(filepath.Join(t.TempDir(), "out.csv"))
	assert.NoError(t, repo.ReleaseRunLock(context.Background()))
}

func TestDerivedPathsLiveNextToOutput(t *testing.T) {
	dir := t.TempDir()
	repo := NewRepository(filepath.Join(dir, "listings.csv"))

	require.NoError(t, repo.SetCursor(context.Background(), &domain.Cursor{NextPage: 1}))
	require.NoError(t, repo.AcquireRunLock(context.Background()))
	defer repo.ReleaseRunLock(context.Background())

	_, err := os.Stat(filepath.Join(dir, "listings.cursor.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "listings.lock"))
	assert.NoError(t, err)
}

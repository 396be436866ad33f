package csvsink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leboncoin-parser-service/internal/core/domain"
)

func listingFor(id string, images ...string) *domain.Listing {
	price := 100000.0
	return &domain.Listing{
		ID:          id,
		Title:       "Local commercial",
		Description: "Boutique avec vitrine",
		Price:       &price,
		Location:    domain.Location{City: "Paris", PostalCode: "75011"},
		PublishedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Status:      domain.StatusActive,
		SellerKind:  domain.SellerKindPrivate,
		URL:         "https://www.leboncoin.fr/ad/bureaux_commerces/" + id,
		Images:      images,
		ScrapedAt:   time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
	}
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriterCreatesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), listingFor("1")))
	require.NoError(t, w.Close())

	rows := readRows(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "Paris", rows[1][8])
}

func TestWriterAppendsWithoutDuplicateHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), listingFor("1")))
	require.NoError(t, w.Close())

	w, err = NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), listingFor("2")))
	require.NoError(t, w.Close())

	rows := readRows(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "2", rows[2][0])
}

func TestWriterRebuildsSeenIDsFromExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), listingFor("1")))
	require.NoError(t, w.Write(context.Background(), listingFor("2")))
	require.NoError(t, w.Close())

	w, err = NewWriter(path)
	require.NoError(t, err)
	defer w.Close()

	ids := w.SeenIDs()
	assert.Equal(t, map[string]struct{}{"1": {}, "2": {}}, ids)

	// The returned map is a copy.
	ids["3"] = struct{}{}
	assert.NotContains(t, w.SeenIDs(), "3")
}

func TestWriterEmptyOptionalFieldsStayEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	l := listingFor("1")
	l.Price = nil

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), l))
	require.NoError(t, w.Close())

	rows := readRows(t, path)
	// price, rent and surface columns are blank, not zero
	assert.Equal(t, "", rows[1][3])
	assert.Equal(t, "", rows[1][4])
	assert.Equal(t, "", rows[1][5])
}

func TestWriterSidecarOnlyWhenImagesExist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), listingFor("1")))
	require.NoError(t, w.Close())

	_, err = os.Stat(SidecarPath(path))
	assert.True(t, os.IsNotExist(err))
}

func TestWriterSidecarHoldsImageURLs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), listingFor("1", "https://img/a.jpg", "https://img/b.jpg")))
	require.NoError(t, w.Write(context.Background(), listingFor("2")))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(SidecarPath(path))
	require.NoError(t, err)

	var sidecar map[string]struct {
		Images []string `json:"images"`
	}
	require.NoError(t, json.Unmarshal(data, &sidecar))
	require.Len(t, sidecar, 1)
	assert.Equal(t, []string{"https://img/a.jpg", "https://img/b.jpg"}, sidecar["1"].Images)

	// The CSV row carries the count and first URL only.
	rows := readRows(t, path)
	assert.Equal(t, "2", rows[1][24])
	assert.Equal(t, "https://img/a.jpg", rows[1][25])
	assert.Equal(t, "0", rows[2][24])
}

func TestWriterSidecarMergesAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), listingFor("1", "https://img/a.jpg")))
	require.NoError(t, w.Close())

	w, err = NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), listingFor("2", "https://img/b.jpg")))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(SidecarPath(path))
	require.NoError(t, err)

	var sidecar map[string]struct {
		Images []string `json:"images"`
	}
	require.NoError(t, json.Unmarshal(data, &sidecar))
	assert.Len(t, sidecar, 2)
}

func TestWriterRowIsFlushedImmediately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	w, err := NewWriter(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Write(context.Background(), listingFor("1")))

	// Visible on disk before Close.
	rows := readRows(t, path)
	require.Len(t, rows, 2)
}

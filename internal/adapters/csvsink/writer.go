package csvsink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"leboncoin-parser-service/internal/core/domain"
)

// Header is the fixed column order of the output file. It never changes
// between releases without a migration note, since downstream tooling keys
// on it.
var Header = []string{
	"id", "title", "description", "price", "rent", "surface", "property_type",
	"address", "city", "postal_code", "department", "region", "latitude", "longitude",
	"published_at", "expiration_date", "category", "status", "favorites",
	"seller_name", "seller_kind", "has_phone", "contact", "url",
	"images_count", "first_image_url",
	"energy_class", "ges", "furnished", "scraped_at",
}

type sidecarEntry struct {
	Images []string `json:"images"`
}

// Writer streams listings to a CSV file, flushing after every row so a crash
// loses at most the row in flight. Opening an existing file appends to it and
// rebuilds the set of already-written IDs from its contents; image lists go
// to a JSON sidecar next to the CSV, written only when at least one listing
// actually has images.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer

	path        string
	sidecar     string
	seenIDs     map[string]struct{}
	images      map[string]sidecarEntry
	imagesDirty bool
}

func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	seen, hasRows, err := loadExistingIDs(path)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("csv: open file %q: %w", path, err)
	}

	w := &Writer{
		file:    f,
		writer:  csv.NewWriter(f),
		path:    path,
		sidecar: SidecarPath(path),
		seenIDs: seen,
		images:  map[string]sidecarEntry{},
	}

	if !hasRows {
		if err := w.writer.Write(Header); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("csv: write header: %w", err)
		}
		w.writer.Flush()
		if err := w.writer.Error(); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("csv: flush header: %w", err)
		}
	}

	if err := w.loadSidecar(); err != nil {
		_ = f.Close()
		return nil, err
	}

	return w, nil
}

// SidecarPath derives the image sidecar location from the CSV path:
// out.csv -> out.images.json.
func SidecarPath(csvPath string) string {
	base := strings.TrimSuffix(csvPath, filepath.Ext(csvPath))
	return base + ".images.json"
}

// Write appends one listing row and flushes it to the OS.
func (w *Writer) Write(ctx context.Context, l *domain.Listing) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Write(rowFor(l)); err != nil {
		return fmt.Errorf("csv: write row for %s: %w", l.ID, err)
	}
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return fmt.Errorf("csv: flush row for %s: %w", l.ID, err)
	}

	w.seenIDs[l.ID] = struct{}{}
	if len(l.Images) > 0 {
		w.images[l.ID] = sidecarEntry{Images: l.Images}
		w.imagesDirty = true
	}
	return nil
}

// SeenIDs returns a copy of all listing IDs present in the output file,
// including rows written by earlier runs.
func (w *Writer) SeenIDs() map[string]struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := make(map[string]struct{}, len(w.seenIDs))
	for id := range w.seenIDs {
		ids[id] = struct{}{}
	}
	return ids
}

func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return fmt.Errorf("csv: flush: %w", err)
	}
	return w.writeSidecar()
}

func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}

// writeSidecar persists the id -> images object atomically. Callers hold the
// mutex.
func (w *Writer) writeSidecar() error {
	if !w.imagesDirty || len(w.images) == 0 {
		return nil
	}

	data, err := json.MarshalIndent(w.images, "", "  ")
	if err != nil {
		return fmt.Errorf("sidecar: marshal: %w", err)
	}
	tmp := w.sidecar + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("sidecar: write: %w", err)
	}
	if err := os.Rename(tmp, w.sidecar); err != nil {
		return fmt.Errorf("sidecar: rename: %w", err)
	}
	w.imagesDirty = false
	return nil
}

// loadSidecar merges entries left by a previous run, so a resumed crawl does
// not drop their images when it rewrites the file.
func (w *Writer) loadSidecar() error {
	data, err := os.ReadFile(w.sidecar)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("sidecar: read %q: %w", w.sidecar, err)
	}
	if err := json.Unmarshal(data, &w.images); err != nil {
		return fmt.Errorf("sidecar: decode %q: %w", w.sidecar, err)
	}
	return nil
}

// loadExistingIDs reads the id column of an existing output file. The second
// return value reports whether the file already has a header.
func loadExistingIDs(path string) (map[string]struct{}, bool, error) {
	ids := make(map[string]struct{})

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ids, false, nil
		}
		return nil, false, fmt.Errorf("csv: open existing %q: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header := false
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, fmt.Errorf("csv: read existing %q: %w", path, err)
		}
		if !header {
			header = true
			continue
		}
		if len(record) > 0 && record[0] != "" {
			ids[record[0]] = struct{}{}
		}
	}

	return ids, header, nil
}

func rowFor(l *domain.Listing) []string {
	firstImage := ""
	if len(l.Images) > 0 {
		firstImage = l.Images[0]
	}

	return []string{
		l.ID,
		l.Title,
		l.Description,
		formatFloatPtr(l.Price),
		formatFloatPtr(l.Rent),
		formatFloatPtr(l.Surface),
		l.PropertyType,
		l.Location.Address,
		l.Location.City,
		l.Location.PostalCode,
		l.Location.Department,
		l.Location.Region,
		formatFloatPtr(l.Location.Latitude),
		formatFloatPtr(l.Location.Longitude),
		l.PublishedAt.Format(time.RFC3339),
		formatTimePtr(l.ExpiresAt),
		l.Category,
		l.Status,
		strconv.Itoa(l.Favorites),
		l.SellerName,
		l.SellerKind,
		strconv.FormatBool(l.HasPhone),
		formatStringPtr(l.Contact),
		l.URL,
		strconv.Itoa(len(l.Images)),
		firstImage,
		l.EnergyClass,
		l.GES,
		l.Furnished,
		l.ScrapedAt.Format(time.RFC3339),
	}
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatStringPtr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

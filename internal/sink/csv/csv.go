// Package csv is the flat-file storage sink: one append-only CSV file
// per table, header written once on first insert, guarded by a mutex
// since the sink is shared by every pipeline writing to it concurrently.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rindexer-go/rindexer/pkg/sink"
)

const dirPerm = 0o755

// Sink writes InsertBulk batches as CSV rows under a configured
// directory, one file per table, columns sorted by name.
type Sink struct {
	name string
	dir  string

	mu      sync.Mutex
	headers map[string][]string
}

var _ sink.Sink = (*Sink)(nil)

// New builds a CSV sink rooted at dir, creating it if necessary.
func New(name, dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create csv sink directory: %w", err)
	}
	return &Sink{name: name, dir: dir, headers: make(map[string][]string)}, nil
}

// Name returns the sink's configured name.
func (s *Sink) Name() string { return s.name }

// InsertBulk appends rows to table's CSV file, writing a header row
// the first time the table is seen by this sink instance.
func (s *Sink) InsertBulk(ctx context.Context, table string, columns []string, rows []sink.Row) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := make([]string, len(columns))
	copy(sorted, columns)
	sort.Strings(sorted)

	path := filepath.Join(s.dir, table+".csv")
	writeHeader := false
	if _, seen := s.headers[table]; !seen {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			writeHeader = true
		}
		s.headers[table] = sorted
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open csv file for table %s: %w", table, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(sorted); err != nil {
			return fmt.Errorf("write csv header for table %s: %w", table, err)
		}
	}

	for _, row := range rows {
		record := make([]string, len(sorted))
		for i, col := range sorted {
			record[i] = fmt.Sprint(row[col])
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write csv row for table %s: %w", table, err)
		}
	}

	w.Flush()
	return w.Error()
}

// HealthCheck reports whether the sink directory is still writable.
func (s *Sink) HealthCheck(ctx context.Context) error {
	probe := filepath.Join(s.dir, ".health")
	if err := os.WriteFile(probe, []byte{}, 0o644); err != nil {
		return fmt.Errorf("csv sink directory %s not writable: %w", s.dir, err)
	}
	return os.Remove(probe)
}

// Close is a no-op: files are opened and closed per InsertBulk call.
func (s *Sink) Close() error { return nil }

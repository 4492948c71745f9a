// Package csvfile persists store snapshots as a CSV file plus a counter file.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/hylla/kanplan/internal/app"
	"github.com/hylla/kanplan/internal/domain"
)

// Store reads and writes one CSV file and its sibling counter file.
type Store struct {
	path        string
	counterPath string
}

var _ app.Persister = (*Store)(nil)

// Open prepares a CSV store at path. The file itself is created on first save.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("csv path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create csv dir: %w", err)
	}
	return &Store{path: path, counterPath: CounterPath(path)}, nil
}

// CounterPath returns the counter file used next to a CSV file: tasks.csv -> tasks.counter.
func CounterPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".counter"
}

// Path returns the CSV file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the CSV file. A missing file is an empty store; an empty file or a
// bad header is reported as app.ErrLoadCorruption. Rows that do not form a
// record are returned as rejected rows.
func (s *Store) Load(ctx context.Context) (app.LoadResult, error) {
	if err := ctx.Err(); err != nil {
		return app.LoadResult{}, err
	}
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return app.LoadResult{}, nil
	}
	if err != nil {
		return app.LoadResult{}, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return app.LoadResult{}, fmt.Errorf("%s is empty: %w", s.path, app.ErrLoadCorruption)
	}
	if err != nil {
		return app.LoadResult{}, fmt.Errorf("read %s header: %w: %w", s.path, app.ErrLoadCorruption, err)
	}
	if !slices.Equal(trimAll(header), domain.RecordHeader) {
		return app.LoadResult{}, fmt.Errorf("%s: %w: unexpected header %v", s.path, app.ErrLoadCorruption, header)
	}

	var out app.LoadResult
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return app.LoadResult{}, fmt.Errorf("read %s: %w: %w", s.path, app.ErrLoadCorruption, err)
		}
		line, _ := reader.FieldPos(0)
		rec, err := domain.RecordFromFields(fields)
		if err != nil {
			out.Rejected = append(out.Rejected, app.RejectedRecord{Line: line, Err: err})
			continue
		}
		out.Records = append(out.Records, rec)
	}

	out.Counter, err = s.readCounter()
	if err != nil {
		return app.LoadResult{}, err
	}
	return out, nil
}

// readCounter reads the counter file. A missing file means zero.
func (s *Store) readCounter() (int, error) {
	raw, err := os.ReadFile(s.counterPath)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", s.counterPath, err)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: %w: counter %q", s.counterPath, app.ErrLoadCorruption, text)
	}
	return n, nil
}

// Save rewrites the CSV file and the counter file. Each file is replaced by rename.
func (s *Store) Save(ctx context.Context, records []domain.Record, counter int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := writeAtomic(s.path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(domain.RecordHeader); err != nil {
			return err
		}
		for _, rec := range records {
			if err := cw.Write(rec.Fields()); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	err = writeAtomic(s.counterPath, func(w io.Writer) error {
		_, err := io.WriteString(w, strconv.Itoa(counter)+"\n")
		return err
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", s.counterPath, err)
	}
	return nil
}

// writeAtomic writes through a temp file in the target directory and renames it into place.
func writeAtomic(path string, write func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// trimAll trims whitespace and a leading byte-order mark from header cells.
func trimAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, cell := range cells {
		out[i] = strings.TrimSpace(strings.TrimPrefix(cell, "\ufeff"))
	}
	return out
}

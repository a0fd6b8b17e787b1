package repositories

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/forro/internal/models"
	"github.com/desertthunder/forro/internal/shared"
)

const utf8BOM = "\uFEFF"

// CSVStore keeps track pairs in a comma-separated file with a mandatory header row.
//
// Full rewrites go through a temporary file and a rename so a crash never leaves a truncated store.
// The store assumes a single writer and takes no file locks.
type CSVStore struct {
	path string
	opts options
}

// NewCSVStore creates a store bound to path.
func NewCSVStore(path string, opts ...Option) *CSVStore {
	return &CSVStore{path: path, opts: newOptions(opts)}
}

func (s *CSVStore) Location() string { return s.path }

// EnsureInitialized creates parent directories and writes the header when the file is missing,
// empty or holds nothing but blank lines.
func (s *CSVStore) EnsureInitialized(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := os.ReadFile(s.path)
	switch {
	case err == nil && hasRecord(data):
		return nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("failed to read store: %w", err)
	}

	data, err = encodeCSV(nil, false)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path, data)
}

// LoadAll parses every row in file order.
func (s *CSVStore) LoadAll(ctx context.Context) ([]models.TrackPair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.TrackPair{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store: %w", err)
	}

	rows, err := scanRows(data)
	if err != nil {
		return nil, err
	}

	pairs := make([]models.TrackPair, 0, len(rows))
	for i, row := range rows {
		p, err := decodeRecord(row.fields, i+1)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

// Append validates pair, rejects duplicates of any stored row, stamps AddedAt and writes a trailing row.
func (s *CSVStore) Append(ctx context.Context, pair models.TrackPair) (models.TrackPair, error) {
	if err := s.EnsureInitialized(ctx); err != nil {
		return pair, err
	}

	existing, err := s.LoadAll(ctx)
	if err != nil {
		return pair, err
	}

	stored, err := s.opts.prepareAppend(existing, pair)
	if err != nil {
		return stored, err
	}

	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return stored, fmt.Errorf("failed to open store: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	needsNewline, err := missingTrailingNewline(f)
	if err != nil {
		return stored, err
	}
	if needsNewline {
		buf.WriteByte('\n')
	}

	w := csv.NewWriter(&buf)
	if err := w.Write(encodeRecord(stored)); err != nil {
		return stored, fmt.Errorf("failed to encode track pair: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return stored, fmt.Errorf("failed to encode track pair: %w", err)
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		return stored, fmt.Errorf("failed to append track pair: %w", err)
	}
	if err := f.Sync(); err != nil {
		return stored, fmt.Errorf("failed to sync store: %w", err)
	}
	return stored, nil
}

// ReplaceAt splices the serialized pair over the raw bytes of row index. Other rows keep their exact bytes.
func (s *CSVStore) ReplaceAt(ctx context.Context, index int, pair models.TrackPair) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return indexError(index)
	}
	if err != nil {
		return fmt.Errorf("failed to read store: %w", err)
	}

	rows, err := scanRows(data)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(rows) {
		return indexError(index)
	}

	row := rows[index]
	stored, err := decodeRecord(row.fields, index+1)
	if err != nil {
		return err
	}
	if err := checkReplace(index, len(rows), stored, pair); err != nil {
		return err
	}

	original := data[row.start:row.end]
	replacement, err := encodeRow(pair, bytes.HasSuffix(original, []byte("\r\n")))
	if err != nil {
		return err
	}
	if !bytes.HasSuffix(original, []byte("\n")) {
		replacement = bytes.TrimRight(replacement, "\r\n")
	}

	out := make([]byte, 0, len(data)-len(original)+len(replacement))
	out = append(out, data[:row.start]...)
	out = append(out, replacement...)
	out = append(out, data[row.end:]...)
	return writeFileAtomic(s.path, out)
}

// WriteAll rewrites the file with the header followed by pairs.
func (s *CSVStore) WriteAll(ctx context.Context, pairs []models.TrackPair) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encodeCSV(pairs, false)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path, data)
}

// rawRow is a parsed row plus its byte span in the file, trailing newline included.
type rawRow struct {
	fields     []string
	start, end int64
}

// scanRows checks the header and returns every data row with its byte span.
func scanRows(data []byte) ([]rawRow, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidFormat, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	var rows []rawRow
	start := r.InputOffset()
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidFormat, err)
		}
		end := r.InputOffset()
		rows = append(rows, rawRow{fields: fields, start: skipBlankLines(data, start, end), end: end})
		start = end
	}
	return rows, nil
}

// hasRecord reports whether data contains at least one CSV record. The reader skips blank lines.
func hasRecord(data []byte) bool {
	_, err := csv.NewReader(bytes.NewReader(data)).Read()
	return !errors.Is(err, io.EOF)
}

// skipBlankLines advances start past empty lines preceding a record so they stay outside its span.
func skipBlankLines(data []byte, start, end int64) int64 {
	for start < end {
		switch {
		case data[start] == '\n':
			start++
		case data[start] == '\r' && start+1 < end && data[start+1] == '\n':
			start += 2
		default:
			return start
		}
	}
	return start
}

func encodeCSV(pairs []models.TrackPair, crlf bool) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = crlf

	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("failed to encode header: %w", err)
	}
	for _, p := range pairs {
		if err := w.Write(encodeRecord(p)); err != nil {
			return nil, fmt.Errorf("failed to encode track pair: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to encode store: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeRow(p models.TrackPair, crlf bool) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = crlf
	if err := w.Write(encodeRecord(p)); err != nil {
		return nil, fmt.Errorf("failed to encode track pair: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to encode track pair: %w", err)
	}
	return buf.Bytes(), nil
}

// missingTrailingNewline reports whether a non-empty file does not end in '\n'.
func missingTrailingNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("failed to stat store: %w", err)
	}
	if info.Size() == 0 {
		return false, nil
	}

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, fmt.Errorf("failed to read store: %w", err)
	}
	return last[0] != '\n', nil
}

// writeFileAtomic writes data to a temporary file in the target directory and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to set store permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace store: %w", err)
	}
	return nil
}

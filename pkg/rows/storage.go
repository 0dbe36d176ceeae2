package rows

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/grokify/omnistorage"
	"github.com/grokify/omnistorage/compress/gzip"
	"github.com/grokify/omnistorage/format/ndjson"
)

// StorageWriter writes rows to an omnistorage backend as NDJSON.
// Each record is either a JSON string (one row) or a JSON array of column values.
// If the path ends with .gz, gzip compression is automatically applied.
type StorageWriter struct {
	ndjsonWriter *ndjson.Writer
	count        int
}

// NewStorageWriter creates a row writer using an omnistorage backend.
// Supported path patterns:
//   - *.ndjson - plain NDJSON
//   - *.ndjson.gz - gzip-compressed NDJSON
func NewStorageWriter(ctx context.Context, backend omnistorage.Backend, path string) (*StorageWriter, error) {
	if !isNDJSON(path) {
		return nil, fmt.Errorf("unsupported path %q: expected .ndjson or .ndjson.gz", path)
	}

	w, err := backend.NewWriter(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("creating writer: %w", err)
	}

	var writer io.WriteCloser = w

	if isGzip(path) {
		gzWriter, err := gzip.NewWriter(w)
		if err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("creating gzip writer: %w", err)
		}
		writer = gzWriter
	}

	return &StorageWriter{
		ndjsonWriter: ndjson.NewWriter(writer),
	}, nil
}

// WriteRow writes a single row.
func (w *StorageWriter) WriteRow(row string) error {
	return w.write(row)
}

// WriteColumns writes a row given as column values.
// Readers join the columns with single spaces.
func (w *StorageWriter) WriteColumns(cols []string) error {
	return w.write(cols)
}

func (w *StorageWriter) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling row: %w", err)
	}
	if err := w.ndjsonWriter.Write(data); err != nil {
		return fmt.Errorf("writing row: %w", err)
	}
	w.count++
	return nil
}

// Flush flushes any buffered data.
func (w *StorageWriter) Flush() error {
	return w.ndjsonWriter.Flush()
}

// Close flushes and closes the writer.
func (w *StorageWriter) Close() error {
	return w.ndjsonWriter.Close()
}

// Count returns the number of rows written.
func (w *StorageWriter) Count() int {
	return w.count
}

// StorageReader reads NDJSON rows from an omnistorage backend.
// If the path ends with .gz, gzip decompression is automatically applied.
type StorageReader struct {
	ndjsonReader *ndjson.Reader
	lineNum      int
}

// NewStorageReader creates a row reader using an omnistorage backend.
func NewStorageReader(ctx context.Context, backend omnistorage.Backend, path string) (*StorageReader, error) {
	reader, err := openStorage(ctx, backend, path)
	if err != nil {
		return nil, err
	}
	return &StorageReader{
		ndjsonReader: ndjson.NewReader(reader),
	}, nil
}

// Read reads the next row.
// Returns io.EOF when no more rows are available.
func (r *StorageReader) Read() (string, error) {
	data, err := r.ndjsonReader.Read()
	if err != nil {
		return "", err
	}

	r.lineNum++

	row, err := decodeRow(data)
	if err != nil {
		return "", fmt.Errorf("line %d: %w", r.lineNum, err)
	}
	return row, nil
}

// Close closes the reader.
func (r *StorageReader) Close() error {
	return r.ndjsonReader.Close()
}

// LineNumber returns the current line number (useful for error reporting).
func (r *StorageReader) LineNumber() int {
	return r.lineNum
}

// Storage produces the rows stored at Path in an omnistorage backend.
// NDJSON paths (*.ndjson, *.ndjson.gz) hold one record per row; any other
// path is read as plain text with one row per line.
type Storage struct {
	Backend omnistorage.Backend
	Path    string
}

// Produce reads every row stored at Path.
func (s *Storage) Produce(ctx context.Context) ([]string, error) {
	if s.Backend == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if isNDJSON(s.Path) {
		return readNDJSONRows(ctx, s.Backend, s.Path)
	}
	return readTextRows(ctx, s.Backend, s.Path)
}

func readNDJSONRows(ctx context.Context, backend omnistorage.Backend, path string) ([]string, error) {
	r, err := NewStorageReader(ctx, backend, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	var out []string
	for {
		row, err := r.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		out = append(out, row)
	}
}

func readTextRows(ctx context.Context, backend omnistorage.Backend, path string) ([]string, error) {
	reader, err := openStorage(ctx, backend, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	scanner := bufio.NewScanner(reader)
	// Increase buffer size for long generated rows
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024) // 1MB max row size

	var out []string
	for scanner.Scan() {
		out = append(out, strings.TrimSuffix(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return out, nil
}

func openStorage(ctx context.Context, backend omnistorage.Backend, path string) (io.ReadCloser, error) {
	r, err := backend.NewReader(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("creating reader: %w", err)
	}

	var reader io.ReadCloser = r

	if isGzip(path) {
		gzReader, err := gzip.NewReader(r)
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		reader = gzReader
	}
	return reader, nil
}

// decodeRow decodes a JSON string row or an array of column values.
func decodeRow(data []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimSpace(data)))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("decoding row: %w", err)
	}

	switch t := v.(type) {
	case string:
		return t, nil
	case []any:
		cols := make([]string, 0, len(t))
		for _, col := range t {
			s, err := formatColumn(col)
			if err != nil {
				return "", err
			}
			cols = append(cols, s)
		}
		return JoinColumns(cols), nil
	default:
		return "", fmt.Errorf("unsupported row type %T: expected string or array", v)
	}
}

func formatColumn(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		if t {
			return "true", nil
		}
		return "false", nil
	default:
		return "", fmt.Errorf("unsupported column type %T", v)
	}
}

func isGzip(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

func isNDJSON(path string) bool {
	p := strings.TrimSuffix(strings.ToLower(path), ".gz")
	return strings.HasSuffix(p, ".ndjson")
}

// Ensure Storage implements Producer
var _ Producer = (*Storage)(nil)

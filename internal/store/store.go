package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"inventory-export/internal/product"
)

// StorageError reports a failure to read or write the products file.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// CorruptPolicy decides what Open does with a products file that is not a
// valid JSON array of records.
type CorruptPolicy string

const (
	// CorruptFail returns a StorageError.
	CorruptFail CorruptPolicy = "fail"
	// CorruptReset moves the file to <path>.corrupt and starts empty.
	CorruptReset CorruptPolicy = "reset"
)

// Store is the in-memory product collection, deduplicated by sku and kept in
// discovery order. It is not safe for concurrent use.
type Store struct {
	records []product.Record
	seen    map[string]struct{}
}

func New() *Store {
	return &Store{
		records: []product.Record{},
		seen:    map[string]struct{}{},
	}
}

// FromRecords builds a store from previously persisted records. Later
// duplicates of a sku are dropped.
func FromRecords(records []product.Record) *Store {
	s := New()
	for _, r := range records {
		s.Add(r)
	}
	return s
}

// Load reads the products file at path. A missing file is an empty
// collection; a malformed one is a StorageError.
func Load(path string) ([]product.Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []product.Record{}, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "read", Path: path, Err: err}
	}

	var records []product.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &StorageError{Op: "decode", Path: path, Err: err}
	}
	if records == nil {
		records = []product.Record{}
	}
	return records, nil
}

// Open loads path into a new Store, applying policy when the file is corrupt.
func Open(path string, policy CorruptPolicy) (*Store, error) {
	records, err := Load(path)
	if err == nil {
		slog.Info("loaded existing products", "path", path, "count", len(records))
		return FromRecords(records), nil
	}

	var storageErr *StorageError
	if policy != CorruptReset || !errors.As(err, &storageErr) || storageErr.Op != "decode" {
		return nil, err
	}

	backup := path + ".corrupt"
	if err := os.Rename(path, backup); err != nil {
		return nil, &StorageError{Op: "reset", Path: path, Err: err}
	}
	slog.Warn("products file is corrupt, starting fresh", "path", path, "moved_to", backup, "err", storageErr.Err)
	return New(), nil
}

func (s *Store) Seen(sku string) bool {
	_, ok := s.seen[sku]
	return ok
}

// Add appends r unless its sku is already present. Existing records are
// never replaced.
func (s *Store) Add(r product.Record) bool {
	if s.Seen(r.SKU) {
		return false
	}
	s.seen[r.SKU] = struct{}{}
	s.records = append(s.records, r)
	return true
}

func (s *Store) Len() int {
	return len(s.records)
}

// Records returns a copy of the collection in discovery order.
func (s *Store) Records() []product.Record {
	out := make([]product.Record, len(s.records))
	copy(out, s.records)
	return out
}

const productsFileMode os.FileMode = 0o644

// Flush writes the whole collection to path as a pretty-printed JSON array.
// The data goes to a temp file in the same directory first and is renamed
// over path, so readers never see a half-written file.
func (s *Store) Flush(path string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(s.records); err != nil {
		return &StorageError{Op: "encode", Path: path, Err: err}
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	// CreateTemp makes the file 0600
	if err := tmp.Chmod(productsFileMode); err != nil {
		tmp.Close()
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &StorageError{Op: "rename", Path: path, Err: err}
	}

	slog.Info("saved products", "path", path, "count", len(s.records))
	return nil
}

package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"inventory-export/internal/product"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func record(sku, name string) product.Record {
	return product.Record{
		ItemNo:     "1",
		Cost:       "10.00",
		SKU:        sku,
		Details:    "details",
		Product:    name,
		Dimensions: "1x1x1",
		Weight:     "0.1",
		Type:       "misc",
	}
}

func TestLoadMissingFile(t *testing.T) {
	records, err := Load(filepath.Join(t.TempDir(), "products.json"))
	require.NoError(t, err)
	require.NotNil(t, records)
	require.Len(t, records, 0)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"sku": `), 0o644))

	_, err := Load(path)
	var storageErr *StorageError
	require.True(t, errors.As(err, &storageErr))
	require.Equal(t, "decode", storageErr.Op)
}

func TestOpenCorruptPolicies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "products.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := Open(path, CorruptFail)
	require.Error(t, err)
	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	s, err := Open(path, CorruptReset)
	require.NoError(t, err)
	require.Equal(t, 0, s.Len())

	_, statErr = os.Stat(path)
	require.True(t, errors.Is(statErr, os.ErrNotExist))
	backup, err := os.ReadFile(path + ".corrupt")
	require.NoError(t, err)
	require.Equal(t, "not json", string(backup))
}

func TestAddKeepsFirstRecord(t *testing.T) {
	s := New()
	require.True(t, s.Add(record("A1", "original")))
	require.False(t, s.Add(record("A1", "changed")))
	require.True(t, s.Add(record("A2", "second")))

	require.True(t, s.Seen("A1"))
	require.False(t, s.Seen("A3"))
	require.Equal(t, 2, s.Len())

	got := s.Records()
	require.Equal(t, "original", got[0].Product)
	require.Equal(t, "A2", got[1].SKU)
}

func TestFromRecordsDropsDuplicates(t *testing.T) {
	s := FromRecords([]product.Record{
		record("A1", "first"),
		record("A1", "dup"),
		record("B2", "other"),
	})
	require.Equal(t, 2, s.Len())
	require.Equal(t, "first", s.Records()[0].Product)
}

func TestFlushRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")

	s := New()
	s.Add(record("A1", "Ünïcödé <widget> & co"))
	s.Add(record("B2", "plain"))
	require.NoError(t, s.Flush(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)
	require.Contains(t, text, "Ünïcödé <widget> & co")
	require.Contains(t, text, "\n    {\n        \"item_#\": \"1\",")
	require.Less(t, strings.Index(text, `"item_#"`), strings.Index(text, `"type"`))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(s.Records(), loaded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFlushEmptyIsArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, New().Flush(path))

	var decoded []product.Record
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.NotNil(t, decoded)
	require.Len(t, decoded, 0)
}

func TestFlushMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "products.json")
	err := New().Flush(path)
	var storageErr *StorageError
	require.True(t, errors.As(err, &storageErr))
}

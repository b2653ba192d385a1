package sidecar

import (
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndGet(t *testing.T) {
	s := New()
	s.Append([]string{"a", "b"})
	s.Append([]string{"c"})

	assert.Equal(t, 3, s.Len())

	label, ok := s.Get(2)
	require.True(t, ok)
	assert.Equal(t, "c", label)

	_, ok = s.Get(3)
	assert.False(t, ok)
}

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "product_texts.json")

	s := New()
	s.Append([]string{"Electronics Widget", "Clothing Shirt"})
	require.NoError(t, s.Save(path))

	// A second batch replaces the whole file; the result must stay one valid
	// JSON array spanning both batches.
	s.Append([]string{"Groceries Apple"})
	require.NoError(t, s.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var labels []string
	require.NoError(t, json.Unmarshal(raw, &labels))
	assert.Equal(t, []string{"Electronics Widget", "Clothing Shirt", "Groceries Apple"}, labels)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Len())

	label, ok := loaded.Get(1)
	require.True(t, ok)
	assert.Equal(t, "Clothing Shirt", label)
}

func TestSaveEmptyWritesValidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "texts.json")

	require.NoError(t, New().Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "texts.json")
	require.NoError(t, os.WriteFile(path, []byte(`["a"]["b"]`), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

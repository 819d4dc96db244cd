package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder maps known texts onto fixed 3-dimensional vectors so
// similarity ordering is deterministic.
type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := f.vectors[t]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", t)
		}
		out[i] = v
	}
	return out, nil
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string][]float32{
		"auth best practices":  {1, 0, 0},
		"auth docs":            {0.9, 0.1, 0},
		"css layout tricks":    {0, 1, 0},
		"database migrations":  {0, 0, 1},
		"how do I log users in": {0.95, 0.05, 0},
	}}
}

func TestStore_AddAndQuery(t *testing.T) {
	appDir := t.TempDir()
	s := NewStore(appDir, newFakeEmbedder(), nil)
	ctx := context.Background()

	err := s.Add(ctx, []string{"auth docs", "css layout tricks", "database migrations"})
	require.NoError(t, err)

	results, err := s.Query(ctx, "how do I log users in", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "auth docs", results[0], "most similar document should rank first")
}

func TestStore_CreateIfAbsent(t *testing.T) {
	appDir := t.TempDir()
	s := NewStore(appDir, newFakeEmbedder(), nil)

	// Query before any Add: empty store, no error, no results.
	results, err := s.Query(context.Background(), "auth best practices", 3)
	require.NoError(t, err)
	assert.Empty(t, results)

	// First Add creates the file.
	require.NoError(t, s.Add(context.Background(), []string{"auth docs"}))
	_, err = os.Stat(filepath.Join(appDir, "index", "store.yaml"))
	require.NoError(t, err)
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	appDir := t.TempDir()
	ctx := context.Background()

	s1 := NewStore(appDir, newFakeEmbedder(), nil)
	require.NoError(t, s1.Add(ctx, []string{"auth docs", "css layout tricks"}))

	s2 := NewStore(appDir, newFakeEmbedder(), nil)
	results, err := s2.Query(ctx, "auth best practices", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "auth docs", results[0])
}

func TestStore_AddDeduplicates(t *testing.T) {
	appDir := t.TempDir()
	ctx := context.Background()
	s := NewStore(appDir, newFakeEmbedder(), nil)

	require.NoError(t, s.Add(ctx, []string{"auth docs"}))
	require.NoError(t, s.Add(ctx, []string{"auth docs", "auth docs"}))

	results, err := s.Query(ctx, "auth docs", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1, "duplicate text must be stored once")
}

func TestStore_QuarantinesCorruptFile(t *testing.T) {
	appDir := t.TempDir()
	ctx := context.Background()
	storePath := filepath.Join(appDir, "index", "store.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(storePath), 0755))
	require.NoError(t, os.WriteFile(storePath, []byte("{{{definitely not yaml"), 0644))

	s := NewStore(appDir, newFakeEmbedder(), nil)
	require.NoError(t, s.Add(ctx, []string{"auth docs"}))

	entries, err := os.ReadDir(filepath.Join(appDir, "quarantine"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".corrupt"))

	// The store works after recovery.
	results, err := s.Query(ctx, "auth docs", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"auth docs"}, results)
}

func TestStore_TopKClamped(t *testing.T) {
	appDir := t.TempDir()
	ctx := context.Background()
	s := NewStore(appDir, newFakeEmbedder(), nil)

	require.NoError(t, s.Add(ctx, []string{"auth docs", "css layout tricks"}))

	results, err := s.Query(ctx, "auth best practices", 50)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosine(nil, []float32{1}))
	assert.Equal(t, 0.0, cosine([]float32{1, 2}, []float32{1}))
	assert.Equal(t, 0.0, cosine([]float32{0, 0}, []float32{0, 0}))
}

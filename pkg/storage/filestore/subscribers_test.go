package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedStore(t *testing.T, path string) (*Store, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return New(path, zap.New(core)), logs
}

// go test -v --run TestLoadSave
func TestLoadSave(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "subscribers.json")
	require.NoError(t, os.WriteFile(path, []byte(`["a@x.com","b@y.com"]`), 0644))

	store := New(path, nil)

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "b@y.com"}, got)

	require.NoError(t, store.Save(ctx, []string{"a@x.com", "b@y.com", "c@z.com"}))

	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "b@y.com", "c@z.com"}, got)
}

func TestLoadAbsentFile(t *testing.T) {
	store, logs := newObservedStore(t, filepath.Join(t.TempDir(), "missing.json"))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
	assert.Equal(t, 1, logs.FilterMessage("subscriber file absent, starting empty").Len())
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subscribers.json")
	require.NoError(t, os.WriteFile(path, []byte(`["a@x.com",`), 0644))
	store, logs := newObservedStore(t, path)

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, logs.FilterMessage("subscriber file corrupt, treating as empty").Len())
	assert.Equal(t, 0, logs.FilterMessage("subscriber file absent, starting empty").Len())
}

func TestLoadWrongShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subscribers.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"emails":["a@x.com"]}`), 0644))

	got, err := New(path, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSaveCreatesDirAndLeavesNoTempFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	path := filepath.Join(dir, "subscribers.json")
	store := New(path, nil)

	require.NoError(t, store.Save(context.Background(), nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSaveFailure(t *testing.T) {
	// the target path is an existing directory, so the rename fails
	path := t.TempDir()
	err := New(path, nil).Save(context.Background(), []string{"a@x.com"})
	assert.ErrorIs(t, err, ErrSave)
}

package configrefresh

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storecfg/internal/logging"
	"storecfg/internal/naming"
	"storecfg/internal/storeconfig"
)

const counterDoc = `
namespace: world
tables:
  Counter: uint32
`

const twoTablesDoc = `
namespace: world
tables:
  Counter: uint32
  Position:
    x: int32
    y: int32
`

const brokenDoc = `
tables:
  Owner:
    schema:
      owner: address
    key: [missing]
`

func testLogger() *logging.Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &logging.Logger{Logger: slog.New(handler)}
}

func writeDoc(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
}

func newTestManager(t *testing.T, contents string, watch bool) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mud.config.yaml")
	writeDoc(t, path, contents)

	m, err := NewManager(context.Background(), Config{
		Path:     path,
		Naming:   naming.DefaultConfig(),
		Logger:   testLogger(),
		Watch:    watch,
		Debounce: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	return m, path
}

func TestBuildSnapshot(t *testing.T) {
	snapshot, err := BuildSnapshot(context.Background(), BuildConfig{
		Source: "inline",
		Data:   []byte(counterDoc),
		Naming: naming.DefaultConfig(),
	})
	require.NoError(t, err)

	assert.Equal(t, Fingerprint([]byte(counterDoc)), snapshot.Fingerprint)
	assert.Equal(t, "inline", snapshot.Source)
	assert.False(t, snapshot.BuiltAt.IsZero())
	_, ok := snapshot.Store.Table("world__Counter")
	assert.True(t, ok)
}

func TestBuildSnapshot_Errors(t *testing.T) {
	_, err := BuildSnapshot(context.Background(), BuildConfig{Source: "broken.yaml", Data: []byte(brokenDoc)})
	require.Error(t, err)
	var keyErr *storeconfig.UnknownKeyFieldError
	assert.True(t, errors.As(err, &keyErr))
	assert.Equal(t, 1, ProblemCount(err))

	_, err = BuildSnapshot(context.Background(), BuildConfig{Source: "empty.yaml", Data: []byte("  \n")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty.yaml")
	assert.Len(t, Problems(err), 1)
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint([]byte(counterDoc)), Fingerprint([]byte(counterDoc)))
	assert.NotEqual(t, Fingerprint([]byte(counterDoc)), Fingerprint([]byte(twoTablesDoc)))
	assert.Len(t, Fingerprint(nil), 64)
}

func TestProblemCount(t *testing.T) {
	assert.Zero(t, ProblemCount(nil))
	assert.Equal(t, 1, ProblemCount(errors.New("boom")))
	assert.Equal(t, 3, ProblemCount(&storeconfig.ResolveError{Errors: []error{
		errors.New("a"), errors.New("b"), errors.New("c"),
	}}))
	assert.Nil(t, Problems(nil))
}

func TestNewManager(t *testing.T) {
	m, _ := newTestManager(t, counterDoc, false)

	snapshot := m.CurrentSnapshot()
	require.NotNil(t, snapshot)
	assert.Len(t, m.Store().Tables, 1)
	assert.NoError(t, m.LastError())
}

func TestNewManager_Errors(t *testing.T) {
	_, err := NewManager(context.Background(), Config{})
	assert.Error(t, err)

	_, err = NewManager(context.Background(), Config{Path: filepath.Join(t.TempDir(), "missing.yaml"), Logger: testLogger()})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	writeDoc(t, path, brokenDoc)
	_, err = NewManager(context.Background(), Config{Path: path, Logger: testLogger()})
	assert.Error(t, err)
}

func TestRefreshNow(t *testing.T) {
	m, path := newTestManager(t, counterDoc, false)
	first := m.CurrentSnapshot()

	changed, err := m.RefreshNow(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Same(t, first, m.CurrentSnapshot(), "unchanged documents keep the snapshot")

	writeDoc(t, path, twoTablesDoc)
	changed, err = m.RefreshNow(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, m.Store().Tables, 2)
	assert.NotEqual(t, first.Fingerprint, m.CurrentSnapshot().Fingerprint)
}

func TestRefreshNow_KeepsPreviousSnapshotOnFailure(t *testing.T) {
	m, path := newTestManager(t, counterDoc, false)
	first := m.CurrentSnapshot()

	writeDoc(t, path, brokenDoc)
	changed, err := m.RefreshNow(context.Background())
	require.Error(t, err)
	assert.False(t, changed)
	assert.Same(t, first, m.CurrentSnapshot())
	assert.Error(t, m.LastError())

	writeDoc(t, path, counterDoc)
	_, err = m.RefreshNow(context.Background())
	require.NoError(t, err)
	assert.NoError(t, m.LastError())
}

func TestStart_WatchDisabled(t *testing.T) {
	m, _ := newTestManager(t, counterDoc, false)
	require.NoError(t, m.Start(context.Background()))
	assert.NoError(t, m.Wait(context.Background()))
}

func TestStart_ReloadsOnChange(t *testing.T) {
	m, path := newTestManager(t, counterDoc, true)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Start(ctx))

	writeDoc(t, path, twoTablesDoc)
	require.Eventually(t, func() bool {
		store := m.Store()
		return store != nil && len(store.Tables) == 2
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	assert.NoError(t, m.Wait(waitCtx))
}

func TestRelevant(t *testing.T) {
	m := &Manager{path: filepath.Clean("/tmp/store/mud.config.yaml")}

	assert.True(t, m.relevant(fsnotify.Event{Name: "/tmp/store/mud.config.yaml", Op: fsnotify.Write}))
	assert.True(t, m.relevant(fsnotify.Event{Name: "/tmp/store/./mud.config.yaml", Op: fsnotify.Create}))
	assert.False(t, m.relevant(fsnotify.Event{Name: "/tmp/store/other.yaml", Op: fsnotify.Write}))
	assert.False(t, m.relevant(fsnotify.Event{Name: "/tmp/store/mud.config.yaml", Op: fsnotify.Chmod}))
}

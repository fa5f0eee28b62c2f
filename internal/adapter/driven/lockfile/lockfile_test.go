package lockfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/diillson/leasing-bi-pipeline/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLock(t *testing.T) *FileLock {
	t.Helper()
	l := New(filepath.Join(t.TempDir(), "state", ".leasing-bi.lock"))
	l.now = func() time.Time { return time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC) }
	return l
}

func TestAcquire_ExclusiveUntilReleased(t *testing.T) {
	l := newTestLock(t)

	release, err := l.Acquire("run-1")
	require.NoError(t, err)
	assert.FileExists(t, l.holderPath())

	_, err = New(l.path).Acquire("run-2")
	require.ErrorIs(t, err, types.ErrLockHeld)
	assert.Contains(t, err.Error(), "run-1")
	assert.Contains(t, err.Error(), "2025-03-05T10:00:00Z")

	require.NoError(t, release())
	require.NoError(t, release())
	assert.NoFileExists(t, l.holderPath())

	release, err = New(l.path).Acquire("run-2")
	require.NoError(t, err)
	require.NoError(t, release())
}

func TestAcquire_LeftoversOfCrashedRunDoNotBlock(t *testing.T) {
	l := newTestLock(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(l.path), 0o755))
	require.NoError(t, os.WriteFile(l.path, nil, 0o644))
	require.NoError(t, os.WriteFile(l.holderPath(), []byte(`{"owner":"crashed","pid":999999}`), 0o644))

	release, err := l.Acquire("run-1")
	require.NoError(t, err)
	h, ok := l.current()
	require.True(t, ok)
	assert.Equal(t, "run-1", h.Owner)
	require.NoError(t, release())
}

func TestAcquire_UnreadableHolder(t *testing.T) {
	l := newTestLock(t)
	release, err := l.Acquire("run-1")
	require.NoError(t, err)
	defer release()
	require.NoError(t, os.WriteFile(l.holderPath(), []byte("garbage"), 0o644))

	_, err = New(l.path).Acquire("run-2")
	assert.ErrorIs(t, err, types.ErrLockHeld)
	assert.Contains(t, err.Error(), l.path)
}

func TestForceRelease(t *testing.T) {
	l := newTestLock(t)
	require.NoError(t, l.ForceRelease(), "nothing to release")

	release, err := l.Acquire("live")
	require.NoError(t, err)
	assert.ErrorIs(t, New(l.path).ForceRelease(), types.ErrLockHeld, "a live holder is never broken")
	require.NoError(t, release())

	require.NoError(t, os.WriteFile(l.holderPath(), []byte(`{"owner":"crashed"}`), 0o644))
	require.NoError(t, l.ForceRelease())
	assert.NoFileExists(t, l.path)
	assert.NoFileExists(t, l.holderPath())

	release, err = l.Acquire("next")
	require.NoError(t, err)
	require.NoError(t, release())
}

package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeInbox(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644))
	}
}

func TestPendingSources_FiltersAndSorts(t *testing.T) {
	inbox := t.TempDir()
	writeInbox(t, inbox, "b_2025-03.yaml", "a_2025-02.csv", "notes.txt", ".hidden.csv", "c.JSON")
	require.NoError(t, os.MkdirAll(filepath.Join(inbox, ProcessedDir), 0o755))

	got, err := PendingSources(inbox)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(inbox, "a_2025-02.csv"),
		filepath.Join(inbox, "b_2025-03.yaml"),
		filepath.Join(inbox, "c.JSON"),
	}, got)

	got, err = PendingSources(filepath.Join(inbox, "missing"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRunOnce(t *testing.T) {
	t.Run("empty inbox skips the job", func(t *testing.T) {
		called := false
		s := NewScheduler("@daily", t.TempDir(), func(context.Context, []string) error {
			called = true
			return nil
		}, zap.NewNop())

		sources, err := s.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Empty(t, sources)
		assert.False(t, called)
	})

	t.Run("success moves files to processed", func(t *testing.T) {
		inbox := t.TempDir()
		writeInbox(t, inbox, "dashboard_2025-03.csv")
		var got []string
		s := NewScheduler("@daily", inbox, func(_ context.Context, sources []string) error {
			got = sources
			return nil
		}, zap.NewNop())

		sources, err := s.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, got, sources)
		assert.NoFileExists(t, filepath.Join(inbox, "dashboard_2025-03.csv"))
		assert.FileExists(t, filepath.Join(inbox, ProcessedDir, "dashboard_2025-03.csv"))
	})

	t.Run("failure leaves files in the inbox", func(t *testing.T) {
		inbox := t.TempDir()
		writeInbox(t, inbox, "dashboard_2025-03.csv")
		s := NewScheduler("@daily", inbox, func(context.Context, []string) error {
			return errors.New("quality violation")
		}, zap.NewNop())

		_, err := s.RunOnce(context.Background())
		require.Error(t, err)
		assert.FileExists(t, filepath.Join(inbox, "dashboard_2025-03.csv"))
	})
}

func TestStart_RejectsBadExpression(t *testing.T) {
	s := NewScheduler("not a cron", t.TempDir(), func(context.Context, []string) error { return nil }, zap.NewNop())
	err := s.Start(context.Background())
	assert.ErrorContains(t, err, "invalid cron expression")
}

func TestStartStop(t *testing.T) {
	s := NewScheduler("0 6 * * *", filepath.Join(t.TempDir(), "inbox"), func(context.Context, []string) error { return nil }, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))
	assert.DirExists(t, s.inbox)
	s.Stop()
	s.Stop()
}

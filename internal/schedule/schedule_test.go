package schedule

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlwaysIsAlwaysDue(t *testing.T) {
	var s Always
	due, err := s.ShouldCheck(time.Now())
	require.NoError(t, err)
	assert.True(t, due)
	assert.NoError(t, s.Checked(time.Now()))
}

func TestFsCacheIsDueOnFirstRun(t *testing.T) {
	s := FsCache{InstallDir: t.TempDir(), Interval: time.Hour}
	due, err := s.ShouldCheck(time.Now())
	require.NoError(t, err)
	assert.True(t, due)
}

func TestFsCacheIsNotDueRightAfterChecking(t *testing.T) {
	s := FsCache{InstallDir: t.TempDir(), Interval: time.Hour}
	now := time.Now()
	require.NoError(t, s.Checked(now))

	due, err := s.ShouldCheck(now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, due)
}

func TestFsCacheIsDueOnceIntervalElapses(t *testing.T) {
	s := FsCache{InstallDir: t.TempDir(), Interval: time.Hour}
	now := time.Now()
	require.NoError(t, s.Checked(now))

	due, err := s.ShouldCheck(now.Add(2 * time.Hour))
	require.NoError(t, err)
	assert.True(t, due)
}

func TestFsCacheTreatsCorruptCktimeAsDue(t *testing.T) {
	dir := t.TempDir()
	s := FsCache{InstallDir: dir, Interval: time.Hour}
	require.NoError(t, os.WriteFile(s.path(), []byte("not-a-timestamp"), 0o644))

	due, err := s.ShouldCheck(time.Now())
	require.NoError(t, err)
	assert.True(t, due)
}

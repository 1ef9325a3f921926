// Package schedule decides whether enough time has passed since the
// last manifest check to justify another one. It generalizes the
// teacher's CheckForUpdatesSchedule/FsCacheCheckForUpdateSchedule pair
// (selfupdate/update_schedule.go, selfupdate/fs_cache_update_schedule.go),
// which gated self-replacing-binary checks behind a cktime file next
// to the executable, to gating patch-manifest checks behind a cktime
// file inside the install directory instead.
package schedule

import (
	"os"
	"path/filepath"
	"time"
)

// Schedule decides whether a manifest check is due and records when
// one happened.
type Schedule interface {
	ShouldCheck(now time.Time) (bool, error)
	Checked(now time.Time) error
}

// Always reports a check is always due. cmd/patchctl's patch command
// uses it when force_check is set.
type Always struct{}

// ShouldCheck implements Schedule.
func (Always) ShouldCheck(time.Time) (bool, error) { return true, nil }

// Checked implements Schedule.
func (Always) Checked(time.Time) error { return nil }

const cktimeFile = ".patchctl-cktime"

// FsCache persists the next-due time in a file under InstallDir,
// mirroring the teacher's cktime convention. cmd/patchctl's patch
// command uses it unless force_check is set, so the manifest endpoint
// is not hit more often than Interval.
type FsCache struct {
	InstallDir string
	Interval   time.Duration
}

func (f FsCache) path() string {
	return filepath.Join(f.InstallDir, cktimeFile)
}

// ShouldCheck implements Schedule. A missing or corrupt cktime file
// counts as due, matching the teacher's behavior on first run.
func (f FsCache) ShouldCheck(now time.Time) (bool, error) {
	raw, err := os.ReadFile(f.path())
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	next, err := time.Parse(time.RFC3339, string(raw))
	if err != nil {
		return true, nil
	}
	return !next.After(now), nil
}

// Checked implements Schedule, recording the next due time as
// now+Interval.
func (f FsCache) Checked(now time.Time) error {
	next := now.Add(f.Interval)
	return os.WriteFile(f.path(), []byte(next.Format(time.RFC3339)), 0o644)
}

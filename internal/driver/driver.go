// Package driver implements UpdateDriver, spec section 4.7's single
// public entry point: validate the install directory, fetch the
// manifest and mirror list, plan, execute, and report one of three
// terminal outcomes.
package driver

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/sanbornm/ttr-patcher/internal/executor"
	"github.com/sanbornm/ttr-patcher/internal/httpfetch"
	"github.com/sanbornm/ttr-patcher/internal/manifest"
	"github.com/sanbornm/ttr-patcher/internal/mirror"
	"github.com/sanbornm/ttr-patcher/internal/patcherr"
	"github.com/sanbornm/ttr-patcher/internal/planner"
)

// Outcome is the terminal result of a Run, spec section 4.7 / 6.
type Outcome int

const (
	Failed Outcome = iota
	OK
	Declined
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Declined:
		return "declined"
	default:
		return "failed"
	}
}

// UISink is the caller-provided collaborator the driver consults for
// install-directory creation consent and action progress. A minimal
// implementation can route ConfirmCreateDir to internal/menu.Confirm
// and the embedded executor.ProgressSink to a terminal progress bar.
type UISink interface {
	executor.ProgressSink
	ConfirmCreateDir(path string) bool
}

// Result carries the outcome plus, on Failed, a human-readable message
// and the filenames that failed (spec section 6's "Exit conditions").
type Result struct {
	Outcome Outcome
	Message string
	Failed  []string
}

// Driver wires the six components together per spec section 2's data
// flow: manifest + mirrors via HttpFetcher, plan via FileActionPlanner,
// execution via PatchExecutor.
type Driver struct {
	Fetcher       httpfetch.Requester
	ContentHost   string
	MirrorsURL    string
	PlatformTag   string
	WorkerCount   int
	RetryCount    int
	RetryInterval time.Duration
	UI            UISink
	Log           zerolog.Logger

	// Executor overrides the real executor.New(...) construction, so
	// tests can substitute a mock Installer. Left nil in production.
	Executor executor.Installer
}

// Run executes the full state machine described in spec section 4.7:
// START -> CHECK_DIR -> FETCH_MANIFEST -> PLAN -> EXECUTE -> DONE.
func (d *Driver) Run(ctx context.Context, installDir, manifestPath string) Result {
	if d.PlatformTag == platformUnsupported() {
		return Result{Outcome: Failed, Message: "unsupported platform"}
	}

	if res, done := d.checkDir(installDir); done {
		return res
	}

	m, err := manifest.Fetch(ctx, d.Fetcher, d.ContentHost, manifestPath)
	if err != nil {
		return Result{Outcome: Failed, Message: err.Error()}
	}

	mirrors, err := d.fetchMirrors(ctx)
	if err != nil {
		return Result{Outcome: Failed, Message: err.Error()}
	}
	pool, err := mirror.New(mirrors)
	if err != nil {
		return Result{Outcome: Failed, Message: err.Error()}
	}

	plan := planner.Plan(installDir, d.PlatformTag, m, d.Log)
	if planner.OnlySkipsOrEmpty(plan) {
		d.Log.Info().Msg("install directory already up to date")
		return Result{Outcome: OK}
	}

	stagingDir, err := os.MkdirTemp(installDir, ".ttrpatch-staging-*")
	if err != nil {
		return Result{Outcome: Failed, Message: fmt.Sprintf("creating staging directory: %v", err)}
	}
	defer os.RemoveAll(stagingDir)

	ex := d.Executor
	if ex == nil {
		ex = executor.New(d.Fetcher, pool, installDir, stagingDir, d.WorkerCount, d.RetryCount, d.RetryInterval, d.UI, d.Log)
	}
	result, err := ex.Execute(ctx, plan)
	if err != nil {
		return Result{Outcome: Failed, Message: err.Error(), Failed: result.Failed}
	}
	return Result{Outcome: OK}
}

func (d *Driver) checkDir(installDir string) (Result, bool) {
	info, err := os.Stat(installDir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return Result{Outcome: Failed, Message: fmt.Sprintf("%s exists and is not a directory", installDir)}, true
		}
		return Result{}, false
	case os.IsNotExist(err):
		if !d.UI.ConfirmCreateDir(installDir) {
			return Result{Outcome: Declined}, true
		}
		if mkErr := os.MkdirAll(installDir, 0o755); mkErr != nil {
			return Result{Outcome: Failed, Message: fmt.Sprintf("creating %s: %v", installDir, mkErr)}, true
		}
		return Result{}, false
	default:
		return Result{Outcome: Failed, Message: err.Error()}, true
	}
}

func (d *Driver) fetchMirrors(ctx context.Context) ([]string, error) {
	var urls []string
	if err := d.Fetcher.GetJSON(ctx, d.MirrorsURL, &urls); err != nil {
		return nil, patcherr.Wrap(patcherr.KindOf(err), fmt.Errorf("fetching mirror list: %w", err))
	}
	return urls, nil
}

// platformUnsupported mirrors internal/platform.Unsupported without
// importing it directly, keeping Driver's platform dependency limited
// to the tag string the caller already resolved.
func platformUnsupported() string { return "unsupported" }

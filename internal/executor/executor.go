// Package executor implements PatchExecutor, spec section 4.6: bounded
// parallel execution of a planned action list, each action running the
// strictly sequential fetch -> verify -> decompress -> verify ->
// install -> (verify) pipeline, with mirror failover and at most one
// in-flight operation per logical filename.
package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sanbornm/ttr-patcher/internal/bsdiff"
	"github.com/sanbornm/ttr-patcher/internal/bzstream"
	"github.com/sanbornm/ttr-patcher/internal/hasher"
	"github.com/sanbornm/ttr-patcher/internal/httpfetch"
	"github.com/sanbornm/ttr-patcher/internal/mirror"
	"github.com/sanbornm/ttr-patcher/internal/patcherr"
	"github.com/sanbornm/ttr-patcher/internal/planner"
)

// ProgressSink receives per-action and per-byte progress callbacks.
// Implementations must be safe for concurrent use: every worker calls
// into the sink.
type ProgressSink interface {
	ActionStarted(filename string, kind planner.ActionKind)
	BytesProgress(filename, phase string, done, total int64)
	ActionDone(filename string, err error)
}

// NopSink discards all progress; useful in tests and for callers that
// don't care.
type NopSink struct{}

func (NopSink) ActionStarted(string, planner.ActionKind)   {}
func (NopSink) BytesProgress(string, string, int64, int64) {}
func (NopSink) ActionDone(string, error)                   {}

// Result is what Execute returns: the names of actions that could not
// be completed, in no particular order.
type Result struct {
	Failed []string
}

//go:generate mockgen -destination=./mocks/installer_mock.go -package=mocks -source=executor.go

// Installer is the subset of *Executor's behavior internal/driver
// depends on, so driver tests can swap in a generated mock Installer
// and exercise the state machine around EXECUTE without running a
// real fetch/verify/install pipeline.
type Installer interface {
	Execute(ctx context.Context, actions []planner.Action) (Result, error)
}

// Executor runs a plan against an install directory using a shared
// mirror pool and staging directory.
type Executor struct {
	Fetcher       httpfetch.Requester
	Mirrors       mirror.Interface
	InstallDir    string
	StagingDir    string
	WorkerCount   int
	RetryCount    int
	RetryInterval time.Duration
	Sink          ProgressSink
	Log           zerolog.Logger
}

var _ Installer = (*Executor)(nil)

// New builds an Executor with sane defaults: WorkerCount defaults to
// runtime.NumCPU() (spec section 5), RetryCount/RetryInterval default
// to the fixed retry(3, 10s) policy (spec section 9) if left zero.
func New(fetcher httpfetch.Requester, mirrors mirror.Interface, installDir, stagingDir string, workerCount, retryCount int, retryInterval time.Duration, sink ProgressSink, log zerolog.Logger) *Executor {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if retryCount <= 0 {
		retryCount = httpfetch.DefaultRetryCount
	}
	if retryInterval <= 0 {
		retryInterval = httpfetch.DefaultRetryInterval
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Executor{
		Fetcher:       fetcher,
		Mirrors:       mirrors,
		InstallDir:    installDir,
		StagingDir:    stagingDir,
		WorkerCount:   workerCount,
		RetryCount:    retryCount,
		RetryInterval: retryInterval,
		Sink:          sink,
		Log:           log,
	}
}

// Execute dispatches every non-Skip action to a bounded worker pool
// (golang.org/x/sync/errgroup's SetLimit, spec section 5's "bounded
// thread pool or equivalent cooperative task set"). Any single
// action's unrecoverable failure does not stop other actions; Execute
// returns a non-nil "update failed" error naming the failing files
// together with the list of failing filenames only if at least one
// action failed, matching spec section 4.6's failure-aggregation rule.
func (ex *Executor) Execute(ctx context.Context, actions []planner.Action) (Result, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ex.WorkerCount)

	var (
		failedMu sync.Mutex
		failed   []string
	)

	for _, action := range actions {
		if action.Kind == planner.Skip {
			continue
		}
		action := action
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			default:
			}

			ex.Sink.ActionStarted(action.Filename, action.Kind)
			err := ex.runActionWithRetry(gctx, action)
			ex.Sink.ActionDone(action.Filename, err)
			if err != nil {
				ex.Log.Error().Str("file", action.Filename).Err(err).Msg("action failed")
				failedMu.Lock()
				failed = append(failed, action.Filename)
				failedMu.Unlock()
			}
			return nil // don't abort the group; other actions keep running
		})
	}

	_ = g.Wait()

	if len(failed) > 0 {
		return Result{Failed: failed}, fmt.Errorf("update failed for %d file(s): %s", len(failed), strings.Join(failed, ", "))
	}
	return Result{}, nil
}

// runActionWithRetry is the outer retry(3, 10s) loop from spec section
// 4.6: on failure it evicts the mirror that was in use and retries the
// whole pipeline, up to RetryCount attempts total.
func (ex *Executor) runActionWithRetry(ctx context.Context, action planner.Action) error {
	var lastErr error
	for attempt := 1; attempt <= ex.RetryCount; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		mirrorBase := ex.Mirrors.Current()
		err := ex.runActionOnce(ctx, action, mirrorBase)
		if err == nil {
			return nil
		}
		lastErr = err

		kind := patcherr.KindOf(err)
		if !patcherr.Retryable(kind) {
			return err
		}

		ex.Mirrors.Evict(mirrorBase)
		if attempt < ex.RetryCount {
			ex.Log.Warn().Str("file", action.Filename).Int("attempt", attempt).Err(err).Msg("retrying action against a different mirror")
			select {
			case <-time.After(ex.RetryInterval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

// runActionOnce executes the strictly sequential pipeline once:
// fetch -> verify compressed -> decompress -> verify decompressed ->
// install -> (verify installed, patch only). Spec section 5: this
// sequence is the sole mechanism preventing a half-verified payload
// from reaching the live install directory.
func (ex *Executor) runActionOnce(ctx context.Context, action planner.Action, mirrorBase string) error {
	compPath, err := ex.stagingPathFor(action.RemotePath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(compPath), 0o755); err != nil {
		return patcherr.WrapFile(patcherr.KindIO, action.Filename, err)
	}
	defer os.Remove(compPath)

	// 1. Fetch.
	if err := ex.fetchToFile(ctx, mirrorBase, action, compPath); err != nil {
		return err
	}

	// 2. Verify compressed.
	compHash, err := hasher.HashFile(compPath)
	if err != nil {
		return patcherr.WrapFile(patcherr.KindIO, action.Filename, err)
	}
	if compHash != action.CompHash {
		return patcherr.WrapFile(patcherr.KindHashMismatch, action.Filename, fmt.Errorf("compressed hash mismatch"))
	}

	// 3. Decompress.
	decompPath := compPath + ".decomp"
	defer os.Remove(decompPath)
	if err := ex.decompress(action, compPath, decompPath); err != nil {
		return err
	}

	// 4. Verify decompressed.
	decompHash, err := hasher.HashFile(decompPath)
	if err != nil {
		return patcherr.WrapFile(patcherr.KindIO, action.Filename, err)
	}
	if decompHash != action.DecompHash {
		return patcherr.WrapFile(patcherr.KindHashMismatch, action.Filename, fmt.Errorf("decompressed hash mismatch"))
	}

	// 5 (+6). Install.
	switch action.Kind {
	case planner.FullDownload:
		return ex.installFull(action, decompPath)
	case planner.PatchDownload:
		return ex.installPatch(action, decompPath)
	default:
		return patcherr.WrapFile(patcherr.KindIO, action.Filename, fmt.Errorf("unexpected action kind %v", action.Kind))
	}
}

func (ex *Executor) fetchToFile(ctx context.Context, mirrorBase string, action planner.Action, destPath string) error {
	url := joinMirror(mirrorBase, action.RemotePath)
	stream, err := ex.Fetcher.GetStream(ctx, url)
	if err != nil {
		return patcherr.WrapFile(patcherr.KindNetwork, action.Filename, err)
	}
	defer stream.Body.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return patcherr.WrapFile(patcherr.KindIO, action.Filename, err)
	}
	defer out.Close()

	buf := make([]byte, hasher.ChunkSize)
	var done int64
	for {
		n, rerr := stream.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return patcherr.WrapFile(patcherr.KindIO, action.Filename, werr)
			}
			done += int64(n)
			ex.Sink.BytesProgress(action.Filename, "fetch", done, stream.SizeHint)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return patcherr.WrapFile(patcherr.KindNetwork, action.Filename, rerr)
		}
	}
	return nil
}

func (ex *Executor) decompress(action planner.Action, compPath, decompPath string) error {
	src, err := os.Open(compPath)
	if err != nil {
		return patcherr.WrapFile(patcherr.KindIO, action.Filename, err)
	}
	defer src.Close()

	dst, err := os.Create(decompPath)
	if err != nil {
		return patcherr.WrapFile(patcherr.KindIO, action.Filename, err)
	}
	defer dst.Close()

	_, err = bzstream.Decompress(dst, src, func(n int64) {
		ex.Sink.BytesProgress(action.Filename, "decompress", n, -1)
	})
	if err != nil {
		if e, ok := err.(*patcherr.Error); ok {
			e.File = action.Filename
			return e
		}
		return patcherr.WrapFile(patcherr.KindCorruptArchive, action.Filename, err)
	}
	return nil
}

// installFull atomically renames the verified decompressed payload
// into place (spec section 4.6 step 5, FullDownload branch).
func (ex *Executor) installFull(action planner.Action, decompPath string) error {
	finalPath := filepath.Join(ex.InstallDir, action.Filename)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return patcherr.WrapFile(patcherr.KindIO, action.Filename, err)
	}
	if err := os.Rename(decompPath, finalPath); err != nil {
		return patcherr.WrapFile(patcherr.KindIO, action.Filename, err)
	}
	return nil
}

// installPatch applies the bsdiff-4 delta to a fresh staging copy,
// verifies the post-patch hash, then renames over the live file (spec
// section 9's chosen resolution to the patch-atomicity open question:
// apply-to-copy-then-rename rather than in place). A hash mismatch
// here is a corruption failure; the live file is left untouched and
// the next planner pass will see the stale hash and plan a fresh
// FullDownload (spec section 4.6 step 6).
func (ex *Executor) installPatch(action planner.Action, decompPatchPath string) error {
	finalPath := filepath.Join(ex.InstallDir, action.Filename)

	patchFile, err := os.Open(decompPatchPath)
	if err != nil {
		return patcherr.WrapFile(patcherr.KindIO, action.Filename, err)
	}
	defer patchFile.Close()

	patchedPath := decompPatchPath + ".patched"
	defer os.Remove(patchedPath)

	if err := bsdiff.Apply(finalPath, patchFile, patchedPath); err != nil {
		return patcherr.WrapFile(patcherr.KindOf(err), action.Filename, err)
	}

	postHash, err := hasher.HashFile(patchedPath)
	if err != nil {
		return patcherr.WrapFile(patcherr.KindIO, action.Filename, err)
	}
	if postHash != action.PostPatchHash {
		// Leave the installed file as-is; don't rename over it.
		return patcherr.WrapFile(patcherr.KindHashMismatch, action.Filename, fmt.Errorf("post-patch hash mismatch"))
	}

	if err := os.Rename(patchedPath, finalPath); err != nil {
		return patcherr.WrapFile(patcherr.KindIO, action.Filename, err)
	}
	return nil
}

// stagingPathFor maps a manifest remote_path into a unique location
// under the staging directory, partitioned per action so no two
// workers ever write the same path (spec section 5).
func (ex *Executor) stagingPathFor(remotePath string) (string, error) {
	clean := strings.TrimPrefix(remotePath, "/")
	if clean == "" {
		return "", patcherr.New(patcherr.KindIO, "empty remote path")
	}
	return filepath.Join(ex.StagingDir, clean), nil
}

func joinMirror(base, remotePath string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(remotePath, "/")
}

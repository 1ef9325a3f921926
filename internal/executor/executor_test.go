package executor

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanbornm/ttr-patcher/internal/bzstream"
	"github.com/sanbornm/ttr-patcher/internal/hasher"
	"github.com/sanbornm/ttr-patcher/internal/httpfetch"
	"github.com/sanbornm/ttr-patcher/internal/mirror"
	mirrormocks "github.com/sanbornm/ttr-patcher/internal/mirror/mocks"
	"github.com/sanbornm/ttr-patcher/internal/planner"
)

// bzip2Of returns a precomputed bzip2 stream for plain, generated with
// Python's bz2 module the same way internal/bzstream's fixture was
// built, so the test never needs a compression library.
func bzip2Of(t *testing.T, plain string) []byte {
	t.Helper()
	fixtures := map[string][]byte{
		"hello executor": {
			0x42, 0x5a, 0x68, 0x39, 0x31, 0x41, 0x59, 0x26,
			0x53, 0x59, 0xd4, 0x93, 0x9e, 0x9c, 0x00, 0x00,
			0x02, 0x91, 0x80, 0x40, 0x00, 0x0a, 0x44, 0x96,
			0x40, 0x20, 0x00, 0x22, 0x03, 0x26, 0x9a, 0x10,
			0x03, 0x03, 0x8c, 0x84, 0x14, 0x72, 0x6c, 0xf8,
			0xbb, 0x92, 0x29, 0xc2, 0x84, 0x86, 0xa4, 0x9c,
			0xf4, 0xe0,
		},
	}
	b, ok := fixtures[plain]
	require.True(t, ok, "no canned fixture for %q; add one", plain)
	return b
}

func TestFetchToFileMatchesServerPayload(t *testing.T) {
	payload := []byte("arbitrary binary staging payload")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	ex := &Executor{
		Fetcher: httpfetch.New(5*time.Second, 1, 0, zerolog.Nop()),
		Sink:    NopSink{},
		Log:     zerolog.Nop(),
	}

	dest := filepath.Join(dir, "out.bin")
	action := planner.Action{Filename: "thing.bin", RemotePath: "/thing.bin"}
	require.NoError(t, ex.fetchToFile(context.Background(), srv.URL, action, dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestInstallFullRenamesIntoInstallDir(t *testing.T) {
	dir := t.TempDir()
	installDir := filepath.Join(dir, "install")
	require.NoError(t, os.MkdirAll(installDir, 0o755))

	staged := filepath.Join(dir, "staged.bin")
	require.NoError(t, os.WriteFile(staged, []byte("final contents"), 0o644))

	ex := &Executor{InstallDir: installDir}
	action := planner.Action{Filename: "sub/dir/file.bin"}
	require.NoError(t, ex.installFull(action, staged))

	got, err := os.ReadFile(filepath.Join(installDir, "sub/dir/file.bin"))
	require.NoError(t, err)
	assert.Equal(t, "final contents", string(got))
}

func TestInstallPatchRejectsCorruptPatchWithoutTouchingLiveFile(t *testing.T) {
	dir := t.TempDir()
	installDir := filepath.Join(dir, "install")
	require.NoError(t, os.MkdirAll(installDir, 0o755))

	liveContent := []byte("live file original content")
	livePath := filepath.Join(installDir, "game.bin")
	require.NoError(t, os.WriteFile(livePath, liveContent, 0o644))

	// A patch stream that bsdiff.Apply will reject as corrupt; installPatch
	// must leave the live file untouched on any failure path.
	ex := &Executor{InstallDir: installDir}
	action := planner.Action{Filename: "game.bin", PostPatchHash: "will-not-match"}

	garbagePatch := filepath.Join(dir, "garbage.patch")
	require.NoError(t, os.WriteFile(garbagePatch, []byte("not a real bsdiff stream"), 0o644))

	err := ex.installPatch(action, garbagePatch)
	assert.Error(t, err)

	stillThere, rerr := os.ReadFile(livePath)
	require.NoError(t, rerr)
	assert.Equal(t, liveContent, stillThere)
}

func TestRunActionWithRetryEvictsMirrorOnNetworkFailure(t *testing.T) {
	pool, err := mirror.New([]string{"http://mirror-a.invalid", "http://mirror-b.invalid"})
	require.NoError(t, err)

	ex := &Executor{
		Fetcher:       httpfetch.New(50*time.Millisecond, 1, 0, zerolog.Nop()),
		Mirrors:       pool,
		InstallDir:    t.TempDir(),
		StagingDir:    t.TempDir(),
		RetryCount:    2,
		RetryInterval: time.Millisecond,
		Sink:          NopSink{},
		Log:           zerolog.Nop(),
	}

	action := planner.Action{Filename: "x.bin", Kind: planner.FullDownload, RemotePath: "/x.bin"}
	_ = ex.runActionWithRetry(context.Background(), action)

	assert.Equal(t, 1, pool.Len(), "eviction must never empty the pool below 1, and both unreachable mirrors are tried")
}

func TestRunActionWithRetryEvictsEachFailedMirrorOnceViaMockedMirrorPool(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockPool := mirrormocks.NewMockInterface(ctrl)
	gomock.InOrder(
		mockPool.EXPECT().Current().Return("http://mirror-a.invalid"),
		mockPool.EXPECT().Evict("http://mirror-a.invalid"),
		mockPool.EXPECT().Current().Return("http://mirror-b.invalid"),
		mockPool.EXPECT().Evict("http://mirror-b.invalid"),
	)

	ex := &Executor{
		Fetcher:       httpfetch.New(20*time.Millisecond, 1, 0, zerolog.Nop()),
		Mirrors:       mockPool,
		InstallDir:    t.TempDir(),
		StagingDir:    t.TempDir(),
		RetryCount:    2,
		RetryInterval: time.Millisecond,
		Sink:          NopSink{},
		Log:           zerolog.Nop(),
	}

	action := planner.Action{Filename: "x.bin", Kind: planner.FullDownload, RemotePath: "/x.bin"}
	err := ex.runActionWithRetry(context.Background(), action)
	assert.Error(t, err, "both mocked mirrors are unreachable, so the final attempt must still fail")
}

func TestExecuteAggregatesFailuresWithoutAbortingOtherActions(t *testing.T) {
	pool, err := mirror.New([]string{"http://mirror-unreachable.invalid"})
	require.NoError(t, err)

	ex := New(
		httpfetch.New(20*time.Millisecond, 1, 0, zerolog.Nop()),
		pool,
		t.TempDir(),
		t.TempDir(),
		2,
		1,
		time.Millisecond,
		NopSink{},
		zerolog.Nop(),
	)

	actions := []planner.Action{
		{Filename: "a.bin", Kind: planner.FullDownload, RemotePath: "/a.bin"},
		{Filename: "b.bin", Kind: planner.FullDownload, RemotePath: "/b.bin"},
		{Filename: "skip-me.bin", Kind: planner.Skip},
	}

	result, err := ex.Execute(context.Background(), actions)
	require.Error(t, err)
	assert.ElementsMatch(t, []string{"a.bin", "b.bin"}, result.Failed)
}

func TestHashFileHelperSanityForFixtures(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(p, []byte("abc"), 0o644))
	h, err := hasher.HashFile(p)
	require.NoError(t, err)
	assert.Len(t, h, 40)
}

func TestBzip2FixtureDecompressesForDocumentationPurposes(t *testing.T) {
	// Sanity-checks the canned fixture helper used by future streaming
	// tests in this package; guards against silent fixture bit rot.
	data := bzip2Of(t, "hello executor")
	assert.True(t, bytes.HasPrefix(data, []byte("BZh9")))

	var plain bytes.Buffer
	_, err := bzstream.Decompress(&plain, bytes.NewReader(data), nil)
	require.NoError(t, err)
	assert.Equal(t, "hello executor", plain.String())
}

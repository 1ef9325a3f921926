package driver

import (
	"context"
	"encoding/json"
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

	"github.com/sanbornm/ttr-patcher/internal/executor"
	executormocks "github.com/sanbornm/ttr-patcher/internal/executor/mocks"
	"github.com/sanbornm/ttr-patcher/internal/hasher"
	"github.com/sanbornm/ttr-patcher/internal/httpfetch"
	"github.com/sanbornm/ttr-patcher/internal/planner"
)

type fakeUI struct {
	confirm bool
	executor.NopSink
}

func (f fakeUI) ConfirmCreateDir(string) bool { return f.confirm }

func TestRunDeclinedWhenUserRefusesToCreateInstallDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist-yet")
	d := &Driver{
		UI:          fakeUI{confirm: false},
		Log:         zerolog.Nop(),
		PlatformTag: "linux",
	}
	res := d.Run(context.Background(), dir, "patchmanifest")
	assert.Equal(t, Declined, res.Outcome)
}

func TestRunFailsImmediatelyOnUnsupportedPlatform(t *testing.T) {
	d := &Driver{UI: fakeUI{confirm: true}, Log: zerolog.Nop(), PlatformTag: "unsupported"}
	res := d.Run(context.Background(), t.TempDir(), "patchmanifest")
	assert.Equal(t, Failed, res.Outcome)
}

func TestRunUpToDateShortCircuitsToOKWithoutFetchingPayloads(t *testing.T) {
	dir := t.TempDir()
	content := []byte("already installed contents")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "game.bin"), content, 0o644))
	h, err := hasher.HashFile(filepath.Join(dir, "game.bin"))
	require.NoError(t, err)

	manifestBody := map[string]any{
		"game.bin": map[string]any{
			"platforms":      []string{"linux"},
			"target_hash":    h,
			"full_dl":        "/payloads/game.bz2",
			"full_comp_hash": "irrelevant-because-up-to-date",
		},
	}
	manifestJSON, err := json.Marshal(manifestBody)
	require.NoError(t, err)

	payloadRequested := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/patchmanifest.txt":
			w.Write(manifestJSON)
		case "/api/mirrors":
			json.NewEncoder(w).Encode([]string{"http://unused.invalid"})
		default:
			payloadRequested = true
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	d := &Driver{
		Fetcher:     httpfetch.New(5*time.Second, 1, 0, zerolog.Nop()),
		ContentHost: srv.URL,
		MirrorsURL:  srv.URL + "/api/mirrors",
		PlatformTag: "linux",
		WorkerCount: 1,
		UI:          fakeUI{confirm: true},
		Log:         zerolog.Nop(),
	}

	res := d.Run(context.Background(), dir, "patchmanifest")
	assert.Equal(t, OK, res.Outcome)
	assert.False(t, payloadRequested, "up-to-date file must not trigger any payload fetch")
}

func TestRunDelegatesOutOfDateFileToInjectedExecutor(t *testing.T) {
	dir := t.TempDir()

	manifestBody := map[string]any{
		"game.bin": map[string]any{
			"platforms":      []string{"linux"},
			"target_hash":    "0123456789abcdef0123456789abcdef01234567",
			"full_dl":        "/payloads/game.bz2",
			"full_comp_hash": "comphash",
		},
	}
	manifestJSON, err := json.Marshal(manifestBody)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/patchmanifest.txt":
			w.Write(manifestJSON)
		case "/api/mirrors":
			json.NewEncoder(w).Encode([]string{"http://unused.invalid"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockInstaller := executormocks.NewMockInstaller(ctrl)
	mockInstaller.EXPECT().
		Execute(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, actions []planner.Action) (executor.Result, error) {
			require.Len(t, actions, 1)
			assert.Equal(t, "game.bin", actions[0].Filename)
			assert.Equal(t, planner.FullDownload, actions[0].Kind)
			return executor.Result{}, nil
		})

	d := &Driver{
		Fetcher:     httpfetch.New(5*time.Second, 1, 0, zerolog.Nop()),
		ContentHost: srv.URL,
		MirrorsURL:  srv.URL + "/api/mirrors",
		PlatformTag: "linux",
		WorkerCount: 1,
		UI:          fakeUI{confirm: true},
		Log:         zerolog.Nop(),
		Executor:    mockInstaller,
	}

	res := d.Run(context.Background(), dir, "patchmanifest")
	assert.Equal(t, OK, res.Outcome)
}

package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBoundFlags(args []string) (*viper.Viper, error) {
	v := viper.New()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs, v)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return v, v.BindPFlags(fs)
}

func TestLoadAppliesDefaultsWhenNothingProvided(t *testing.T) {
	v, err := newBoundFlags(nil)
	require.NoError(t, err)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, DefaultContentHost, cfg.ContentHost)
	assert.Equal(t, DefaultMirrorsURL, cfg.MirrorsURL)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, DefaultRetryCount, cfg.RetryCount)
	assert.Equal(t, DefaultRetryInterval, cfg.RetryInterval)
	assert.Equal(t, "patchmanifest", cfg.ManifestPath)
	assert.False(t, cfg.Debug)
	assert.Equal(t, DefaultCheckInterval, cfg.CheckInterval)
	assert.False(t, cfg.ForceCheck)
}

func TestLoadFlagOverridesDefault(t *testing.T) {
	v, err := newBoundFlags([]string{"--install-dir=/games/ttr", "--debug", "--worker-count=4"})
	require.NoError(t, err)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "/games/ttr", cfg.InstallDir)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 4, cfg.WorkerCount)
}

func TestLoadEnvOverridesDefaultViaPrefix(t *testing.T) {
	t.Setenv("TTRPATCH_INSTALL_DIR", "/from/env")
	t.Setenv("TTRPATCH_RETRY_COUNT", "7")

	v, err := newBoundFlags(nil)
	require.NoError(t, err)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "/from/env", cfg.InstallDir)
	assert.Equal(t, 7, cfg.RetryCount)
}

func TestLoadRejectsNonsenseDurationsByFallingBackToDefaults(t *testing.T) {
	v, err := newBoundFlags([]string{"--request-timeout=0s", "--retry-interval=0s"})
	require.NoError(t, err)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, time.Duration(0) != cfg.RetryInterval, true)
}

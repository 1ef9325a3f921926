package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sanbornm/ttr-patcher/internal/config"
	"github.com/sanbornm/ttr-patcher/internal/driver"
	"github.com/sanbornm/ttr-patcher/internal/httpfetch"
	"github.com/sanbornm/ttr-patcher/internal/logging"
	"github.com/sanbornm/ttr-patcher/internal/platform"
	"github.com/sanbornm/ttr-patcher/internal/schedule"
)

func newPatchCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patch",
		Short: "Reconcile the install directory against the remote manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			if cfg.InstallDir == "" {
				return fmt.Errorf("--install-dir is required")
			}

			log := logging.New(cfg.Debug, cmd.OutOrStdout())
			tag := platform.Current()

			sched := schedulerFor(cfg)
			now := time.Now()
			due, err := sched.ShouldCheck(now)
			if err != nil {
				return err
			}
			if !due {
				fmt.Fprintln(cmd.OutOrStdout(), "skipping: checked recently, use --force-check to override")
				return nil
			}

			d := &driver.Driver{
				Fetcher:       httpfetch.New(cfg.RequestTimeout, cfg.RetryCount, cfg.RetryInterval, log),
				ContentHost:   cfg.ContentHost,
				MirrorsURL:    cfg.MirrorsURL,
				PlatformTag:   tag,
				WorkerCount:   cfg.WorkerCount,
				RetryCount:    cfg.RetryCount,
				RetryInterval: cfg.RetryInterval,
				UI:            termUI{},
				Log:           log,
			}

			result := d.Run(cmd.Context(), cfg.InstallDir, cfg.ManifestPath)
			switch result.Outcome {
			case driver.OK:
				if err := sched.Checked(now); err != nil {
					log.Warn().Err(err).Msg("failed to record check time")
				}
				fmt.Fprintln(cmd.OutOrStdout(), "patch complete")
				return nil
			case driver.Declined:
				fmt.Fprintln(cmd.OutOrStdout(), "install directory creation declined")
				return nil
			default:
				return fmt.Errorf("patch failed: %s", result.Message)
			}
		},
	}
	return cmd
}

// schedulerFor picks the check-gating policy: --force-check always
// wins (mirroring the teacher's Updater.ForceCheck), otherwise an
// fs-backed cache under the install directory gates checks to once
// per CheckInterval.
func schedulerFor(cfg config.Config) schedule.Schedule {
	if cfg.ForceCheck {
		return schedule.Always{}
	}
	return schedule.FsCache{InstallDir: cfg.InstallDir, Interval: cfg.CheckInterval}
}

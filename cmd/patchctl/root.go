package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sanbornm/ttr-patcher/internal/config"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "patchctl",
		Short:         "Patch and launch a Toontown Rewritten-style installation",
		SilenceErrors: false,
		SilenceUsage:  true,
		Version:       version,
	}

	config.BindFlags(cmd.PersistentFlags(), v)

	cmd.AddCommand(
		newPatchCmd(v),
		newLoginCmd(v),
		newPlayCmd(v),
		newGenpatchCmd(),
	)

	return cmd
}

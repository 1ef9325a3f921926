package main

import (
	"bufio"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sanbornm/ttr-patcher/internal/auth"
	"github.com/sanbornm/ttr-patcher/internal/config"
	"github.com/sanbornm/ttr-patcher/internal/httpfetch"
	"github.com/sanbornm/ttr-patcher/internal/launcher"
	"github.com/sanbornm/ttr-patcher/internal/platform"
)

// newPlayCmd wires login followed by launching the game engine
// executable, the Go equivalent of original_source/launch_ttr.py's
// login_worker -> start_game chain (spec.md section 1's "spawning and
// detaching", kept explicitly in scope).
func newPlayCmd(v *viper.Viper) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Log in and launch the game, skipping any patch check",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			if cfg.InstallDir == "" {
				return fmt.Errorf("--install-dir is required")
			}

			reader := bufio.NewReader(cmd.InOrStdin())
			if username == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Enter username: ")
				username, _ = reader.ReadString('\n')
				username = trimNewline(username)
			}
			fmt.Fprint(cmd.OutOrStdout(), "Enter password: ")
			passwordLine, _ := reader.ReadString('\n')
			password := trimNewline(passwordLine)

			fetcher := httpfetch.New(cfg.RequestTimeout, cfg.RetryCount, cfg.RetryInterval, zerolog.Nop())
			client := auth.New(fetcher)

			resp, err := client.Login(cmd.Context(), username, password, func(banner string) string {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\nEnter token: ", banner)
				token, _ := reader.ReadString('\n')
				return trimNewline(token)
			})
			if err != nil {
				return err
			}

			tag := platform.Current()
			proc, err := launcher.Launch(cfg.InstallDir, tag, launcher.Env{
				GameServer: resp.GameServer,
				PlayCookie: resp.Cookie,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "launched game process (pid %d)\n", proc.Pid)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "account username (prompted if omitted)")
	return cmd
}

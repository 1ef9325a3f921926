package main

import (
	"bufio"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sanbornm/ttr-patcher/internal/auth"
	"github.com/sanbornm/ttr-patcher/internal/config"
	"github.com/sanbornm/ttr-patcher/internal/credentials"
	"github.com/sanbornm/ttr-patcher/internal/httpfetch"
)

func newLoginCmd(v *viper.Viper) *cobra.Command {
	var username string
	var saveAccount bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate against the Toontown Rewritten login API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
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
			fmt.Fprintf(cmd.OutOrStdout(), "login successful; game server %s\n", resp.GameServer)

			if saveAccount {
				if err := persistAccount(cfg.InstallDir, username, password); err != nil {
					return fmt.Errorf("saving account: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "account username (prompted if omitted)")
	cmd.Flags().BoolVar(&saveAccount, "save", false, "store the account in the credential store")
	return cmd
}

func persistAccount(installDir, username, password string) error {
	store, err := credentials.Open(filepath.Join(installDir, "login.json"))
	if err != nil {
		return err
	}
	settings, err := store.Load()
	if err != nil {
		return err
	}
	settings.Accounts[fmt.Sprintf("account%d", len(settings.Accounts)+1)] = credentials.Account{
		Username: username,
		Password: password,
	}
	return store.Save(settings)
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

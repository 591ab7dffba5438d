package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"keplerhub/internal/auth"
)

func newHashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key [key]",
		Short: "Print the bcrypt hash of an admin key",
		Long: `Reads the key from the argument or, when absent, the first line of stdin.
Put the output in auth.admin_key_hash or KEPLERHUB_ADMIN_KEY_HASH.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no key on stdin")
				}
				key = strings.TrimRight(line, "\r\n")
			}

			hash, err := auth.HashKey(key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newTokenCmd(app *App) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an admin token with the configured JWT secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.config()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Auth.JWTDuration
			}
			ts := auth.TokenService{
				Secret:   []byte(cfg.Auth.JWTSecret),
				Issuer:   cfg.Auth.JWTIssuer,
				Duration: ttl,
			}
			token, _, err := ts.Sign(auth.RoleAdmin, auth.RoleAdmin)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to the configured jwt_ttl)")
	return cmd
}

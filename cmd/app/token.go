package main

import (
	"fmt"
	"time"

	"slotbook/internal/auth"
	"slotbook/internal/config"

	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		operator string
		ttl      time.Duration
		refresh  bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin access token for the back-office API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if refresh {
				access, refreshToken, err := auth.GenerateTokens(operator, auth.RoleAdmin, cfg.JWTSecret, cfg.JWTSecret)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "access:  %s\nrefresh: %s\n", access, refreshToken)
				return nil
			}

			token, err := auth.GenerateAccessTokenTTL(operator, auth.RoleAdmin, cfg.JWTSecret, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&operator, "operator", "", "name of the operator the token is issued to")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.AccessTokenTTL, "token lifetime")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "also issue a refresh token (ignores --ttl)")
	_ = cmd.MarkFlagRequired("operator")
	return cmd
}

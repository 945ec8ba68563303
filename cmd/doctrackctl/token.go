package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "doctrack/internal/jwt_token"
	"doctrack/pkg/requestcontext"
)

func newTokenCmd(e env) *cobra.Command {
	var (
		id  requestcontext.Identity
		ttl time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an actor (development and testing)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := e.loadConfig()
			if err != nil {
				return err
			}
			tokens := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
			token, err := tokens.GenerateActorToken(id, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&id.Name, "name", "", "acting person")
	cmd.Flags().StringVar(&id.Department, "department", "", "acting department")
	cmd.Flags().StringVar(&id.Role, "role", "staff", "role: staff, editor or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("department")
	return cmd
}

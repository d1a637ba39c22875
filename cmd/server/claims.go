package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	rediscache "opsauth/internal/adapters/cache/redis"
	pgrepo "opsauth/internal/adapters/db/postgres"
	"opsauth/internal/config"
	domainauth "opsauth/internal/domain/auth"
)

func claimsCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claims",
		Short: "Manage the roles and permissions of an identity",
	}
	cmd.AddCommand(claimsGetCmd(load), claimsSetCmd(load))
	return cmd
}

func claimsGetCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "get <uid>",
		Short: "Print an identity and its custom claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			directory, closeDirectory, err := openAdminDirectory(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeDirectory()

			identity, err := directory.GetIdentity(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(identity, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func claimsSetCmd(load configLoader) *cobra.Command {
	var (
		email       string
		roles       []string
		permissions []string
	)

	cmd := &cobra.Command{
		Use:   "set <uid>",
		Short: "Replace the roles and permissions of an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			directory, closeDirectory, err := openAdminDirectory(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeDirectory()

			uid := args[0]
			claims := map[string]any{
				"roles":       nonNil(roles),
				"permissions": nonNil(permissions),
			}
			if err := directory.SetCustomClaims(cmd.Context(), uid, email, claims); err != nil {
				return err
			}
			if err := invalidateCachedClaims(cmd.Context(), cfg, directory, uid); err != nil {
				log.Warn().Err(err).Str("uid", uid).Msg("failed to evict cached claims, stale values expire with the cache TTL")
			}
			log.Info().Str("uid", uid).Strs("roles", roles).Strs("permissions", permissions).Msg("Custom claims updated")
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email recorded for a new identity")
	cmd.Flags().StringSliceVar(&roles, "roles", nil, "Roles, comma separated")
	cmd.Flags().StringSliceVar(&permissions, "permissions", nil, "Permissions, comma separated")

	return cmd
}

// openAdminDirectory opens the Postgres directory; the in-memory one does not outlive the command
func openAdminDirectory(ctx context.Context, cfg *config.Config) (domainauth.IdentityAdmin, func(), error) {
	if !cfg.Database.Enabled {
		return nil, nil, errors.New("DB_ENABLED must be true to manage identities")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	pool, err := pgrepo.NewPool(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	return pgrepo.NewIdentityDirectory(pool), pool.Close, nil
}

func invalidateCachedClaims(ctx context.Context, cfg *config.Config, directory domainauth.IdentityDirectory, uid string) error {
	if !cfg.Redis.Enabled {
		return nil
	}
	client, err := rediscache.NewClient(ctx, rediscache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()
	return rediscache.NewClaimsCache(directory, client, cfg.Redis.ClaimsTTL).Invalidate(ctx, uid)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

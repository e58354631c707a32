package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/meli-harvester/internal/meli"
	"github.com/donaldgifford/meli-harvester/pkg/logger"
)

const authTimeout = 30 * time.Second

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Inspect and refresh marketplace credentials",
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that the configured credentials can authenticate",
	RunE:  runAuthStatus,
}

var authRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Exchange the refresh token for a new access token",
	RunE:  runAuthRefresh,
}

func init() {
	authCmd.AddCommand(authStatusCmd, authRefreshCmd)
	rootCmd.AddCommand(authCmd)
}

// authSession builds only the token manager and an API client over it,
// plus Redis when tokens are persisted there.
func authSession(cmd *cobra.Command) (*app, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	log := newLogger(cfg)

	a := &app{cfg: cfg, log: log}
	rdb, err := a.openRedis(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if cerr := a.Close(); cerr != nil {
			log.Warn("closing components", "error", cerr)
		}
	}
	a.tokens = newTokenManager(cfg, rdb, log)
	a.client = newMarketplaceClient(cfg, a.tokens, nil, log)
	return a, closeFn, nil
}

func runAuthStatus(cmd *cobra.Command, _ []string) error {
	a, closeFn, err := authSession(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(cmd.Context(), authTimeout)
	defer cancel()

	status := a.client.CheckStatus(ctx)
	out := struct {
		Identity meli.AuthStatus `json:"identity"`
		Token    meli.TokenInfo  `json:"token"`
	}{Identity: status, Token: a.tokens.Info()}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("writing status: %w", err)
	}
	if !status.Authenticated {
		return &ExitError{Code: ExitFailed}
	}
	return nil
}

func runAuthRefresh(cmd *cobra.Command, _ []string) error {
	a, closeFn, err := authSession(cmd)
	if err != nil {
		return err
	}
	defer closeFn()
	tokens := a.tokens

	ctx, cancel := context.WithTimeout(cmd.Context(), authTimeout)
	defer cancel()

	token, err := tokens.Refresh(ctx)
	if err != nil {
		if errors.Is(err, meli.ErrAuthExpired) {
			return fmt.Errorf("refresh token expired, re-authorize the application: %w", err)
		}
		return fmt.Errorf("refreshing token: %w", err)
	}

	info := tokens.Info()
	fmt.Fprintf(cmd.OutOrStdout(), "token refreshed: %s", logger.Preview(token))
	if info.ExpiresAt != nil {
		fmt.Fprintf(cmd.OutOrStdout(), " (expires %s)", info.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}

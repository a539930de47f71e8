package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/JGibbsWork/lifestack/internal/auth"
	"github.com/JGibbsWork/lifestack/internal/config"
)

var authorizeCode string

var authorizeCmd = &cobra.Command{
	Use:   "authorize",
	Short: "Authorize an upstream service",
}

var authorizeStravaCmd = &cobra.Command{
	Use:   "strava",
	Short: "Exchange a Strava authorization code for tokens",
	Long: `Exchange a one-time authorization code for an access/refresh token pair
and write it to the token file. Obtain the code by visiting the Strava
OAuth consent page in a browser; the code appears in the redirect URL.`,
	RunE: runAuthorizeStrava,
}

func init() {
	authorizeStravaCmd.Flags().StringVar(&authorizeCode, "code", "", "authorization code from the OAuth redirect")
	authorizeStravaCmd.MarkFlagRequired("code")
	authorizeStravaCmd.Flags().StringVar(&configPath, "config", defaultConfigPath(), "path to config file")
	authorizeCmd.AddCommand(authorizeStravaCmd)
}

func runAuthorizeStrava(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Strava.ClientID == "" || cfg.Strava.ClientSecret == "" {
		return fmt.Errorf("strava client_id and client_secret must be configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	oauth := auth.NewStravaOAuth(cfg.Strava.ClientID, cfg.Strava.ClientSecret)
	rec, err := oauth.Exchange(ctx, authorizeCode)
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}

	tokenPath := cfg.Auth.TokenPath
	if tokenPath == "" {
		tokenPath, err = auth.DefaultTokenPath()
		if err != nil {
			return fmt.Errorf("resolve token path: %w", err)
		}
	}
	if err := auth.NewFileStore(tokenPath).Save(rec); err != nil {
		return fmt.Errorf("save token: %w", err)
	}

	fmt.Fprintf(os.Stderr, "authorized: token written to %s (expires %s)\n",
		tokenPath, rec.ExpiresAt.Format(time.RFC3339))
	return nil
}

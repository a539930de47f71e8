package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/JGibbsWork/lifestack/internal/auth"
	"github.com/JGibbsWork/lifestack/internal/cache"
	"github.com/JGibbsWork/lifestack/internal/config"
	"github.com/JGibbsWork/lifestack/internal/engine"
	"github.com/JGibbsWork/lifestack/internal/guard"
	"github.com/JGibbsWork/lifestack/internal/server"
	"github.com/JGibbsWork/lifestack/internal/sources"
	"github.com/JGibbsWork/lifestack/internal/store"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", defaultConfigPath(), "path to config file")
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.lifestack/lifestack.toml"
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Server.APIToken == "" {
		return fmt.Errorf("no api token configured: set server.api_token or LIFESTACK_API_TOKEN")
	}

	// Resolve database path
	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	c := cache.New()
	c.StartSweeper(time.Minute)
	defer c.Stop()

	g := guard.New(time.Duration(cfg.Guard.CooldownSeconds) * time.Second)

	// Strava token lifecycle: persisted refresh token, serialized refresh.
	tokenPath := cfg.Auth.TokenPath
	if tokenPath == "" {
		tokenPath, err = auth.DefaultTokenPath()
		if err != nil {
			return fmt.Errorf("resolve token path: %w", err)
		}
	}
	oauth := auth.NewStravaOAuth(cfg.Strava.ClientID, cfg.Strava.ClientSecret)
	tokens, err := auth.NewManager(auth.NewFileStore(tokenPath), oauth.Refresh)
	if err != nil {
		return fmt.Errorf("token manager: %w", err)
	}

	calendar := sources.NewCalendar(cfg.Google.Token, cfg.Google.CalendarID, c)
	habitica := sources.NewHabitica(cfg.Habitica.UserID, cfg.Habitica.APIToken, c)
	strava := sources.NewStrava(tokens, cfg.Strava.AthleteID, c)
	notion := sources.NewNotion(cfg.Notion.APIKey, c)
	device := sources.NewPiShock(cfg.PiShock.Username, cfg.PiShock.APIKey, cfg.PiShock.ShareCode)

	eng := engine.New(c, calendar, habitica, strava, notion)
	eng.TaskDatabaseID = cfg.Notion.TaskDatabaseID

	srv := server.New(server.Deps{
		DB:       db,
		Cache:    c,
		Guard:    g,
		Engine:   eng,
		Calendar: calendar,
		Tasks:    habitica,
		Fitness:  strava,
		Search:   notion,
		Device:   device,
		APIToken: cfg.Server.APIToken,
		Version:  VersionString(),
	})

	addr := cfg.ListenAddr()
	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "lifestack serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", dbPath)
		if exp, ok := tokens.Expiry(); ok {
			fmt.Fprintf(os.Stderr, "  strava token expires: %s\n", exp.Format(time.RFC3339))
		} else {
			fmt.Fprintf(os.Stderr, "  strava: not authorized (run `lifestack authorize strava`)\n")
		}
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}

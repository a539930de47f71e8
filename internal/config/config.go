package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all lifestack configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
	Guard    GuardConfig    `toml:"guard"`
	Google   GoogleConfig   `toml:"google"`
	Habitica HabiticaConfig `toml:"habitica"`
	Strava   StravaConfig   `toml:"strava"`
	Notion   NotionConfig   `toml:"notion"`
	PiShock  PiShockConfig  `toml:"pishock"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
	// APIToken is the static shared secret required on every request.
	APIToken string `toml:"api_token"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type AuthConfig struct {
	// TokenPath is where the Strava TokenRecord is persisted.
	TokenPath string `toml:"token_path"`
}

type GuardConfig struct {
	CooldownSeconds int `toml:"cooldown_seconds"`
}

type GoogleConfig struct {
	CalendarID string `toml:"calendar_id"` // defaults to "primary"
	Token      string `toml:"token"`
}

type HabiticaConfig struct {
	UserID   string `toml:"user_id"`
	APIToken string `toml:"api_token"`
}

type StravaConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	AthleteID    int64  `toml:"athlete_id"`
}

type NotionConfig struct {
	APIKey string `toml:"api_key"`
	// TaskDatabaseID is an optional task database merged into the
	// unified task views.
	TaskDatabaseID string `toml:"task_database_id"`
}

type PiShockConfig struct {
	Username  string `toml:"username"`
	APIKey    string `toml:"api_key"`
	ShareCode string `toml:"share_code"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 38800,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Guard: GuardConfig{
			CooldownSeconds: 5,
		},
		Google: GoogleConfig{
			CalendarID: "primary",
		},
	}
}

// Load reads a TOML config file over the defaults, then applies env
// overrides. A missing file is fine: env-only setups are supported.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv lets secrets come from the environment instead of disk.
func (c *Config) applyEnv() {
	setFromEnv(&c.Server.APIToken, "LIFESTACK_API_TOKEN")
	setFromEnv(&c.Google.Token, "GOOGLE_CALENDAR_TOKEN")
	setFromEnv(&c.Habitica.UserID, "HABITICA_USER_ID")
	setFromEnv(&c.Habitica.APIToken, "HABITICA_API_TOKEN")
	setFromEnv(&c.Strava.ClientID, "STRAVA_CLIENT_ID")
	setFromEnv(&c.Strava.ClientSecret, "STRAVA_CLIENT_SECRET")
	setFromEnv(&c.Notion.APIKey, "NOTION_API_KEY")
	setFromEnv(&c.PiShock.Username, "PISHOCK_USERNAME")
	setFromEnv(&c.PiShock.APIKey, "PISHOCK_API_KEY")
	setFromEnv(&c.PiShock.ShareCode, "PISHOCK_SHARE_CODE")
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

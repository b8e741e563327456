package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Store    StoreConfig    `koanf:"store"`
	Auth     AuthConfig     `koanf:"auth"`
	Firebase FirebaseConfig `koanf:"firebase"`
	Google   GoogleConfig   `koanf:"google"`
	Reminder ReminderConfig `koanf:"reminder"`
}

type ServerConfig struct {
	Port string `koanf:"port"`
	// AppOrigin is the web app origin; windows of other origins are never focused.
	AppOrigin string `koanf:"app_origin"`
}

type StoreConfig struct {
	Driver      string `koanf:"driver"`
	DatabaseURL string `koanf:"database_url"`
	SQLitePath  string `koanf:"sqlite_path"`
}

type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
}

type FirebaseConfig struct {
	Credentials string `koanf:"credentials"`
}

type GoogleConfig struct {
	ProjectID   string `koanf:"project_id"`
	PubSubTopic string `koanf:"pubsub_topic"`
	Credentials string `koanf:"credentials"`
}

type ReminderConfig struct {
	Timezone               string        `koanf:"timezone"`
	CheckInterval          time.Duration `koanf:"check_interval"`
	PeriodicSyncEnabled    bool          `koanf:"periodic_sync_enabled"`
	PublishInterval        time.Duration `koanf:"publish_interval"`
	PermissionPollInterval time.Duration `koanf:"permission_poll_interval"`
	DispatchDelay          time.Duration `koanf:"dispatch_delay"`
	OwnerID                string        `koanf:"owner_id"`
	CacheGeneration        string        `koanf:"cache_generation"`
	DefaultRoute           string        `koanf:"default_route"`
	TargetRoute            string        `koanf:"target_route"`
}

// envKeys maps the plain environment variable names to config keys.
var envKeys = map[string]string{
	"PORT":                     "server.port",
	"APP_ORIGIN":               "server.app_origin",
	"STORE_DRIVER":             "store.driver",
	"DATABASE_URL":             "store.database_url",
	"SQLITE_PATH":              "store.sqlite_path",
	"JWT_SECRET":               "auth.jwt_secret",
	"FIREBASE_CREDENTIALS":     "firebase.credentials",
	"GOOGLE_PROJECT_ID":        "google.project_id",
	"GOOGLE_PUBSUB_TOPIC":      "google.pubsub_topic",
	"GOOGLE_CREDENTIALS":       "google.credentials",
	"TIMEZONE":                 "reminder.timezone",
	"CHECK_INTERVAL":           "reminder.check_interval",
	"PERIODIC_SYNC_ENABLED":    "reminder.periodic_sync_enabled",
	"PUBLISH_INTERVAL":         "reminder.publish_interval",
	"PERMISSION_POLL_INTERVAL": "reminder.permission_poll_interval",
	"DISPATCH_DELAY":           "reminder.dispatch_delay",
	"REMINDER_OWNER_ID":        "reminder.owner_id",
	"CACHE_GENERATION":         "reminder.cache_generation",
	"DEFAULT_ROUTE":            "reminder.default_route",
	"TARGET_ROUTE":             "reminder.target_route",
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.port":                       "8080",
		"server.app_origin":                 "http://localhost:5173",
		"store.driver":                      DriverPostgres,
		"store.database_url":                "",
		"store.sqlite_path":                 "lifebook-reminders.db",
		"auth.jwt_secret":                   "your-secret-key-change-in-production",
		"reminder.timezone":                 "Asia/Ho_Chi_Minh",
		"reminder.check_interval":           time.Minute,
		"reminder.periodic_sync_enabled":    true,
		"reminder.publish_interval":         time.Minute,
		"reminder.permission_poll_interval": 30 * time.Second,
		"reminder.dispatch_delay":           500 * time.Millisecond,
		"reminder.cache_generation":         "lifebook-cache-v1",
		"reminder.default_route":            "/",
		"reminder.target_route":             "/reminders",
	}
}

// Load reads defaults, then the YAML file at configPath (or CONFIG_FILE) if it
// exists, then the environment. A .env file is loaded into the environment
// first when present.
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath == "" {
		configPath = os.Getenv("CONFIG_FILE")
	}
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s store", DriverPostgres)
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the %s store", DriverSQLite)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store driver: %s (supported: %s, %s, %s)",
			c.Store.Driver, DriverPostgres, DriverSQLite, DriverMemory)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if _, err := time.LoadLocation(c.Reminder.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Reminder.Timezone, err)
	}

	if c.Reminder.CheckInterval < 0 || c.Reminder.PublishInterval < 0 || c.Reminder.PermissionPollInterval < 0 {
		return fmt.Errorf("intervals must not be negative")
	}
	if c.Reminder.DispatchDelay < 0 {
		return fmt.Errorf("dispatch_delay must not be negative")
	}

	if c.Google.PubSubTopic != "" && c.Google.ProjectID == "" {
		return fmt.Errorf("GOOGLE_PROJECT_ID is required when GOOGLE_PUBSUB_TOPIC is set")
	}

	return nil
}

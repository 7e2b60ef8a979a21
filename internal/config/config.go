package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort           = "8080"
	DefaultJWTSecret      = "dev-pong-secret"
	DefaultTickHz         = 60
	DefaultWaitingTTL     = 10 * time.Minute
	DefaultReaperSchedule = "@every 30s"
	DefaultAllowedOrigin  = "http://localhost:5173"
	DefaultLogLevel       = "info"
	DefaultSQLitePath     = "pong.db"
	DefaultPersistBuffer  = 256
	DefaultMirrorBuffer   = 256
	AbandonNoResult       = "no_result"
	AbandonForfeit        = "forfeit"
	DriverPostgres        = "postgres"
	DriverSQLite          = "sqlite"
	configFileEnv         = "GAME_CONFIG_FILE"
)

// Config captures every runtime tunable of the game server.
type Config struct {
	Port           string         `yaml:"port"`
	JWTSecret      string         `yaml:"jwtSecret"`
	RedisAddr      string         `yaml:"redisAddr"`
	AllowedOrigins []string       `yaml:"allowedOrigins"`
	LogLevel       string         `yaml:"logLevel"`
	Database       DatabaseConfig `yaml:"database"`
	Game           GameConfig     `yaml:"game"`
}

type DatabaseConfig struct {
	Driver     string `yaml:"driver"`
	Host       string `yaml:"host"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Name       string `yaml:"name"`
	Port       string `yaml:"port"`
	SSLMode    string `yaml:"sslmode"`
	SQLitePath string `yaml:"sqlitePath"`
}

type GameConfig struct {
	TickHz         int           `yaml:"tickHz"`
	WaitingTTL     time.Duration `yaml:"waitingTTL"`
	ReaperSchedule string        `yaml:"reaperSchedule"`
	AbandonPolicy  string        `yaml:"abandonPolicy"`
	PersistBuffer  int           `yaml:"persistBuffer"`
	MirrorBuffer   int           `yaml:"mirrorBuffer"`
}

// TickInterval is the wall-clock period between two simulation steps.
func (g GameConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(g.TickHz)
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

func defaults() *Config {
	return &Config{
		Port:           DefaultPort,
		JWTSecret:      DefaultJWTSecret,
		AllowedOrigins: []string{DefaultAllowedOrigin},
		LogLevel:       DefaultLogLevel,
		Database: DatabaseConfig{
			Driver:     DriverPostgres,
			Host:       "localhost",
			User:       "postgres",
			Password:   "postgres",
			Name:       "postgres",
			Port:       "5432",
			SSLMode:    "disable",
			SQLitePath: DefaultSQLitePath,
		},
		Game: GameConfig{
			TickHz:         DefaultTickHz,
			WaitingTTL:     DefaultWaitingTTL,
			ReaperSchedule: DefaultReaperSchedule,
			AbandonPolicy:  AbandonNoResult,
			PersistBuffer:  DefaultPersistBuffer,
			MirrorBuffer:   DefaultMirrorBuffer,
		},
	}
}

// Load starts from defaults, overlays the YAML file named by GAME_CONFIG_FILE when set,
// then applies environment overrides. Every invalid value is reported in one error.
func Load() (*Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv(configFileEnv)); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	var problems []string

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	if raw := strings.TrimSpace(os.Getenv("GAME_ALLOWED_ORIGINS")); raw != "" {
		cfg.AllowedOrigins = parseList(raw)
	}

	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.Host = getEnv("POSTGRES_HOST", cfg.Database.Host)
	cfg.Database.User = getEnv("POSTGRES_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("POSTGRES_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = getEnv("POSTGRES_DB", cfg.Database.Name)
	cfg.Database.Port = getEnv("POSTGRES_PORT", cfg.Database.Port)
	cfg.Database.SSLMode = getEnv("POSTGRES_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.SQLitePath = getEnv("SQLITE_PATH", cfg.Database.SQLitePath)

	if raw := strings.TrimSpace(os.Getenv("GAME_TICK_HZ")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("GAME_TICK_HZ must be a positive integer, got %q", raw))
		} else {
			cfg.Game.TickHz = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("GAME_WAITING_TTL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("GAME_WAITING_TTL must be a positive duration, got %q", raw))
		} else {
			cfg.Game.WaitingTTL = duration
		}
	}

	cfg.Game.ReaperSchedule = getEnv("GAME_REAPER_SCHEDULE", cfg.Game.ReaperSchedule)
	cfg.Game.AbandonPolicy = getEnv("GAME_ABANDON_POLICY", cfg.Game.AbandonPolicy)

	problems = append(problems, validate(cfg)...)
	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func validate(cfg *Config) []string {
	var problems []string
	if cfg.Game.TickHz <= 0 {
		problems = append(problems, fmt.Sprintf("tick rate must be positive, got %d", cfg.Game.TickHz))
	}
	if cfg.Game.WaitingTTL <= 0 {
		problems = append(problems, "waiting room TTL must be positive")
	}
	switch cfg.Game.AbandonPolicy {
	case AbandonNoResult, AbandonForfeit:
	default:
		problems = append(problems, fmt.Sprintf("GAME_ABANDON_POLICY must be %q or %q, got %q", AbandonNoResult, AbandonForfeit, cfg.Game.AbandonPolicy))
	}
	switch cfg.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		problems = append(problems, fmt.Sprintf("DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, cfg.Database.Driver))
	}
	if cfg.Game.PersistBuffer <= 0 || cfg.Game.MirrorBuffer <= 0 {
		problems = append(problems, "queue buffers must be positive")
	}
	return problems
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

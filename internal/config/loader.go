package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/rpattn/eveql/internal/db"
	"github.com/rpattn/eveql/internal/schema/validator"
)

// QueryConfig bounds listings and sizes the parse cache.
type QueryConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	CacheSize       int
}

// LogConfig selects the log level and output format (console or json).
type LogConfig struct {
	Level  string
	Format string
}

// Config is the full application configuration.
type Config struct {
	Database db.Config
	Query    QueryConfig
	Log      LogConfig
	// Resources holds per resource schema overrides, keyed by resource name.
	Resources map[string]validator.RawSchema
}

// Load reads config.yaml from configPath, which may also name the file
// itself. Environment variables prefixed with EVEQL override file values,
// e.g. EVEQL_DATABASE_HOST for database.host. A missing file is not an
// error.
func Load(configPath string) (Config, error) {
	v := newViper()

	ext := strings.ToLower(filepath.Ext(configPath))
	if ext == ".yaml" || ext == ".yml" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		log.Debug().Str("path", configPath).Msg("No config.yaml found, using defaults and env vars")
	} else {
		log.Debug().Str("file", v.ConfigFileUsed()).Msg("Loaded config")
	}

	return fromViper(v)
}

// LoadDBConfig returns only the database section of the configuration.
func LoadDBConfig(configPath string) (db.Config, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return db.Config{}, err
	}
	return cfg.Database, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("EVEQL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := db.DefaultConfig()
	v.SetDefault("database.host", defaults.Host)
	v.SetDefault("database.port", defaults.Port)
	v.SetDefault("database.user", defaults.User)
	v.SetDefault("database.password", defaults.Password)
	v.SetDefault("database.dbname", defaults.DBName)
	v.SetDefault("database.sslmode", defaults.SSLMode)
	v.SetDefault("database.max_conns", defaults.MaxConns)
	v.SetDefault("database.migrations", defaults.Migrations)

	v.SetDefault("query.default_page_size", 25)
	v.SetDefault("query.max_page_size", 50)
	v.SetDefault("query.cache_size", 256)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	return v
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Database: db.Config{
			Host:       v.GetString("database.host"),
			Port:       v.GetInt("database.port"),
			User:       v.GetString("database.user"),
			Password:   v.GetString("database.password"),
			DBName:     v.GetString("database.dbname"),
			SSLMode:    v.GetString("database.sslmode"),
			MaxConns:   v.GetInt32("database.max_conns"),
			Migrations: v.GetString("database.migrations"),
		},
		Query: QueryConfig{
			DefaultPageSize: v.GetInt("query.default_page_size"),
			MaxPageSize:     v.GetInt("query.max_page_size"),
			CacheSize:       v.GetInt("query.cache_size"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Resources: map[string]validator.RawSchema{},
	}

	if cfg.Query.DefaultPageSize < 1 || cfg.Query.MaxPageSize < 1 {
		return Config{}, fmt.Errorf("query page sizes must be positive, got default %d and max %d",
			cfg.Query.DefaultPageSize, cfg.Query.MaxPageSize)
	}
	if cfg.Query.DefaultPageSize > cfg.Query.MaxPageSize {
		return Config{}, fmt.Errorf("query.default_page_size %d exceeds query.max_page_size %d",
			cfg.Query.DefaultPageSize, cfg.Query.MaxPageSize)
	}

	for name := range v.GetStringMap("resources") {
		raw := v.GetStringMap("resources." + name + ".schema")
		schema := make(validator.RawSchema, len(raw))
		for field, rules := range raw {
			ruleMap, ok := rules.(map[string]any)
			if !ok {
				return Config{}, fmt.Errorf("resources.%s.schema.%s must be a map of rules", name, field)
			}
			schema[field] = ruleMap
		}
		cfg.Resources[name] = schema
	}

	return cfg, nil
}

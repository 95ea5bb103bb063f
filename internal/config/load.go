package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type flagValues struct {
	configPath  string
	envFile     string
	port        int
	logLevel    string
	logFormat   string
	databaseURL string
	redisHost   string
	redisPort   int
	mailDriver  string
	rotate      bool
}

// Load builds the configuration from every layer. args excludes the program
// name.
func Load(ctx context.Context, args []string) (Config, error) {
	cfg := Default()

	fset := pflag.NewFlagSet("pmscan-server", pflag.ContinueOnError)
	var fv flagValues
	fset.StringVar(&fv.configPath, "config", os.Getenv("PMSCAN_CONFIG"), "path to a YAML config file")
	fset.StringVar(&fv.envFile, "env-file", ".env", "path to a .env file")
	fset.IntVarP(&fv.port, "port", "p", cfg.Port, "HTTP listen port")
	fset.StringVar(&fv.logLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fset.StringVar(&fv.logFormat, "log-format", cfg.LogFormat, "json or text")
	fset.StringVar(&fv.databaseURL, "database-url", "", "Postgres DSN")
	fset.StringVar(&fv.redisHost, "redis-host", cfg.Redis.Host, "Redis host")
	fset.IntVar(&fv.redisPort, "redis-port", cfg.Redis.Port, "Redis port")
	fset.StringVar(&fv.mailDriver, "mail-driver", "", "smtp, amqp or log")
	fset.BoolVar(&fv.rotate, "rotate-refresh", false, "rotate refresh tokens on use")
	if err := fset.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}

	if fv.configPath != "" {
		if err := loadYAML(fv.configPath, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := loadDotEnv(fv.envFile); err != nil {
		return Config{}, err
	}
	if err := loadAWSSecrets(ctx); err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	applyFlags(&cfg, fset, fv)

	cfg.resolveMailDriver()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// loadDotEnv merges path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func applyFlags(cfg *Config, fset *pflag.FlagSet, fv flagValues) {
	if fset.Changed("port") {
		cfg.Port = fv.port
	}
	if fset.Changed("log-level") {
		cfg.LogLevel = fv.logLevel
	}
	if fset.Changed("log-format") {
		cfg.LogFormat = fv.logFormat
	}
	if fset.Changed("database-url") {
		cfg.DatabaseURL = fv.databaseURL
	}
	if fset.Changed("redis-host") {
		cfg.Redis.Host = fv.redisHost
	}
	if fset.Changed("redis-port") {
		cfg.Redis.Port = fv.redisPort
	}
	if fset.Changed("mail-driver") {
		cfg.Mail.Driver = fv.mailDriver
	}
	if fset.Changed("rotate-refresh") {
		cfg.JWT.RotateRefresh = fv.rotate
	}
}

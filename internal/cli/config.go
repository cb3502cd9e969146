package cli

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/duarten/cornucopia/pkg/codegen"
)

const (
	maxWalkDepth = 25
)

// Config represents the cornucopia configuration from cornucopia.yaml.
type Config struct {
	// Generation inputs and outputs
	Queries     string `mapstructure:"queries"`
	Destination string `mapstructure:"destination"`
	Package     string `mapstructure:"package"`

	// Generation behavior
	Mode      string            `mapstructure:"mode"`
	Serialize bool              `mapstructure:"serialize"`
	Types     map[string]string `mapstructure:"types"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// LoadConfig discovers and loads configuration with proper precedence:
// flags > env > config file > defaults.
//
// Returns the loaded config, the path to the config file (empty if none found),
// and any error encountered.
func LoadConfig(explicitConfigPath string) (*Config, string, error) {
	// The default "." delimiter would split the schema-qualified Postgres
	// names keying the types remap table ("public.mood") into nested maps.
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))

	// 1. Set defaults first (lowest precedence)
	setDefaults(v)

	// 2. Set up environment variable binding
	v.SetEnvPrefix("CORNUCOPIA")
	v.SetEnvKeyReplacer(strings.NewReplacer("::", "_"))
	v.AutomaticEnv()

	// 3. Find and load config file
	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	// 4. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	// Generation defaults
	v.SetDefault("queries", "queries")
	v.SetDefault("destination", "generated")
	v.SetDefault("package", "cornucopia")
	v.SetDefault("mode", "pgx")
	v.SetDefault("serialize", false)

	// Database defaults
	v.SetDefault("database::url", "")
	v.SetDefault("database::host", "")
	v.SetDefault("database::port", 5432)
	v.SetDefault("database::name", "")
	v.SetDefault("database::user", "")
	v.SetDefault("database::password", "")
	v.SetDefault("database::sslmode", "prefer")
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for cornucopia.yaml or cornucopia.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	// Auto-discovery: walk up to .git or maxWalkDepth
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		// Try cornucopia.yaml then cornucopia.yml
		for _, name := range []string{"cornucopia.yaml", "cornucopia.yml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		// Check for repo boundary (.git file or directory)
		gitPath := filepath.Join(dir, ".git")
		if _, err := os.Stat(gitPath); err == nil {
			break // Stop at repo root
		}

		// Move up
		parent := filepath.Dir(dir)
		if parent == dir {
			break // Reached filesystem root
		}
		dir = parent
	}

	return "", nil // No config found, use defaults
}

// Modes resolves the configured mode string to the codegen modes to emit.
// "both" generates the pgx and database/sql renditions as sibling packages.
func (c *Config) Modes() ([]codegen.Mode, error) {
	switch c.Mode {
	case "", "pgx":
		return []codegen.Mode{codegen.ModePgx}, nil
	case "sql":
		return []codegen.Mode{codegen.ModeSQL}, nil
	case "both":
		return []codegen.Mode{codegen.ModePgx, codegen.ModeSQL}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q (expected pgx, sql, or both)", c.Mode)
	}
}

// DSN returns the database connection string.
// If database.url is set, it's returned directly.
// Otherwise, builds a DSN from discrete fields.
func (c *Config) DSN() (string, error) {
	db := c.Database

	if db.URL != "" {
		return db.URL, nil
	}

	// Build DSN from discrete fields
	if db.Host == "" {
		return "", fmt.Errorf("database.host is required when database.url is not set")
	}
	if db.Name == "" {
		return "", fmt.Errorf("database.name is required when database.url is not set")
	}
	if db.User == "" {
		return "", fmt.Errorf("database.user is required when database.url is not set")
	}

	// Build postgres:// URL
	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   "/" + db.Name,
	}

	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	} else {
		u.User = url.User(db.User)
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

package core

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jo-hoe/mebloggy/internal/backend/commandstructure"
	"github.com/jo-hoe/mebloggy/internal/backend/preferences"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort           = 8080
	defaultLogLevel       = "info"
	defaultDatabaseType   = "sqlite"
	defaultConnection     = "mebloggy.db"
	defaultAssetBasePath  = "/assets/"
	defaultThumbnailWidth = 320
)

type Database struct {
	Type             string `yaml:"type"`
	ConnectionString string `yaml:"connectionString"`
}

type Seed struct {
	// Directory replaces the bundled seed files when set
	Directory string `yaml:"directory"`
}

type Avatar struct {
	// Commands normalize an uploaded avatar before it is stored
	Commands []commandstructure.CommandConfig `yaml:"commands"`
}

type ServiceConfig struct {
	Port           int                `yaml:"port"`
	LogLevel       string             `yaml:"logLevel"`
	Database       Database           `yaml:"database"`
	Preferences    preferences.Config `yaml:"preferences"`
	Seed           Seed               `yaml:"seed"`
	UseBlobURLs    bool               `yaml:"useBlobUrls"`
	AssetBasePath  string             `yaml:"assetBasePath"`
	ThumbnailWidth int                `yaml:"thumbnailWidth"`
	Avatar         Avatar             `yaml:"avatar"`
}

// LoadConfig loads configuration from the specified YAML file.
// ${VAR} references are expanded from the environment before parsing.
func LoadConfig(configPath string) (*ServiceConfig, error) {
	// Read the config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	config, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	return config, nil
}

// ParseConfig parses, defaults and validates a YAML configuration
func ParseConfig(data []byte) (*ServiceConfig, error) {
	var config ServiceConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *ServiceConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Database.Type == "" {
		c.Database.Type = defaultDatabaseType
	}
	if c.Database.ConnectionString == "" {
		c.Database.ConnectionString = defaultConnection
	}
	if c.AssetBasePath == "" {
		c.AssetBasePath = defaultAssetBasePath
	}
	if !strings.HasSuffix(c.AssetBasePath, "/") {
		c.AssetBasePath += "/"
	}
	if c.ThumbnailWidth == 0 {
		c.ThumbnailWidth = defaultThumbnailWidth
	}
}

func (c *ServiceConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.Database.Type != defaultDatabaseType {
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	switch c.Preferences.Type {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("unsupported preference store type: %s", c.Preferences.Type)
	}
	if c.ThumbnailWidth < 0 {
		return fmt.Errorf("thumbnailWidth must be positive, got %d", c.ThumbnailWidth)
	}
	if err := validateCommands(c.Avatar.Commands); err != nil {
		return fmt.Errorf("invalid avatar command configuration: %w", err)
	}
	return nil
}

// SlogLevel converts the configured log level into a slog.Level
func (c *ServiceConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// validateCommands ensures all command configurations have required fields
func validateCommands(commands []commandstructure.CommandConfig) error {
	seenNames := make(map[string]bool)

	for i, cmd := range commands {
		// Validate name is not empty
		if cmd.Name == "" {
			return fmt.Errorf("command at index %d has empty name", i)
		}

		// Validate name is unique
		if seenNames[cmd.Name] {
			return fmt.Errorf("duplicate command name: %s", cmd.Name)
		}
		seenNames[cmd.Name] = true
	}

	return nil
}

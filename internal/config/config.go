// Package config provides configuration management for pugboard.
package config

import (
	"fmt"
	"time"
)

var AppVersion = "-unset-" // will be set at build time

const (
	// Board defaults
	DefaultPageSize      = 30
	DefaultMaxBodyLength = 2000 // runes
	DefaultMaxNameLength = 64   // runes
	DefaultName          = "Anonymous"

	// Session defaults
	DefaultSessionTimeout  = 24 * time.Hour
	DefaultCleanupInterval = 15 * time.Minute

	DefaultWebPort = 11980
)

// MainConfig holds the main configuration for pugboard
type MainConfig struct {
	Web      WebConfig      `yaml:"web" json:"web"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Board    BoardConfig    `yaml:"board" json:"board"`

	AppVersion string `yaml:"-" json:"-"` // Application version, set at build time
}

// WebConfig holds web interface configuration
type WebConfig struct {
	ListenPort int    `yaml:"listen_port" json:"listen_port"`
	SSL        bool   `yaml:"ssl" json:"ssl"`
	CertFile   string `yaml:"cert_file,omitempty" json:"cert_file,omitempty"`
	KeyFile    string `yaml:"key_file,omitempty" json:"key_file,omitempty"`
	Debug      bool   `yaml:"debug" json:"debug"`
	Gzip       bool   `yaml:"gzip" json:"gzip"`
	Metrics    bool   `yaml:"metrics" json:"metrics"`

	// SessionSecret keys the session cookie MAC. Hex encoded; a random
	// secret is generated at startup when empty.
	SessionSecret   string        `yaml:"session_secret,omitempty" json:"session_secret,omitempty"`
	SessionTimeout  time.Duration `yaml:"session_timeout" json:"session_timeout"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

// DatabaseConfig selects and configures the board store
type DatabaseConfig struct {
	Driver      string `yaml:"driver" json:"driver"`             // "sqlite3" or "postgres"
	Path        string `yaml:"path" json:"path"`                 // sqlite3 database file
	PostgresDSN string `yaml:"postgres_dsn" json:"postgres_dsn"` // postgres connection string
}

// BoardConfig holds the posting rules of the board
type BoardConfig struct {
	PageSize      int    `yaml:"page_size" json:"page_size"`
	MaxBodyLength int    `yaml:"max_body_length" json:"max_body_length"`
	MaxNameLength int    `yaml:"max_name_length" json:"max_name_length"`
	DefaultName   string `yaml:"default_name" json:"default_name"`
}

// NewDefaultConfig returns a configuration with default values
func NewDefaultConfig() *MainConfig {
	return &MainConfig{
		Web: WebConfig{
			ListenPort:      DefaultWebPort,
			Gzip:            true,
			Metrics:         false,
			SessionTimeout:  DefaultSessionTimeout,
			CleanupInterval: DefaultCleanupInterval,
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			Path:   "./data/board.db",
		},
		Board: BoardConfig{
			PageSize:      DefaultPageSize,
			MaxBodyLength: DefaultMaxBodyLength,
			MaxNameLength: DefaultMaxNameLength,
			DefaultName:   DefaultName,
		},
		AppVersion: AppVersion,
	}
}

// Validate checks values the schema cannot express
func (c *MainConfig) Validate() error {
	if c.Web.ListenPort < 1024 || c.Web.ListenPort > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1024 and 65535)", c.Web.ListenPort)
	}
	if c.Web.SSL && (c.Web.CertFile == "" || c.Web.KeyFile == "") {
		return fmt.Errorf("ssl enabled but cert_file or key_file not set")
	}
	switch c.Database.Driver {
	case "sqlite3":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite3")
		}
	case "postgres":
		if c.Database.PostgresDSN == "" {
			return fmt.Errorf("postgres_dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Board.PageSize < 1 {
		return fmt.Errorf("page_size must be positive")
	}
	if c.Board.MaxBodyLength < 1 {
		return fmt.Errorf("max_body_length must be positive")
	}
	if c.Board.MaxNameLength < 1 {
		return fmt.Errorf("max_name_length must be positive")
	}
	if c.Web.SessionTimeout <= 0 {
		return fmt.Errorf("session_timeout must be positive")
	}
	if c.Web.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup_interval must be positive")
	}
	return nil
}

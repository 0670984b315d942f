package serv

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the service configuration, read from a YAML file.
type Config struct {
	// AppName is used in log fields
	AppName string `mapstructure:"app_name"`

	// Production disables development conveniences like schema polling
	Production bool `mapstructure:"production"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `mapstructure:"log_level"`

	// LogFormat is "json" or "pretty"
	LogFormat string `mapstructure:"log_format"`

	// SchemaFile is the path of the collection/relation schema
	SchemaFile string `mapstructure:"schema_file"`

	// SchemaPollDuration enables schema hot-reload when >= 1s
	SchemaPollDuration time.Duration `mapstructure:"schema_poll_duration"`

	// BatchConcurrency bounds batched relation resolution fan-out
	BatchConcurrency int `mapstructure:"batch_concurrency"`

	// DB is the MongoDB connection config
	DB Database `mapstructure:"database"`
}

// Database holds the MongoDB connection settings. Either ConnString
// or Host plus DBName must be set.
type Database struct {
	ConnString string `mapstructure:"connection_string"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DBName     string `mapstructure:"dbname"`

	ConnectRetries uint          `mapstructure:"connect_retries"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// ReadInConfig reads and unmarshals the config file at the given
// path.
func ReadInConfig(configFile string) (*Config, error) {
	vi := viper.New()
	vi.SetConfigFile(configFile)

	vi.SetDefault("log_level", "info")
	vi.SetDefault("log_format", "json")
	vi.SetDefault("batch_concurrency", 8)
	vi.SetDefault("database.port", 27017)
	vi.SetDefault("database.connect_retries", 3)
	vi.SetDefault("database.connect_timeout", 5*time.Second)

	if err := vi.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config %s: %w", configFile, err)
	}

	c := &Config{}
	if err := vi.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("config %s: %w", configFile, err)
	}
	return c, nil
}

// isDatabaseConfigured reports whether the config carries enough to
// reach a database.
func isDatabaseConfigured(c *Config) bool {
	if c.DB.ConnString != "" {
		return true
	}
	return c.DB.Host != "" && c.DB.DBName != ""
}

// connString builds the MongoDB URI from the config.
func (c *Config) connString() string {
	if c.DB.ConnString != "" {
		return c.DB.ConnString
	}
	port := c.DB.Port
	if port == 0 {
		port = 27017
	}
	return fmt.Sprintf("mongodb://%s:%d", c.DB.Host, port)
}

// dbName returns the database name, from config or the connection
// string path.
func (c *Config) dbName() string {
	if c.DB.DBName != "" {
		return c.DB.DBName
	}
	cs := c.DB.ConnString
	if i := strings.Index(cs, "://"); i >= 0 {
		cs = cs[i+3:]
	}
	if i := strings.IndexByte(cs, '/'); i >= 0 && i+1 < len(cs) {
		name := cs[i+1:]
		if j := strings.IndexByte(name, '?'); j >= 0 {
			name = name[:j]
		}
		return name
	}
	return ""
}

package core

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config contains all of the configuration options available to the server
// and its supporting tools.
type Config struct {
	// Hostname or IP address on which the servers will listen for connections.
	Hostname string `mapstructure:"hostname"`
	// Port on which game clients connect over TCP.
	Port int `mapstructure:"port"`
	// Port for WebSocket clients. Zero disables the WebSocket listener.
	WebSocketPort int `mapstructure:"websocket_port"`
	// Maximum number of concurrent connections per listener.
	MaxConnections int `mapstructure:"max_connections"`
	// Directory containing the world and the remote player save files.
	WorldPath string `mapstructure:"world_path"`

	Logging struct {
		// Full path to file to which logs will be written. Blank will write to stdout.
		FilePath string `mapstructure:"file_path"`
		// Minimum level of a log required to be written. Options: debug, info, warn, error
		Level string `mapstructure:"level"`
		// Rotation settings for FilePath, in megabytes, files and days respectively.
		MaxSize    int `mapstructure:"max_size"`
		MaxBackups int `mapstructure:"max_backups"`
		MaxAge     int `mapstructure:"max_age"`
	} `mapstructure:"logging"`

	Saves struct {
		// How long a resolved identity -> save file mapping is remembered.
		LookupTTL time.Duration `mapstructure:"lookup_ttl"`
	} `mapstructure:"saves"`

	Database struct {
		// Either "sqlite" or "postgres". Blank disables the player index.
		Engine string `mapstructure:"engine"`
		// SQLite database file, relative to the world path.
		Filename string `mapstructure:"filename"`
		// Hostname of the Postgres database instance.
		Host string `mapstructure:"host"`
		// Port on host on which the Postgres instance is accepting connections.
		Port int `mapstructure:"port"`
		// Name of the database in Postgres.
		Name string `mapstructure:"name"`
		// Username and password of a user with full RW privileges to Name.
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		// Set to verify-full if the Postgres instance supports SSL.
		SSLMode string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	Debugging struct {
		// Enable extra info-providing mechanisms for the server.
		Enabled bool `mapstructure:"enabled"`
		// Port on which a pprof server will be started if debug mode is enabled.
		PprofPort int `mapstructure:"pprof_port"`
		// Log every message sent and received.
		PacketLoggingEnabled bool `mapstructure:"packet_logging_enabled"`
		// Enable database-level query logging.
		DatabaseLoggingEnabled bool `mapstructure:"database_logging_enabled"`
	} `mapstructure:"debugging"`
}

const envVarPrefix = "MINICRAFT"

func setDefaults(v *viper.Viper) {
	v.SetDefault("hostname", "0.0.0.0")
	v.SetDefault("port", 4225)
	v.SetDefault("websocket_port", 0)
	v.SetDefault("max_connections", 32)
	v.SetDefault("world_path", "./world")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 7)
	v.SetDefault("saves.lookup_ttl", 5*time.Minute)
	v.SetDefault("database.engine", "")
	v.SetDefault("database.filename", "players.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("debugging.pprof_port", 4226)
}

// LoadConfig reads config.yaml from the directory at configPath. Every option can be
// overridden with an environment variable; nested options use underscores, for
// example database.host can be set using MINICRAFT_DATABASE_HOST.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(configPath)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envVarPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	for _, k := range v.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := v.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			return nil, fmt.Errorf("error binding %s to %s: %w", k, envVarPrefix+"_"+envVar, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config object: %w", err)
	}
	return config, nil
}

const databaseURITemplate = "host=%s port=%d dbname=%s user=%s password=%s sslmode=%s"

// DatabaseURL returns a Postgres connection string generated from the provided config values.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		databaseURITemplate,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.Username,
		c.Database.Password,
		c.Database.SSLMode,
	)
}

// QualifiedPath returns path resolved against the world directory unless it
// is already absolute.
func (c *Config) QualifiedPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.WorldPath, path)
}

// ListenAddress returns the host:port pair for a listener on port.
func (c *Config) ListenAddress(port int) string {
	return fmt.Sprintf("%s:%d", c.Hostname, port)
}

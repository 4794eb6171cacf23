package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/spf13/viper"
)

// Version is the application version, overridable at build time via ldflags.
var Version = "0.1.0-dev"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Downloads DownloadsConfig `mapstructure:"downloads"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// AllowedOrigins is the static CORS allow-list. Loopback origins on any
	// port are always accepted in addition to this list.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ToolsConfig holds external tool locations.
type ToolsConfig struct {
	// Dir, when set, is searched before the packaged resource locations.
	Dir        string `mapstructure:"dir"`
	Extractor  string `mapstructure:"extractor"`
	Transcoder string `mapstructure:"transcoder"`
}

// DownloadsConfig holds download pipeline configuration.
type DownloadsConfig struct {
	// Dir is where temporary artifacts are staged. Empty means os.TempDir.
	Dir string `mapstructure:"dir"`

	// MaxConcurrent caps simultaneous extraction pipelines. 0 disables the cap.
	MaxConcurrent int `mapstructure:"max_concurrent"`

	// ArtifactTTLHours is how long an orphaned temp artifact may live before
	// the janitor removes it.
	ArtifactTTLHours int `mapstructure:"artifact_ttl_hours"`

	// AudioBitrate is the bitrate used for audio-only MP3 transcodes.
	AudioBitrate string `mapstructure:"audio_bitrate"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.fetchbox")
	}

	v.SetEnvPrefix("FETCHBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults + env vars
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 4000)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost:5173",
		"http://localhost:5174",
		"http://localhost:4000",
	})

	v.SetDefault("tools.dir", "")
	v.SetDefault("tools.extractor", "yt-dlp")
	v.SetDefault("tools.transcoder", "ffmpeg")

	v.SetDefault("downloads.dir", "")
	v.SetDefault("downloads.max_concurrent", 3)
	v.SetDefault("downloads.artifact_ttl_hours", 24)
	v.SetDefault("downloads.audio_bitrate", "320k")

	v.SetDefault("database.path", "./data/fetchbox.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// FindAvailablePort returns the first free TCP port at or above start,
// probing at most attempts ports.
func FindAvailablePort(start, attempts int) (int, error) {
	for port := start; port < start+attempts; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			continue
		}
		ln.Close()
		return port, nil
	}
	return 0, fmt.Errorf("no available port in range %d-%d", start, start+attempts-1)
}

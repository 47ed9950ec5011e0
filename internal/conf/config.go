// config.go: settings struct and loading for the migration engine. Values come
// from an optional YAML config file, environment variables (STYLR_ prefix) and
// command line flags bound through viper, in increasing priority.
package conf

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// SourceSettings describes where the legacy dump comes from.
type SourceSettings struct {
	DumpPath string // path to the legacy JSON dump file
}

// SQLiteSettings contains the SQLite target database settings.
type SQLiteSettings struct {
	Enabled bool
	Path    string // path to the SQLite database file
}

// MySQLSettings contains the MySQL target database settings.
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Database string
	Host     string
	Port     string
}

// DatabaseSettings selects and configures the target database.
type DatabaseSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// SFTPSettings configures the SFTP object storage target.
type SFTPSettings struct {
	Host       string
	Port       int
	Username   string
	Password   string
	KnownHosts string // path to known_hosts file for host key verification
	BasePath   string // remote base directory for uploaded media
}

// FTPSettings configures the FTP object storage target.
type FTPSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	BasePath string
}

// HTTPStorageSettings configures the hosted bucket REST storage target.
type HTTPStorageSettings struct {
	BaseURL    string // storage API base URL
	ServiceKey string // service-level credential sent as bearer token
	Bucket     string // bucket name media objects are uploaded into
}

// StorageSettings selects and configures the object storage backend.
type StorageSettings struct {
	Backend string // "http", "sftp", "ftp" or "local"
	Local   struct {
		Path string // base directory for the local backend
	}
	HTTP HTTPStorageSettings
	SFTP SFTPSettings
	FTP  FTPSettings
}

// BatchSettings tunes the batch processor.
type BatchSettings struct {
	Size              int // records per batch window for plain table inserts
	DelayMs           int // delay between batch windows in milliseconds
	MaxRetries        int // max retry attempts for retriable external calls
	BaseRetryDelayMs  int // base delay for exponential backoff in milliseconds
	FallbackToSingles bool
}

// CompressionSettings holds the external image tool configuration.
type CompressionSettings struct {
	Tool        string // path to the image conversion binary
	JPEGQuality int    // quality flag for JPEG output
	WebPQuality int    // quality flag for WebP output
	PNGQuality  int    // quality flag for PNG output
	GIFQuality  int    // quality flag for GIF output
}

// MediaSettings tunes the media migration pipeline.
type MediaSettings struct {
	TempDir     string // directory for compressed temp files
	FanOut      int    // bounded concurrent uploads per wave
	Compression CompressionSettings
}

// ScoreSettings parameterizes the migration scorer.
type ScoreSettings struct {
	SampleSize int // number of storage objects sampled for accessibility
}

// CheckpointSettings configures the on-disk checkpoint store.
type CheckpointSettings struct {
	Dir string // directory holding per-step JSON checkpoint files
}

// NotifySettings configures the completion notification.
type NotifySettings struct {
	Enabled bool
	URL     string // shoutrrr service URL
}

// TelemetrySettings configures the optional metrics listener.
type TelemetrySettings struct {
	Enabled bool
	Listen  string // address for the Prometheus metrics endpoint
}

// LogSettings configures logging output.
type LogSettings struct {
	Level string // trace, debug, info, warn or error
}

// Settings is the root configuration for the migration engine.
type Settings struct {
	Debug bool // true to enable debug output

	Source     SourceSettings
	Database   DatabaseSettings
	Storage    StorageSettings
	Batch      BatchSettings
	Media      MediaSettings
	Score      ScoreSettings
	Checkpoint CheckpointSettings
	Notify     NotifySettings
	Telemetry  TelemetrySettings
	Log        LogSettings
}

// Load reads settings from the config file (if present), environment and
// defaults. configPath may be empty, in which case only defaults and
// environment variables apply.
func Load(configPath string) (*Settings, error) {
	setDefaultConfig()

	viper.SetEnvPrefix("stylr")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configPath != "" {
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
		}
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("unmarshaling settings: %w", err)
	}

	return settings, nil
}

// DSN builds the MySQL connection string.
func (m *MySQLSettings) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		m.Username, m.Password, m.Host, m.Port, m.Database)
}

// Package config loads the service configuration from struct tag defaults,
// an optional TOML, JSON or YAML file and SILO_* environment variables, in
// that order of precedence.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/koding/multiconfig"
)

// EnvPrefix is the prefix of environment variables, e.g. SILO_HTTP_PORT.
const EnvPrefix = "SILO"

// Config is the service configuration.
type Config struct {
	HTTP     HTTP
	Log      Log
	Query    Query
	Storage  Storage
	Snapshot Snapshot
	Info     Info
}

// HTTP configures the HTTP server. Timeouts are in seconds.
type HTTP struct {
	Host            string `default:"0.0.0.0"`
	Port            int    `default:"8081"`
	Mode            string `default:"release"`
	PProf           bool
	ExposeMetrics   bool  `default:"true"`
	PrintAccessLog  bool  `default:"true"`
	MaxBodyBytes    int64 `default:"1048576"`
	ReadTimeout     int   `default:"30"`
	WriteTimeout    int
	IdleTimeout     int `default:"120"`
	ShutdownTimeout int `default:"10"`
	ArrowBatchSize  int `default:"1024"`
}

// Log configures logging.
type Log struct {
	// Level is one of debug, info, warn, error.
	Level string `default:"info"`
	// Format is text or json.
	Format string `default:"text"`
}

// Query configures evaluation and admission control.
type Query struct {
	// Workers is the number of goroutines evaluating partitions; 0 uses
	// GOMAXPROCS.
	Workers              int
	MaxConcurrentQueries int64 `default:"64"`
	QueueTimeoutMs       int   `default:"1000"`
	// RequestsPerSecond limits admitted queries; 0 is unlimited.
	RequestsPerSecond float64
	Burst             int
	// TimeoutSeconds bounds a single query; 0 disables the timeout.
	TimeoutSeconds int
}

// Storage selects the blob store holding snapshots.
type Storage struct {
	// Type is local, s3 or minio.
	Type  string `default:"local" required:"true"`
	Local LocalStorage
	S3    S3Storage
	MinIO MinIOStorage
}

// LocalStorage is a directory on the local file system.
type LocalStorage struct {
	Path string `default:"./data"`
}

// S3Storage is an S3 bucket. With DynamoDBTable set, the CURRENT pointer is
// kept in DynamoDB.
type S3Storage struct {
	Bucket        string
	Prefix        string
	Region        string
	Endpoint      string
	PathStyle     bool
	DynamoDBTable string
}

// MinIOStorage is a bucket on a MinIO server.
type MinIOStorage struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Secure    bool
	Bucket    string
	Prefix    string
}

// Snapshot configures snapshot loading.
type Snapshot struct {
	// PollInterval is the number of seconds between two reads of CURRENT;
	// 0 disables watching.
	PollInterval    int `default:"30"`
	LoadConcurrency int
	// LoadBytesPerSec limits the read throughput of snapshot loads; 0 is
	// unlimited.
	LoadBytesPerSec int64
}

// Info configures the diagnostics endpoint.
type Info struct {
	SectionLength int `default:"500"`
}

// Load reads the configuration. path may be empty.
func Load(path string) (*Config, error) {
	loaders := []multiconfig.Loader{&multiconfig.TagLoader{}}

	if path != "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml", ".conf":
			loaders = append(loaders, &multiconfig.TOMLLoader{Path: path})
		case ".json":
			loaders = append(loaders, &multiconfig.JSONLoader{Path: path})
		case ".yaml", ".yml":
			loaders = append(loaders, &multiconfig.YAMLLoader{Path: path})
		default:
			return nil, fmt.Errorf("config: invalid file %q, valid extensions: .conf, .toml, .json, .yaml, .yml", path)
		}
	}
	loaders = append(loaders, &multiconfig.EnvironmentLoader{Prefix: EnvPrefix, CamelCase: true})

	m := multiconfig.DefaultLoader{
		Loader:    multiconfig.MultiLoader(loaders...),
		Validator: multiconfig.MultiValidator(&multiconfig.RequiredValidator{}),
	}

	c := new(Config)
	if err := m.Load(c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks values the loaders cannot.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "local":
		if c.Storage.Local.Path == "" {
			return fmt.Errorf("config: Storage.Local.Path is required")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("config: Storage.S3.Bucket is required")
		}
	case "minio":
		if c.Storage.MinIO.Endpoint == "" || c.Storage.MinIO.Bucket == "" {
			return fmt.Errorf("config: Storage.MinIO.Endpoint and Storage.MinIO.Bucket are required")
		}
	default:
		return fmt.Errorf("config: unknown storage type %q, valid types: local, s3, minio", c.Storage.Type)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q, valid formats: text, json", c.Log.Format)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Query.MaxConcurrentQueries <= 0 {
		return fmt.Errorf("config: Query.MaxConcurrentQueries must be positive")
	}
	return nil
}

// Addr returns the listen address.
func (h HTTP) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

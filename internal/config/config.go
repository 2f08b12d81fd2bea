package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DataDir string `yaml:"data_dir"`

	Catalog CatalogConfig `yaml:"catalog"`
	Cluster ClusterConfig `yaml:"cluster"`
	Router  RouterConfig  `yaml:"router"`
	IPC     IPCConfig     `yaml:"ipc"`
	Client  ClientConfig  `yaml:"client"`
}

type CatalogConfig struct {
	ArtifactPath string `yaml:"artifact_path"` // Compiled catalog artifact (SQLite file); empty = DataDir/catalog.db
}

type ClusterConfig struct {
	PartitionCount int `yaml:"partition_count"` // Number of partitions (default: 8)
	SiteQueueSize  int `yaml:"site_queue_size"` // Per-site mailbox depth (backpressure)
}

type RouterConfig struct {
	MaxAttempts int           `yaml:"max_attempts"` // Dispatch attempts per invocation before a timeout code (default: 5)
	WorkerCount int           `yaml:"worker_count"` // Dispatch pool workers (0 = NumCPU)
	QueueSize   int           `yaml:"queue_size"`   // Dispatch queue depth (default: 1024)
	CallTimeout time.Duration `yaml:"call_timeout"` // Default per-invocation deadline when the caller sets none
}

type IPCConfig struct {
	SocketPath     string        `yaml:"socket_path"`
	MaxConnections int           `yaml:"max_connections"` // Bound on concurrent connection handlers (0 = unlimited)
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	DebugMode      bool          `yaml:"debug_mode"` // Request flow logging with requestID
}

type ClientConfig struct {
	RateLimit float64 `yaml:"rate_limit"` // Invocations per second (0 = unlimited)
	Burst     int     `yaml:"burst"`      // Rate limiter burst size
}

func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Catalog: CatalogConfig{},
		Cluster: ClusterConfig{
			PartitionCount: 8,
			SiteQueueSize:  256,
		},
		Router: RouterConfig{
			MaxAttempts: 5,
			WorkerCount: runtime.NumCPU(),
			QueueSize:   1024,
			CallTimeout: 10 * time.Second,
		},
		IPC: IPCConfig{
			SocketPath:     "/tmp/sharddb.sock",
			MaxConnections: 0,
			ReadTimeout:    0,
		},
		Client: ClientConfig{
			RateLimit: 0,
			Burst:     1,
		},
	}
}

// LoadFile reads a YAML config file over the defaults. Fields absent from
// the file keep their default values.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Cluster.PartitionCount <= 0 {
		return fmt.Errorf("cluster.partition_count must be positive, got %d", c.Cluster.PartitionCount)
	}
	if c.Router.MaxAttempts <= 0 {
		return fmt.Errorf("router.max_attempts must be positive, got %d", c.Router.MaxAttempts)
	}
	if c.Client.RateLimit < 0 {
		return fmt.Errorf("client.rate_limit cannot be negative")
	}
	return nil
}

// ArtifactPath resolves the compiled catalog artifact location.
func (c *Config) ArtifactPath() string {
	if c.Catalog.ArtifactPath != "" {
		return c.Catalog.ArtifactPath
	}
	return c.DataDir + "/catalog.db"
}

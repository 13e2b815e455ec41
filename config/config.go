package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/ddr4869/agrichain/common/logger"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const envPrefix = "AGRICHAIN_"

type NodeConfig struct {
	Address     string `yaml:"address"`
	TLSEnabled  bool   `yaml:"tls_enabled"`
	TLSCertFile string `yaml:"tls_cert_file"`
	TLSKeyFile  string `yaml:"tls_key_file"`
}

type StorageConfig struct {
	DataDir      string `yaml:"data_dir"`
	InMemory     bool   `yaml:"in_memory"`
	CacheSizeMB  int64  `yaml:"cache_size_mb"`
	MemTableSize uint64 `yaml:"memtable_size_mb"`
}

type UploadsConfig struct {
	Dir     string `yaml:"dir"`
	MaxSize int64  `yaml:"max_size_bytes"`
}

// ClientConfig is read by ledgerctl
type ClientConfig struct {
	Address       string `yaml:"address"`
	UserID        string `yaml:"user_id"`
	TLSEnabled    bool   `yaml:"tls_enabled"`
	TLSRootCAFile string `yaml:"tls_root_ca_file"`
}

type Config struct {
	Node    *NodeConfig    `yaml:"node"`
	Storage *StorageConfig `yaml:"storage"`
	Uploads *UploadsConfig `yaml:"uploads"`
	Client  *ClientConfig  `yaml:"client"`
	Log     *logger.Config `yaml:"log"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Node: &NodeConfig{
			Address: "127.0.0.1:7051",
		},
		Storage: &StorageConfig{
			DataDir:      "data/ledger",
			CacheSizeMB:  32,
			MemTableSize: 16,
		},
		Uploads: &UploadsConfig{
			Dir:     "uploads",
			MaxSize: 10 << 20,
		},
		Client: &ClientConfig{
			Address: "127.0.0.1:7051",
		},
		Log: logger.DefaultConfig(),
	}
}

// Load reads the optional YAML file at path, then applies .env and
// AGRICHAIN_* environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, errors.Wrap(err, "failed to load .env file")
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to parse config file %s", path)
		}
	}
	cfg.fillMissing()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fillMissing restores sections a partial YAML file left out
func (c *Config) fillMissing() {
	def := Default()
	if c.Node == nil {
		c.Node = def.Node
	}
	if c.Storage == nil {
		c.Storage = def.Storage
	}
	if c.Uploads == nil {
		c.Uploads = def.Uploads
	}
	if c.Client == nil {
		c.Client = def.Client
	}
	if c.Log == nil {
		c.Log = def.Log
	}
}

func (c *Config) applyEnv() {
	c.Node.Address = getEnvOrDefault(envPrefix+"NODE_ADDRESS", c.Node.Address)
	c.Node.TLSEnabled = getEnvBoolOrDefault(envPrefix+"TLS_ENABLED", c.Node.TLSEnabled)
	c.Node.TLSCertFile = getEnvOrDefault(envPrefix+"TLS_CERT_FILE", c.Node.TLSCertFile)
	c.Node.TLSKeyFile = getEnvOrDefault(envPrefix+"TLS_KEY_FILE", c.Node.TLSKeyFile)

	c.Storage.DataDir = getEnvOrDefault(envPrefix+"DATA_DIR", c.Storage.DataDir)
	c.Storage.InMemory = getEnvBoolOrDefault(envPrefix+"IN_MEMORY", c.Storage.InMemory)

	c.Uploads.Dir = getEnvOrDefault(envPrefix+"UPLOADS_DIR", c.Uploads.Dir)

	c.Client.Address = getEnvOrDefault(envPrefix+"CLIENT_ADDRESS", c.Client.Address)
	c.Client.UserID = getEnvOrDefault(envPrefix+"USER_ID", c.Client.UserID)
	c.Client.TLSEnabled = getEnvBoolOrDefault(envPrefix+"CLIENT_TLS_ENABLED", c.Client.TLSEnabled)
	c.Client.TLSRootCAFile = getEnvOrDefault(envPrefix+"TLS_ROOTCERT_FILE", c.Client.TLSRootCAFile)

	c.Log.Level = logger.LogLevel(getEnvOrDefault(envPrefix+"LOG_LEVEL", string(c.Log.Level)))
	c.Log.Encoding = getEnvOrDefault(envPrefix+"LOG_ENCODING", c.Log.Encoding)
	c.Log.Development = getEnvBoolOrDefault(envPrefix+"LOG_DEVELOPMENT", c.Log.Development)
}

// Validate checks the settings the node cannot start without
func (c *Config) Validate() error {
	if c.Node.Address == "" {
		return errors.New("node address is required")
	}
	if c.Node.TLSEnabled && (c.Node.TLSCertFile == "" || c.Node.TLSKeyFile == "") {
		return errors.New("tls is enabled but cert or key file is missing")
	}
	if !c.Storage.InMemory && c.Storage.DataDir == "" {
		return errors.New("storage data dir is required unless in_memory is set")
	}
	if c.Storage.CacheSizeMB < 0 {
		return errors.Errorf("invalid cache size %d", c.Storage.CacheSizeMB)
	}
	if c.Uploads.Dir == "" {
		return errors.New("uploads dir is required")
	}
	if c.Uploads.MaxSize <= 0 {
		return errors.Errorf("invalid upload size limit %d", c.Uploads.MaxSize)
	}
	switch c.Log.Encoding {
	case "", "console", "json":
	default:
		return errors.Errorf("unknown log encoding %q", c.Log.Encoding)
	}
	return nil
}

// loadEnvFile loads the first .env found. Missing files are fine.
func loadEnvFile() error {
	possiblePaths := []string{
		"config/.env",
		".env",
		"../config/.env",
		"../../config/.env",
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		// variables already set in the process win over the file
		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(err, "failed to parse .env file: %s", path)
		}
		logger.Debugf("Loaded environment from %s", path)
		return nil
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func (c *Config) PrintConfig() {
	logger.Infof("=== Configuration ===")
	logger.Infof(" > Node Address: %s", c.Node.Address)
	logger.Infof(" > TLS Enabled: %t", c.Node.TLSEnabled)
	if c.Storage.InMemory {
		logger.Infof(" > Storage: in memory")
	} else {
		logger.Infof(" > Data Dir: %s", c.Storage.DataDir)
	}
	logger.Infof(" > Cache Size: %d MB", c.Storage.CacheSizeMB)
	logger.Infof(" > Uploads Dir: %s", c.Uploads.Dir)
	logger.Infof(" > Log Level: %s", c.Log.Level)
}

package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/neonotify/neonotify/libs/log"
)

const (
	// DBBackendGoLevelDB is the default, pure-go backend.
	DBBackendGoLevelDB = "goleveldb"
	// DBBackendMemDB keeps everything in memory and is lost on shutdown.
	DBBackendMemDB = "memdb"
	// DBBackendPebble uses cockroachdb/pebble.
	DBBackendPebble = "pebble"
)

// NOTE: Most of the structs & relevant comments + the
// default configuration options were used to manually
// generate the config.toml. Please reflect any changes
// made here in the defaultConfigTemplate constant in
// config/toml.go
// NOTE: libs/cli must know to look in the config dir!
var (
	DefaultNeoNotifyDir = ".neonotify"
	defaultConfigDir    = "config"
	defaultDataDir      = "data"

	defaultConfigFileName = "config.toml"
	defaultConfigFilePath = filepath.Join(defaultConfigDir, defaultConfigFileName)
)

// Config defines the top level configuration for a neonotify node
type Config struct {
	// Top level options use an anonymous struct
	BaseConfig `mapstructure:",squash"`

	// Options for services
	RPC             *RPCConfig             `mapstructure:"rpc"`
	Index           *IndexConfig           `mapstructure:"index"`
	Engine          *EngineConfig          `mapstructure:"engine"`
	Instrumentation *InstrumentationConfig `mapstructure:"instrumentation"`
}

// DefaultConfig returns a default configuration for a neonotify node
func DefaultConfig() *Config {
	return &Config{
		BaseConfig:      DefaultBaseConfig(),
		RPC:             DefaultRPCConfig(),
		Index:           DefaultIndexConfig(),
		Engine:          DefaultEngineConfig(),
		Instrumentation: DefaultInstrumentationConfig(),
	}
}

// TestConfig returns a configuration that can be used for testing
func TestConfig() *Config {
	return &Config{
		BaseConfig:      TestBaseConfig(),
		RPC:             TestRPCConfig(),
		Index:           TestIndexConfig(),
		Engine:          TestEngineConfig(),
		Instrumentation: TestInstrumentationConfig(),
	}
}

// SetRoot sets the RootDir for all Config structs
func (cfg *Config) SetRoot(root string) *Config {
	cfg.BaseConfig.RootDir = root
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *Config) ValidateBasic() error {
	if err := cfg.BaseConfig.ValidateBasic(); err != nil {
		return err
	}
	if err := cfg.RPC.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [rpc] section: %w", err)
	}
	if err := cfg.Index.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [index] section: %w", err)
	}
	if err := cfg.Engine.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [engine] section: %w", err)
	}
	if err := cfg.Instrumentation.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [instrumentation] section: %w", err)
	}
	return nil
}

//-----------------------------------------------------------------------------
// BaseConfig

// BaseConfig defines the base configuration for a neonotify node
type BaseConfig struct { //nolint: maligned
	// The root directory for all data.
	// This should be set in viper so it can unmarshal into this struct
	RootDir string `mapstructure:"home"`

	// Database backend: goleveldb | memdb | pebble
	// * goleveldb (github.com/syndtr/goleveldb - most popular implementation)
	//   - pure go
	//   - stable
	// * memdb
	//   - in-memory only, for tests and throwaway runs
	// * pebble (github.com/cockroachdb/pebble)
	//   - pure go
	//   - LSM engine with faster range scans on large indexes
	DBBackend string `mapstructure:"db-backend"`

	// Database directory
	DBPath string `mapstructure:"db-dir"`

	// Output level for logging
	LogLevel string `mapstructure:"log-level"`

	// Output format: 'plain' (colored text) or 'json'
	LogFormat string `mapstructure:"log-format"`
}

// DefaultBaseConfig returns a default base configuration for a neonotify node
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		LogLevel:  log.LogLevelInfo,
		LogFormat: log.LogFormatPlain,
		DBBackend: DBBackendGoLevelDB,
		DBPath:    defaultDataDir,
	}
}

// TestBaseConfig returns a base configuration for testing a neonotify node
func TestBaseConfig() BaseConfig {
	cfg := DefaultBaseConfig()
	cfg.DBBackend = DBBackendMemDB
	return cfg
}

// ConfigFile returns the full path to the config.toml file
func (cfg BaseConfig) ConfigFile() string {
	return rootify(defaultConfigFilePath, cfg.RootDir)
}

// DBDir returns the full path to the database directory
func (cfg BaseConfig) DBDir() string {
	return rootify(cfg.DBPath, cfg.RootDir)
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg BaseConfig) ValidateBasic() error {
	switch cfg.LogFormat {
	case log.LogFormatJSON, log.LogFormatText, log.LogFormatPlain:
	default:
		return errors.New("unknown log format (must be 'plain', 'text' or 'json')")
	}

	switch cfg.DBBackend {
	case DBBackendGoLevelDB, DBBackendMemDB, DBBackendPebble:
	default:
		return fmt.Errorf("unknown db-backend %q (must be one of %s)",
			cfg.DBBackend, strings.Join([]string{DBBackendGoLevelDB, DBBackendMemDB, DBBackendPebble}, ", "))
	}

	return nil
}

//-----------------------------------------------------------------------------
// RPCConfig

// RPCConfig defines the configuration options for the notification query API.
type RPCConfig struct {
	// TCP address for the HTTP query API to listen on
	ListenAddress string `mapstructure:"laddr"`

	// A list of origins a cross-domain request can be executed from.
	// If the special '*' value is present in the list, all origins will be allowed.
	// An origin may contain a wildcard (*) to replace 0 or more characters (i.e.: http://*.domain.com).
	// Only one wildcard can be used per origin.
	CORSAllowedOrigins []string `mapstructure:"cors-allowed-origins"`

	// A list of methods the client is allowed to use with cross-domain requests.
	CORSAllowedMethods []string `mapstructure:"cors-allowed-methods"`

	// A list of non simple headers the client is allowed to use with cross-domain requests.
	CORSAllowedHeaders []string `mapstructure:"cors-allowed-headers"`

	// Maximum time spent reading a request
	ReadTimeout time.Duration `mapstructure:"read-timeout"`

	// Maximum time spent writing a response
	WriteTimeout time.Duration `mapstructure:"write-timeout"`

	// Maximum size of request header, in bytes
	MaxHeaderBytes int `mapstructure:"max-header-bytes"`
}

// DefaultRPCConfig returns a default configuration for the query API
func DefaultRPCConfig() *RPCConfig {
	return &RPCConfig{
		ListenAddress:      "127.0.0.1:8080",
		CORSAllowedOrigins: []string{},
		CORSAllowedMethods: []string{http.MethodHead, http.MethodGet},
		CORSAllowedHeaders: []string{"Origin", "Accept", "Content-Type", "X-Requested-With"},
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       30 * time.Second,
		MaxHeaderBytes:     1 << 20, // same as the net/http default
	}
}

// TestRPCConfig returns a configuration for testing the query API
func TestRPCConfig() *RPCConfig {
	cfg := DefaultRPCConfig()
	cfg.ListenAddress = "127.0.0.1:0"
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *RPCConfig) ValidateBasic() error {
	if cfg.ReadTimeout < 0 {
		return errors.New("read-timeout can't be negative")
	}
	if cfg.WriteTimeout < 0 {
		return errors.New("write-timeout can't be negative")
	}
	if cfg.MaxHeaderBytes < 0 {
		return errors.New("max-header-bytes can't be negative")
	}
	return nil
}

// IsCorsEnabled returns true if cross-origin resource sharing is enabled.
func (cfg *RPCConfig) IsCorsEnabled() bool {
	return len(cfg.CORSAllowedOrigins) != 0
}

//-----------------------------------------------------------------------------
// IndexConfig

// IndexConfig defines the configuration for the notification indexer.
type IndexConfig struct {
	// Number of executed transactions that may wait for the indexer before
	// publishers block.
	QueueSize int `mapstructure:"queue-size"`

	// Size of the in-memory token registry cache, in megabytes.
	TokenCacheSizeMB int `mapstructure:"token-cache-size-mb"`
}

// DefaultIndexConfig returns a default configuration for the indexer.
func DefaultIndexConfig() *IndexConfig {
	return &IndexConfig{
		QueueSize:        256,
		TokenCacheSizeMB: 8,
	}
}

// TestIndexConfig returns a configuration for testing the indexer.
func TestIndexConfig() *IndexConfig {
	cfg := DefaultIndexConfig()
	cfg.QueueSize = 16
	cfg.TokenCacheSizeMB = 1
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *IndexConfig) ValidateBasic() error {
	if cfg.QueueSize < 1 {
		return errors.New("queue-size must be positive")
	}
	if cfg.TokenCacheSizeMB < 1 {
		return errors.New("token-cache-size-mb must be positive")
	}
	return nil
}

//-----------------------------------------------------------------------------
// EngineConfig

// EngineConfig defines how neonotify reaches the node that executes
// transactions and answers the token introspection calls.
type EngineConfig struct {
	// JSON-RPC endpoint of the node. An empty value disables the follower, the
	// query API still serves whatever is already indexed.
	RPCAddress string `mapstructure:"rpc-address"`

	// How often to poll the node for new blocks once caught up.
	PollInterval time.Duration `mapstructure:"poll-interval"`

	// Timeout applied to every JSON-RPC call.
	RequestTimeout time.Duration `mapstructure:"request-timeout"`

	// First block to index when the store has no sync height yet.
	StartHeight uint32 `mapstructure:"start-height"`
}

// DefaultEngineConfig returns a default engine configuration.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		RPCAddress:     "",
		PollInterval:   5 * time.Second,
		RequestTimeout: 10 * time.Second,
		StartHeight:    0,
	}
}

// TestEngineConfig returns an engine configuration for tests.
func TestEngineConfig() *EngineConfig {
	cfg := DefaultEngineConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.RequestTimeout = time.Second
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *EngineConfig) ValidateBasic() error {
	if cfg.PollInterval <= 0 {
		return errors.New("poll-interval must be positive")
	}
	if cfg.RequestTimeout <= 0 {
		return errors.New("request-timeout must be positive")
	}
	if cfg.RPCAddress != "" {
		u, err := url.Parse(cfg.RPCAddress)
		if err != nil {
			return fmt.Errorf("invalid rpc-address: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("rpc-address must be an http(s) URL, got %q", cfg.RPCAddress)
		}
	}
	return nil
}

//-----------------------------------------------------------------------------
// InstrumentationConfig

// InstrumentationConfig defines the configuration for metrics reporting.
type InstrumentationConfig struct {
	// When true, Prometheus metrics are served under /metrics on
	// PrometheusListenAddr.
	// Check out the documentation for the list of available metrics.
	Prometheus bool `mapstructure:"prometheus"`

	// Address to listen for Prometheus collector(s) connections.
	PrometheusListenAddr string `mapstructure:"prometheus-listen-addr"`

	// Instrumentation namespace.
	Namespace string `mapstructure:"namespace"`
}

// DefaultInstrumentationConfig returns a default configuration for metrics
// reporting.
func DefaultInstrumentationConfig() *InstrumentationConfig {
	return &InstrumentationConfig{
		Prometheus:           false,
		PrometheusListenAddr: ":26660",
		Namespace:            "neonotify",
	}
}

// TestInstrumentationConfig returns a default configuration for metrics
// reporting.
func TestInstrumentationConfig() *InstrumentationConfig {
	return DefaultInstrumentationConfig()
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *InstrumentationConfig) ValidateBasic() error {
	if cfg.Prometheus && cfg.PrometheusListenAddr == "" {
		return errors.New("prometheus-listen-addr can't be empty when prometheus is enabled")
	}
	return nil
}

//-----------------------------------------------------------------------------
// Utils

// helper function to make config creation independent of root dir
func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

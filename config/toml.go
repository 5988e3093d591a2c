package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/creachadair/atomicfile"
)

// defaultDirPerm is the default permissions used when creating directories.
const defaultDirPerm = 0700

var configTemplate *template.Template

func init() {
	var err error
	tmpl := template.New("configFileTemplate").Funcs(template.FuncMap{
		"StringsJoin": strings.Join,
	})
	if configTemplate, err = tmpl.Parse(defaultConfigTemplate); err != nil {
		panic(err)
	}
}

/****** these are for production settings ***********/

// EnsureRoot creates the root directory with its config and data
// subdirectories and writes a default config file when none is present.
func EnsureRoot(rootDir string) error {
	for _, dir := range []string{
		rootDir,
		filepath.Join(rootDir, defaultConfigDir),
		filepath.Join(rootDir, defaultDataDir),
	} {
		if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
			return fmt.Errorf("could not create directory %q: %w", dir, err)
		}
	}
	return writeDefaultConfigFileIfNone(rootDir)
}

// WriteConfigFile renders config using the template and writes it to
// configFilePath. This function is called by cmd/neonotify/commands/init.go
func WriteConfigFile(rootDir string, config *Config) error {
	return config.WriteToTemplate(filepath.Join(rootDir, defaultConfigFilePath))
}

// WriteToTemplate writes the config to the exact file specified by
// the path, in the default toml template and does not mangle the path
// or filename at all.
func (cfg *Config) WriteToTemplate(path string) error {
	var buffer bytes.Buffer

	if err := configTemplate.Execute(&buffer, cfg); err != nil {
		return err
	}

	return atomicfile.WriteData(path, buffer.Bytes(), 0644)
}

func writeDefaultConfigFileIfNone(rootDir string) error {
	configFilePath := filepath.Join(rootDir, defaultConfigFilePath)
	if _, err := os.Stat(configFilePath); os.IsNotExist(err) {
		return WriteConfigFile(rootDir, DefaultConfig())
	}
	return nil
}

// Note: any changes to the comments/variables/mapstructure
// must be reflected in the appropriate struct in config/config.go
const defaultConfigTemplate = `# This is a TOML config file.
# For more information, see https://github.com/toml-lang/toml

# NOTE: Any path below can be absolute (e.g. "/var/neonotify/data") or
# relative to the home directory (e.g. "data"). The home directory is
# "$HOME/.neonotify" by default, but could be changed via $NN_HOME env variable
# or --home cmd flag.

#######################################################################
###                   Main Base Config Options                      ###
#######################################################################

# Database backend: goleveldb | memdb | pebble
# * goleveldb (github.com/syndtr/goleveldb - most popular implementation)
#   - pure go
#   - stable
# * memdb
#   - in-memory only, everything is lost on shutdown
# * pebble (github.com/cockroachdb/pebble)
#   - pure go
#   - LSM engine with faster range scans on large indexes
db-backend = "{{ .BaseConfig.DBBackend }}"

# Database directory
db-dir = "{{ js .BaseConfig.DBPath }}"

# Output level for logging: debug | info | warn | error
log-level = "{{ .BaseConfig.LogLevel }}"

# Output format: 'plain' (colored text) or 'json'
log-format = "{{ .BaseConfig.LogFormat }}"

#######################################################################
###                 Advanced Configuration Options                  ###
#######################################################################

#######################################################
###       Query API Configuration Options           ###
#######################################################
[rpc]

# TCP address for the HTTP query API to listen on
laddr = "{{ .RPC.ListenAddress }}"

# A list of origins a cross-domain request can be executed from
# Default value '[]' disables cors support
# Use '["*"]' to allow any origin
cors-allowed-origins = [{{ range .RPC.CORSAllowedOrigins }}{{ printf "%q, " . }}{{end}}]

# A list of methods the client is allowed to use with cross-domain requests
cors-allowed-methods = [{{ range .RPC.CORSAllowedMethods }}{{ printf "%q, " . }}{{end}}]

# A list of non simple headers the client is allowed to use with cross-domain requests
cors-allowed-headers = [{{ range .RPC.CORSAllowedHeaders }}{{ printf "%q, " . }}{{end}}]

# Maximum time spent reading a request
read-timeout = "{{ .RPC.ReadTimeout }}"

# Maximum time spent writing a response
write-timeout = "{{ .RPC.WriteTimeout }}"

# Maximum size of request header, in bytes
max-header-bytes = {{ .RPC.MaxHeaderBytes }}

#######################################################
###         Indexer Configuration Options           ###
#######################################################
[index]

# Number of executed transactions that may wait for the indexer before
# publishers block
queue-size = {{ .Index.QueueSize }}

# Size of the in-memory token registry cache, in megabytes
token-cache-size-mb = {{ .Index.TokenCacheSizeMB }}

#######################################################
###          Engine Configuration Options           ###
#######################################################
[engine]

# JSON-RPC endpoint of the node, e.g. "http://127.0.0.1:10332".
# Leave empty to only serve what is already indexed.
rpc-address = "{{ .Engine.RPCAddress }}"

# How often to poll the node for new blocks once caught up
poll-interval = "{{ .Engine.PollInterval }}"

# Timeout applied to every JSON-RPC call
request-timeout = "{{ .Engine.RequestTimeout }}"

# First block to index when the store has no sync height yet
start-height = {{ .Engine.StartHeight }}

#######################################################
###       Instrumentation Configuration Options     ###
#######################################################
[instrumentation]

# When true, Prometheus metrics are served under /metrics on
# PrometheusListenAddr.
# Check out the documentation for the list of available metrics.
prometheus = {{ .Instrumentation.Prometheus }}

# Address to listen for Prometheus collector(s) connections
prometheus-listen-addr = "{{ .Instrumentation.PrometheusListenAddr }}"

# Instrumentation namespace
namespace = "{{ .Instrumentation.Namespace }}"
`

/****** these are for test settings ***********/

// ResetTestRoot creates a fresh home directory under dir populated with the
// test configuration.
func ResetTestRoot(dir, testName string) (*Config, error) {
	rootDir, err := os.MkdirTemp(dir, fmt.Sprintf("%s-", testName))
	if err != nil {
		return nil, err
	}

	conf := TestConfig()
	for _, sub := range []string{defaultConfigDir, defaultDataDir} {
		if err := os.MkdirAll(filepath.Join(rootDir, sub), defaultDirPerm); err != nil {
			return nil, err
		}
	}
	if err := WriteConfigFile(rootDir, conf); err != nil {
		return nil, err
	}

	return conf.SetRoot(rootDir), nil
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/neonotify/neonotify/config"
	"github.com/neonotify/neonotify/libs/log"
)

// EnvPrefix is the prefix of every environment variable read by the CLI,
// e.g. NN_HOME or NN_ENGINE_RPC_ADDRESS.
const EnvPrefix = "NN"

// ParseConfig unmarshals everything viper collected into conf, sets the
// root directory and validates the result.
func ParseConfig(conf *config.Config) (*config.Config, error) {
	if err := viper.Unmarshal(conf); err != nil {
		return nil, err
	}

	conf.SetRoot(conf.RootDir)

	if err := conf.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("error in config file: %w", err)
	}
	return conf, nil
}

// newLogger builds the process logger from the parsed configuration.
func newLogger(conf *config.Config) (log.Logger, error) {
	return log.NewDefaultLogger(conf.LogFormat, conf.LogLevel)
}

// RootCommand constructs the root command-line entry point. conf is filled
// in before any sub-command runs. The caller is expected to wrap the command
// with cli.PrepareBaseCmd, which loads flags and the config file into viper.
func RootCommand(conf *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "neonotify",
		Short: "Index NEO smart contract notifications and serve them over HTTP",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == VersionCmd.Name() {
				return nil
			}

			pconf, err := ParseConfig(conf)
			if err != nil {
				return err
			}
			*conf = *pconf
			if cmd.Name() == InitCmdName {
				return nil
			}
			return config.EnsureRoot(conf.RootDir)
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().String("log-level", conf.LogLevel, "log level")
	cmd.PersistentFlags().String("log-format", conf.LogFormat, "log format (plain | json)")
	return cmd
}

// addDBFlags exposes the store options shared by run and ingest.
func addDBFlags(cmd *cobra.Command, conf *config.Config) {
	cmd.Flags().String(
		"db-backend",
		conf.DBBackend,
		"database backend: goleveldb | memdb | pebble")
	cmd.Flags().String(
		"db-dir",
		conf.DBPath,
		"database directory")
}

package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/neonotify/neonotify/config"
)

// InitCmdName is the name of the init command.
const InitCmdName = "init"

// MakeInitFilesCommand returns the command that writes config.toml, with
// any flag or environment overrides applied, and creates the data directory.
func MakeInitFilesCommand(conf *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   InitCmdName,
		Short: "Initialize the neonotify home directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initFilesWithConfig(cmd, conf)
		},
	}
	addDBFlags(cmd, conf)
	addEngineFlags(cmd, conf)
	return cmd
}

func initFilesWithConfig(cmd *cobra.Command, conf *config.Config) error {
	logger, err := newLogger(conf)
	if err != nil {
		return err
	}

	cfgFile := conf.ConfigFile()
	if _, err := os.Stat(cfgFile); err == nil {
		logger.Info("found config file", "path", cfgFile)
		return config.EnsureRoot(conf.RootDir)
	}

	if err := os.MkdirAll(filepath.Dir(cfgFile), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := config.WriteConfigFile(conf.RootDir, conf); err != nil {
		return err
	}
	logger.Info("generated config file", "path", cfgFile)

	// The config file exists now, so this only creates the data directory.
	return config.EnsureRoot(conf.RootDir)
}

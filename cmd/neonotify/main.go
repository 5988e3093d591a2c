package main

import (
	"context"
	"os"

	"github.com/neonotify/neonotify/cmd/neonotify/commands"
	"github.com/neonotify/neonotify/config"
	"github.com/neonotify/neonotify/libs/cli"
)

func main() {
	conf := config.DefaultConfig()

	rootCmd := commands.RootCommand(conf)
	rootCmd.AddCommand(
		commands.MakeInitFilesCommand(conf),
		commands.NewRunNodeCmd(conf),
		commands.NewIngestCmd(conf),
		commands.VersionCmd,
	)

	cmd := cli.PrepareBaseCmd(rootCmd, commands.EnvPrefix, cli.DefaultHome(config.DefaultNeoNotifyDir))
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"midas/cmd/service"
	"midas/core"
)

func main() {
	if err := godotenv.Load(".env.local"); err != nil {
		core.GetLogger().Debug("no .env.local file loaded")
	}

	root := &cobra.Command{
		Use:   "midas",
		Short: "offline voice assistant server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage: true,
	}
	root.AddCommand(service.NewCommand(), service.NewRetrieveCommand(), service.NewWarmupCommand())

	if err := root.Execute(); err != nil {
		core.GetLogger().With(map[string]any{"error": err}).Error("command failed")
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"cleanrate/app/config"
	"cleanrate/app/logging"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
	cfg     config.Config
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cleanrate",
		Short:         "cleanrate rates cleaning projects from reviews of their tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if debug {
				loaded.Log.Level = "debug"
			}
			if err := logging.Init(os.Stderr, loaded.Log.Level, loaded.Log.Format); err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (yaml or json)")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.AddCommand(serveCmd(), migrateCmd(), rateCmd())
	return cmd
}

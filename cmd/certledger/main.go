package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const programName = "certledger"

var (
	globalFlags = struct {
		debug bool
	}{}
	configFile string
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Issue and manage academic credential certificates",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "", "path to config file")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cmd.SetContext(WithContext(cmd.Context(), cfg))
		return nil
	}

	rootCmd.AddCommand(migrateCommand())
	rootCmd.AddCommand(issueCommand())
	rootCmd.AddCommand(issueVersionCommand())
	rootCmd.AddCommand(showCommand())
	rootCmd.AddCommand(accessCommand())
	rootCmd.AddCommand(creditCommand())
	rootCmd.AddCommand(adminCommand())
	rootCmd.AddCommand(sagaCommand())
	return rootCmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

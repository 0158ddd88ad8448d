package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/caravelhq/caravel/cmd/caravel/commands"
	"github.com/caravelhq/caravel/cmd/caravel/config"
)

// version is set through ldflags at build time.
var version = "dev"

// rootCmd is the top level `caravel` command on which the other subcommands are attached to.
var rootCmd = &cobra.Command{
	Use:   "caravel",
	Short: "Caravel is a peer-to-peer file transfer utility for local networks.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(); err != nil {
			return fmt.Errorf("initializing config: %w", err)
		}
		if err := viper.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
			return fmt.Errorf("binding verbose flag: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug information to a file in the config directory")

	rootCmd.AddCommand(commands.Send())
	rootCmd.AddCommand(commands.Receive())
	rootCmd.AddCommand(commands.Config())
	rootCmd.AddCommand(commands.Version(version))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/custodex/custodex/cmd/custodex/commands"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "custodex",
	Short: "Custodex conditional payment client",
	Long:  "A command line client for USDC conditional payments held in on-chain escrow",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&commands.ConfigPath, "config", "", "Path to config file (default: ~/.custodex/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&commands.Yes, "yes", false, "Skip confirmation prompts")
}

func main() {
	rootCmd.AddCommand(commands.NewStatusCmd())
	rootCmd.AddCommand(commands.NewCreateCmd())
	rootCmd.AddCommand(commands.NewInboxCmd())
	rootCmd.AddCommand(commands.NewSentCmd())
	rootCmd.AddCommand(commands.NewAcceptCmd())
	rootCmd.AddCommand(commands.NewDeclineCmd())
	rootCmd.AddCommand(commands.NewClaimCmd())
	rootCmd.AddCommand(commands.NewReleaseCmd())
	rootCmd.AddCommand(commands.NewActivityCmd())
	rootCmd.AddCommand(commands.NewWatchCmd())
	rootCmd.AddCommand(commands.NewWalletCmd())
	rootCmd.AddCommand(commands.NewConfigCmd())
	rootCmd.AddCommand(commands.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package cmd

import (
	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	verbose    bool
	quiet      bool
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "cass-installer",
	Short: "Install the cass binary from its GitHub releases",
	Long: `cass-installer downloads a cass release for this machine, verifies its
SHA-256 checksum (and optionally its OpenPGP signature), extracts the binary
and installs it into a per-user bin directory.

Running without a subcommand is the same as running "install".`,
	Args: cobra.MaximumNArgs(1),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetHandler(cli.New(cmd.ErrOrStderr()))
		if verbose {
			log.SetLevel(log.DebugLevel)
			log.Debugf("Verbose logging enabled")
		} else if quiet {
			log.SetLevel(log.ErrorLevel)
		} else {
			log.SetLevel(log.InfoLevel)
		}
		log.Debugf("Config file: %s", configFile)
	},
	RunE:          runInstall,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Disable automatic command sorting to maintain semantic order
	cobra.EnableCommandSorting = false

	RootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file (default: discovered, see \"config\")")
	RootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Increase log verbosity")
	RootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")

	// The root command installs too, so it carries the install flags
	addInstallFlags(RootCmd)

	RootCmd.AddGroup(&cobra.Group{
		ID:    "workflow",
		Title: "Workflow Commands:",
	})
	RootCmd.AddGroup(&cobra.Group{
		ID:    "utility",
		Title: "Utility Commands:",
	})

	RootCmd.SetHelpCommandGroupID("utility")
	RootCmd.SetCompletionCommandGroupID("utility")

	InstallCommand.GroupID = "workflow"
	CheckCommand.GroupID = "workflow"
	ConfigCommand.GroupID = "utility"

	RootCmd.AddCommand(InstallCommand) // Download, verify and install
	RootCmd.AddCommand(CheckCommand)   // Preview artifact names and availability
	RootCmd.AddCommand(ConfigCommand)  // Show the effective configuration
}

package cmd

import (
	"fmt"
	"io"

	"github.com/coding-agent-search/cass-installer/pkg/config"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

// ConfigCommand represents the config command
var ConfigCommand = &cobra.Command{
	Use:   "config",
	Short: "Display the effective configuration",
	Long: `Display the configuration an install would use: the compiled-in release
description merged with the config file, if one is found.

The config file is looked up in this order:
  1. --config
  2. $` + config.EnvConfig + `
  3. .config/cass-installer.yml in the current directory or any parent
  4. cass-installer/config.yml in the user config directory`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		return RunConfig(format, configFile, cmd.OutOrStdout())
	},
}

// RunConfig writes the effective configuration in the given format.
func RunConfig(format, configPath string, w io.Writer) error {
	if format != "yaml" && format != "json" {
		return fmt.Errorf("format %s not implemented", format)
	}

	cfg, path, err := config.LoadOrDiscover(configPath)
	if err != nil {
		return err
	}

	var opts []yaml.EncodeOption
	if format == "json" {
		opts = append(opts, yaml.JSON())
	} else {
		source := path
		if source == "" {
			source = "built-in defaults"
		}
		fmt.Fprintf(w, "# source: %s\n", source)
	}

	data, err := yaml.MarshalWithOptions(cfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to convert to %s: %w", format, err)
	}
	_, err = w.Write(data)
	return err
}

func init() {
	ConfigCommand.Flags().StringP("format", "f", "yaml", "Output format (yaml, json)")
}

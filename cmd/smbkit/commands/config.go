package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/smbkit/internal/cli/output"
	"github.com/marmos91/smbkit/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults and SMBKIT_* environment
overrides are applied. Passwords are masked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		printer, err := newPrinter(cmd)
		if err != nil {
			return err
		}
		masked := maskPasswords(cfg)
		if printer.Format() == output.FormatText {
			return output.PrintYAML(cmd.OutOrStdout(), masked)
		}
		return printer.Print(masked)
	},
}

var schemaOutput string

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Generate the JSON schema of the configuration file",
	Long: `Generate a JSON schema for the smbkit configuration file, for IDE
completion and validation.`,
	Example: `  smbkit config schema
  smbkit config schema --file config.schema.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := config.JSONSchema()
		if err != nil {
			return err
		}
		if schemaOutput != "" {
			if err := os.WriteFile(schemaOutput, data, 0644); err != nil {
				return fmt.Errorf("failed to write schema file: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "JSON schema written to %s\n", schemaOutput)
			return nil
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var initForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := flags.configFile
		var err error
		if path == "" {
			path, err = config.InitConfig(initForce)
		} else {
			err = config.InitConfigAt(path, initForce)
		}
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
		return nil
	},
}

func init() {
	configSchemaCmd.Flags().StringVar(&schemaOutput, "file", "", "write the schema to this file instead of stdout")
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSchemaCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configInitCmd)
}

// maskPasswords returns a copy of cfg safe to print.
func maskPasswords(cfg *config.Config) *config.Config {
	out := *cfg
	out.Credentials = make([]config.CredentialConfig, len(cfg.Credentials))
	for i, c := range cfg.Credentials {
		if c.Password != "" {
			c.Password = "********"
		}
		out.Credentials[i] = c
	}
	return &out
}

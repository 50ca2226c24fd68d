package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/amanrdf/configs"
	"github.com/Aman-CERP/amanrdf/internal/config"
	"github.com/Aman-CERP/amanrdf/internal/output"
	"github.com/Aman-CERP/amanrdf/internal/schema"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Create, inspect and validate amanrdf configuration.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/amanrdf/config.yaml)
  3. Project config (--config, or amanrdf.yaml in the working directory)
  4. Environment variables (AMANRDF_*)`,
		Example: `  # Create amanrdf.yaml in the working directory
  amanrdf config init

  # Show the effective configuration
  amanrdf config show

  # Check a legacy configuration file
  amanrdf config validate -c settings.tsv`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigValidateCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		user   bool
		legacy bool
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration template",
		Long: `Write a commented configuration template.

By default amanrdf.yaml is created in the working directory. --user
creates the user configuration instead and --legacy writes the
tab-separated format as amanrdf.tsv.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if user && legacy {
				return fmt.Errorf("--user and --legacy are mutually exclusive")
			}

			path, template := "amanrdf.yaml", configs.ProjectConfigTemplate
			switch {
			case user:
				path, template = config.GetUserConfigPath(), configs.UserConfigTemplate
			case legacy:
				path, template = "amanrdf.tsv", configs.LegacyConfigTemplate
			}
			return writeTemplate(output.New(cmd.OutOrStdout()), path, template, force)
		},
	}

	cmd.Flags().BoolVar(&user, "user", false, "Create the user configuration file")
	cmd.Flags().BoolVar(&legacy, "legacy", false, "Write the legacy tab-separated format")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}

func writeTemplate(out *output.Writer, path, template string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		out.Warningf("%s already exists", path)
		out.Status("", "Use --force to overwrite it")
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(template), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Successf("Created %s", path)
	out.Newline()
	out.Status("", "Edit the file, then run 'amanrdf config validate'")
	return nil
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			return enc.Close()
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.Success("Configuration is valid")
			ix := cfg.Indexing
			pairs := [][2]string{
				{"data", ix.Data},
				{"backend", cfg.Backend.Kind},
				{"workers", strconv.Itoa(ix.Workers)},
				{"bulk size", strconv.Itoa(ix.BulkSize)},
			}
			for _, sc := range schema.FromConfig(cfg).All() {
				if sc.Role == schema.RoleBase && !ix.Base.Enabled {
					continue
				}
				pairs = append(pairs, [2]string{string(sc.Role), sc.Index})
			}
			out.KeyValues(pairs)
			return nil
		},
	}
}

package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/weave/internal/config"
	"github.com/vango-dev/weave/internal/errors"
)

func configCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage weave.json",
		Long: `Create and validate the weave configuration file.

Examples:
  weave config init
  weave config init --yaml
  weave config validate
  weave config validate --config ./deploy/weave.yaml`,
	}

	cmd.AddCommand(
		configInitCmd(),
		configValidateCmd(flags),
	)

	return cmd
}

func configInitCmd() *cobra.Command {
	var (
		useYAML bool
		force   bool
		dir     string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd, dir, useYAML, force)
		},
	}

	cmd.Flags().BoolVar(&useYAML, "yaml", false, "Write weave.yaml instead of weave.json")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Directory to write to")

	return cmd
}

func runConfigInit(cmd *cobra.Command, dir string, useYAML, force bool) error {
	name := config.ConfigFileName
	if useYAML {
		name = config.YAMLConfigFileName
	}
	path := filepath.Join(dir, name)

	if _, err := os.Stat(path); err == nil && !force {
		return errors.New("W041").
			WithSubject(path).
			WithDetail("The file already exists.").
			WithSuggestion("Use --force to overwrite it")
	}

	cfg := config.New()
	cfg.Name = filepath.Base(absOrSelf(dir))
	if err := cfg.SaveTo(path); err != nil {
		return err
	}

	success(cmd.OutOrStdout(), "Created %s", path)
	return nil
}

func configValidateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags, false)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			success(w, "%s is valid", cfg.Path())
			info(w, "max flush iterations: %d", cfg.Scheduler.MaxIterations)
			info(w, "devtools: %s", cfg.Devtools.Addr)
			if kinds := cfg.DisabledKinds(); len(kinds) > 0 {
				info(w, "native kinds: %v", kinds)
			}
			return nil
		},
	}
}

// loadConfig loads the file named by --config, or the nearest weave.json
// or weave.yaml. With allowMissing, a missing file yields defaults.
func loadConfig(flags *globalFlags, allowMissing bool) (*config.Config, error) {
	if flags.configPath != "" {
		return config.LoadFile(flags.configPath)
	}

	root, err := config.FindProjectRoot(".")
	if err != nil {
		if allowMissing && errors.Code(err) == "W040" {
			return config.New(), nil
		}
		return nil, err
	}
	return config.Load(root)
}

func absOrSelf(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	return abs
}

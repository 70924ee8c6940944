// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tfrun/tfrun/internal/config"
)

var configKeys = []string{
	"terraform_path", "log_dir", "log_terraform_output", "fail_on_log_errors",
	"hook_shell", "shell", "timeout", "ui.verbose", "ui.color_scheme",
}

// newConfigCommand creates the `tfrun config` command tree.
// Subcommands that read configuration use the App's ConfigProvider.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage tfrun configuration",
		Long: `Manage tfrun configuration.

Configuration is read from the first of:
  - the file given with --config
  - Linux: ~/.config/tfrun/config.cue
    macOS: ~/Library/Application Support/tfrun/config.cue
    Windows: %APPDATA%\tfrun\config.cue
  - tfrun.cue in --source-dir for run, describe and status, else in the
    working directory

Every key can be overridden with a TFRUN_<KEY> environment variable,
e.g. TFRUN_HOOK_SHELL=virtual or TFRUN_UI_VERBOSE=true.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath(app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setConfigValue(cmd.Context(), app, args[0], args[1])
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context(), "")
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App) error {
	cfg, err := app.loadConfig(ctx, "")
	if err != nil {
		return err
	}

	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	w := app.stdout

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	if path, locateErr := config.Locate(app.loadOptions("")); locateErr == nil && path != "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), path)
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	orDefault := func(value, fallback string) string {
		if value == "" {
			return SubtitleStyle.Render(fallback)
		}
		return valueStyle.Render(value)
	}
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("terraform_path"), orDefault(cfg.TerraformPath, "(terraform on PATH)"))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("log_dir"), orDefault(cfg.LogDir, "(<source-dir>/.tfrun/logs)"))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("log_terraform_output"), valueStyle.Render(strconv.FormatBool(cfg.LogTerraformOutput)))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("fail_on_log_errors"), valueStyle.Render(strconv.FormatBool(cfg.FailOnLogErrors)))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("hook_shell"), orDefault(string(cfg.HookShell), "native"))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("shell"), orDefault(cfg.Shell, "(bash, then sh)"))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("timeout"), orDefault(cfg.Timeout, "(none)"))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("ui"))
	fmt.Fprintf(w, "  verbose: %s\n", valueStyle.Render(strconv.FormatBool(cfg.UI.Verbose)))
	fmt.Fprintf(w, "  color_scheme: %s\n", orDefault(string(cfg.UI.ColorScheme), "auto"))

	return nil
}

func initConfig(app *App) error {
	cfgPath, created, err := config.CreateDefaultConfig()
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	if !created {
		fmt.Fprintf(app.stdout, "%s Configuration already exists at %s\n", WarningStyle.Render("!"), cfgPath)
		return nil
	}
	fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), cfgPath)
	return nil
}

func showConfigPath(app *App) error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	cfgPath, err := config.ConfigFilePath()
	if err != nil {
		return err
	}

	fmt.Fprintf(app.stdout, "Config directory: %s\n", cfgDir)
	fmt.Fprintf(app.stdout, "Config file: %s\n", cfgPath)
	if active, locateErr := config.Locate(app.loadOptions("")); locateErr == nil && active != "" && active != cfgPath {
		fmt.Fprintf(app.stdout, "Active config file: %s\n", active)
	}
	return nil
}

// setConfigValue updates one key and writes the configuration back to the
// --config file, or to the user config file.
func setConfigValue(ctx context.Context, app *App, key, value string) error {
	cfg, err := app.loadConfig(ctx, "")
	if err != nil {
		return err
	}

	parseBool := func() (bool, error) {
		b, parseErr := strconv.ParseBool(value)
		if parseErr != nil {
			return false, fmt.Errorf("invalid %s: %q is not a boolean", key, value)
		}
		return b, nil
	}

	switch key {
	case "terraform_path":
		cfg.TerraformPath = value
	case "log_dir":
		cfg.LogDir = value
	case "log_terraform_output":
		if cfg.LogTerraformOutput, err = parseBool(); err != nil {
			return err
		}
	case "fail_on_log_errors":
		if cfg.FailOnLogErrors, err = parseBool(); err != nil {
			return err
		}
	case "hook_shell":
		cfg.HookShell = config.HookShell(value)
	case "shell":
		cfg.Shell = value
	case "timeout":
		cfg.Timeout = value
	case "ui.verbose":
		if cfg.UI.Verbose, err = parseBool(); err != nil {
			return err
		}
	case "ui.color_scheme":
		cfg.UI.ColorScheme = config.ColorScheme(value)
	default:
		return fmt.Errorf("unknown configuration key: %s\nValid keys: %v", key, configKeys)
	}

	if valid, errs := cfg.IsValid(); !valid {
		return errors.Join(errs...)
	}

	path := app.cfgFile
	if path == "" {
		if path, err = config.ConfigFilePath(); err != nil {
			return err
		}
	}
	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(app.stdout, "%s Set %s = %s\n", SuccessStyle.Render("✓"), key, value)
	return nil
}

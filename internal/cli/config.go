// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config show, path and init commands.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/config"
)

func newConfigCommand(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}
	cmd.AddCommand(
		newConfigShowCommand(global),
		newConfigPathCommand(global),
		newConfigInitCommand(global),
	)
	return cmd
}

// configFilePath returns --config or the default location.
func (o *globalOptions) configFilePath() (string, error) {
	if o.configFile != "" {
		return o.configFile, nil
	}
	return config.ConfigPath()
}

func newConfigShowCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after the file, .env, environment variables and
flags are applied. Problems that would stop the client are listed after it.`,
		Args: cobra.NoArgs,
		RunE: withApp(global, func(cmd *cobra.Command, _ []string, app *App) error {
			out := cmd.OutOrStdout()
			if global.json {
				return NewJSONResponse("config show", app.Config).Print(out)
			}
			data, err := config.Encode(app.Config)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\n\n", DimStyle.Render("# "+app.ConfigFile))
			out.Write(data) //nolint:errcheck
			if err := app.Config.Validate(); err != nil {
				fmt.Fprintln(out)
				DisplayError(out, err, false)
			}
			return nil
		}),
	}
}

func newConfigPathCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := global.configFilePath()
			if err != nil {
				return err
			}
			_, statErr := os.Stat(path)
			exists := statErr == nil
			out := cmd.OutOrStdout()
			if global.json {
				return NewJSONResponse("config path", ConfigPathData{Path: path, Exists: exists}).Print(out)
			}
			fmt.Fprintln(out, path)
			if !exists {
				fmt.Fprintln(cmd.ErrOrStderr(), DimStyle.Render("(does not exist yet; run 'geltek config init')"))
			}
			return nil
		},
	}
}

func newConfigInitCommand(global *globalOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented config file with default values",
		Example: `  geltek config init --base-url https://chat.example.com
  geltek config init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := global.configFilePath()
			if err != nil {
				return err
			}
			cfg := config.Default()
			if global.baseURL != "" {
				if verr := config.ValidateBaseURL(global.baseURL); verr != nil {
					return config.ConfigurationErrors{*verr}
				}
				cfg.Service.BaseURL = global.baseURL
			}
			if global.userID != "" {
				cfg.Service.UserID = global.userID
			}

			if err := config.WriteTemplate(cfg, path, force); err != nil {
				if errors.Is(err, config.ErrConfigExists) {
					return &ValidationError{
						Field:   "config file",
						Value:   path,
						Reason:  "already exists",
						Example: "geltek config init --force",
					}
				}
				return NewCommandError("config init", "write config file", err)
			}
			if global.json {
				return NewJSONResponse("config init", ConfigPathData{Path: path, Exists: true}).Print(cmd.OutOrStdout())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", SuccessStyle.Render("Wrote"), path)
			if cfg.Service.BaseURL == "" {
				fmt.Fprintln(cmd.OutOrStdout(), DimStyle.Render("Set base_url under [service] before connecting."))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing file")
	return cmd
}

package main

import (
	"context"

	"github.com/desertthunder/encore/internal/shared"
	"github.com/urfave/cli/v3"
)

// ConfigInit creates a config.toml from the embedded template.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", configPath)
	r.writePlain("✓ Config written to %s\n", configPath)
	r.writePlain("Fill in your Spotify client credentials and signing secret before serving.\n")
	return nil
}

// ConfigShow prints the effective configuration with secrets redacted.
func (r *Runner) ConfigShow(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	pretty := cmd.Bool("pretty")

	config := r.config
	if loaded, err := shared.LoadConfig(configPath); err == nil {
		config = loaded
	}

	redacted := *config
	if redacted.Spotify.ClientSecret != "" {
		redacted.Spotify.ClientSecret = "[redacted]"
	}
	if redacted.Tokens.SigningSecret != "" {
		redacted.Tokens.SigningSecret = "[redacted]"
	}

	return r.writeJSON(redacted, pretty)
}

func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage service configuration",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Create a config.toml from the embedded template",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.ConfigInit,
			},
			{
				Name:  "show",
				Usage: "Print the effective configuration with secrets redacted",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.ConfigShow,
			},
		},
	}
}

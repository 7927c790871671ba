package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/reviewloop/internal/config"
)

// ConfigCommand returns the config command and its subcommands.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage reviewloop configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a sample configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "path",
						Usage: "Where to write the sample `FILE`",
						Value: "./reviewloop.toml",
					},
				},
				Action: func(c *cli.Context) error {
					path := c.String("path")
					if err := config.Init(path); err != nil {
						return err
					}
					fmt.Printf("Wrote sample configuration to %s\n", path)
					return nil
				},
			},
			{
				Name:  "validate",
				Usage: "Load the configuration and report problems",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					if err := cfg.Validate(); err != nil {
						return err
					}
					fmt.Printf("Configuration OK (provider=%s, model=%s/%s)\n",
						cfg.Provider, cfg.AI.Backend, cfg.AI.Model)
					return nil
				},
			},
		},
	}
}

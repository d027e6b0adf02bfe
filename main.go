package main

import (
	"context"
	"os"

	"github.com/keytune/keytune/cmd/keytune"
	"github.com/keytune/keytune/pkg/config"
	"github.com/keytune/keytune/pkg/storage"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Path to configuration file",
	Value:   "config.yaml",
	Sources: cli.EnvVars("KEYTUNE_CONFIG"),
}

func loadServices(cmd *cli.Command) (config.KeyTuneConfig, *storage.Services, error) {
	conf, err := config.Load(cmd.String("config"))
	if err != nil {
		return conf, nil, err
	}
	keytune.SetupLogs(conf.Logging)

	services, err := storage.New(conf)
	if err != nil {
		return conf, nil, err
	}
	return conf, services, nil
}

func main() {
	app := &cli.Command{
		Name:  "keytune",
		Usage: "Share audio through expiring, optionally premium links",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the web server and analytics workers",
				Flags: []cli.Flag{configFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					conf, services, err := loadServices(cmd)
					if err != nil {
						return err
					}
					defer services.Close()

					return keytune.Run(conf, services)
				},
			},
			{
				Name:  "migrate",
				Usage: "Create or update the database tables and exit",
				Flags: []cli.Flag{configFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					_, services, err := loadServices(cmd)
					if err != nil {
						return err
					}
					log.Info().Msg("Database is up to date")
					return services.Close()
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("KeyTune failed")
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/matt-g-everett/ledtick/config"
	"github.com/rs/zerolog"
	"github.com/urfave/cli"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

var configPath string

func newLogger() zerolog.Logger {
	zerolog.TimeFieldFormat = consoleTimeFormat
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: consoleTimeFormat}
	return zerolog.New(cw).With().Timestamp().Logger()
}

func loadConfig(log zerolog.Logger) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	zerolog.SetGlobalLevel(cfg.LogLevel())
	log.Debug().Interface("config", cfg.Redacted()).Msg("config loaded")
	return cfg, nil
}

func serve(ctx *cli.Context) error {
	log := newLogger()
	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	mqtt.ERROR = mqttLogger{log: log.With().Str("component", "mqtt").Logger(), level: zerolog.ErrorLevel}
	mqtt.CRITICAL = mqttLogger{log: log.With().Str("component", "mqtt").Logger(), level: zerolog.ErrorLevel}

	a, err := newApp(cfg, configPath, log)
	if err != nil {
		return err
	}

	sigCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := a.run(sigCtx); err != nil {
		return err
	}
	log.Info().Msg("stopped")
	return nil
}

func check(ctx *cli.Context) error {
	cfg, err := loadConfig(newLogger())
	if err != nil {
		return err
	}
	fmt.Printf("%s: ok (%d pixels, broker %s)\n", configPath, cfg.Strip.Pixels, cfg.Mqtt.URL)
	return nil
}

func main() {
	app := cli.App{
		Name:     "ledtick",
		HelpName: "ledtick",
		Usage:    "streams LED animations to an ledrx device over MQTT",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:        "config, c",
				Usage:       "YAML config file",
				Value:       "config.yaml",
				Destination: &configPath,
				EnvVar:      "LEDTICK_CONFIG",
			},
		},
		Action: serve,
		Commands: []cli.Command{
			{
				Name:   "check",
				Usage:  "validates the config file and exits",
				Action: check,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ledtick:", err)
		os.Exit(1)
	}
}

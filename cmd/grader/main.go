package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/programme-lv/grader/internal/config"
	"github.com/urfave/cli/v3"
)

func main() {
	env, err := config.ReadEnvConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level := new(slog.LevelVar)
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	app := &app{env: env, logger: logger}
	if err := app.command(level).Run(context.Background(), os.Args); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func (a *app) command(level *slog.LevelVar) *cli.Command {
	return &cli.Command{
		Name:  "grader",
		Usage: "grade student submissions in per-submission containers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "grader home directory",
				Value: a.env.Home,
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
				Value: a.env.LogLevel,
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if err := level.UnmarshalText([]byte(cmd.String("log-level"))); err != nil {
				return ctx, fmt.Errorf("invalid log level: %w", err)
			}
			a.home = cmd.String("path")
			return ctx, nil
		},
		Commands: []*cli.Command{
			a.initCommand(),
			a.newCommand(),
			a.importCommand(),
			a.gradeCommand(),
			a.listCommand(),
			a.resultsCommand(),
			a.serveCommand(),
			a.healthCommand(),
		},
	}
}

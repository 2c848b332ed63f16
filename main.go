package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"carwatch/internal/history"
	"carwatch/internal/queries"
	"carwatch/internal/run"
	"carwatch/internal/seen"
	"carwatch/internal/watch"
)

func main() {
	app := &cli.App{
		Name:  "carwatch",
		Usage: "crawl a car catalog, match listings against saved queries, alert once per match",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to the YAML config file",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "only log errors",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the scrape & match pipeline once",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "compute hits but log them instead of sending mail",
					},
				},
				Action: run.RunAction,
			},
			{
				Name:   "watch",
				Usage:  "run the pipeline on the configured cron schedule",
				Action: watch.WatchAction,
			},
			{
				Name:  "queries",
				Usage: "manage the saved interest queries",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "print the saved queries in match order",
						Action: queries.ListAction,
					},
					{
						Name:  "add",
						Usage: "append a query",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "text", Required: true, Usage: "query text"},
							&cli.StringFlag{Name: "brand", Usage: "optional brand facet"},
						},
						Action: queries.AddAction,
					},
					{
						Name:  "remove",
						Usage: "remove a query by its list position",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "index", Required: true, Usage: "1-based position"},
						},
						Action: queries.RemoveAction,
					},
				},
			},
			{
				Name:  "seen",
				Usage: "inspect the already-alerted listings",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "list", Usage: "print every identity"},
				},
				Action: seen.SeenAction,
			},
			{
				Name:  "history",
				Usage: "show recent pipeline runs",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 10, Usage: "number of runs to show"},
				},
				Action: history.HistoryAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

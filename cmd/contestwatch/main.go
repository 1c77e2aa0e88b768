package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitSourceError  = 3
)

var viewFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "platform",
		Aliases: []string{"p"},
		Value:   "all",
		Usage:   "Platform to show: all, codeforces, leetcode, codechef or gfg",
	},
	&cli.StringFlag{
		Name:    "search",
		Aliases: []string{"s"},
		Usage:   "Case-insensitive text matched against contest and platform names",
	},
	&cli.StringFlag{
		Name:    "range",
		Aliases: []string{"r"},
		Value:   "all",
		Usage:   "Time range: all, today, week or month",
	},
	&cli.StringFlag{
		Name:  "sort",
		Usage: "Sort order: start-asc, start-desc, duration-asc or duration-desc",
	},
}

func main() {
	app := &cli.App{
		Name:    "contestwatch",
		Usage:   "Track upcoming programming contests and get reminded before they start",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "./configs",
				Usage:   "Directory containing config.yaml",
				EnvVars: []string{"CONTESTWATCH_CONFIG_DIR"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List upcoming contests",
				Flags: append(append([]cli.Flag{}, viewFlags...), &cli.BoolFlag{
					Name:  "json",
					Usage: "Print JSON instead of a table",
				}),
				Action: listContests,
			},
			{
				Name:   "status",
				Usage:  "Show which platforms answered the last refresh",
				Action: showStatus,
			},
			{
				Name:   "watch",
				Usage:  "Run the HTTP API and keep refreshing and notifying until interrupted",
				Action: watch,
			},
			{
				Name:      "remind",
				Usage:     "Toggle the reminder flag of a contest",
				ArgsUsage: "<contest-id>",
				Action:    toggleReminder,
			},
			{
				Name:  "reminders",
				Usage: "List contests with a reminder",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "prune",
						Usage: "Remove reminders for contests that are no longer listed",
					},
				},
				Action: listReminders,
			},
			{
				Name:  "prefs",
				Usage: "Show or change notification preferences",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Print the current preferences",
						Action: showPreferences,
					},
					{
						Name:  "set",
						Usage: "Overwrite selected preferences",
						Flags: []cli.Flag{
							&cli.BoolFlag{
								Name:  "enabled",
								Usage: "Enable notifications (use --enabled=false to disable)",
							},
							&cli.IntSliceFlag{
								Name:    "times",
								Aliases: []string{"t"},
								Usage:   "Lead times in minutes, e.g. --times 15 --times 60",
							},
							&cli.StringSliceFlag{
								Name:    "platforms",
								Aliases: []string{"p"},
								Usage:   "Platforms to notify for",
							},
						},
						Action: setPreferences,
					},
				},
			},
			{
				Name:      "open",
				Usage:     "Open a contest page in the default browser",
				ArgsUsage: "<contest-id>",
				Action:    openContest,
			},
			{
				Name:  "feed",
				Usage: "Print the contest list as an RSS or Atom feed",
				Flags: append(append([]cli.Flag{}, viewFlags...), &cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "rss",
					Usage:   "Feed format: rss or atom",
				}),
				Action: printFeed,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneralError)
	}
}

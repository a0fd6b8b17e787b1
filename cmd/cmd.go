// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/forro/internal/models"
)

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml from the template and initialize the record store",
		Action: r.Setup,
	}
}

func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize forro with Spotify and save the tokens to the config file",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the browser callback",
				Value: 2 * time.Minute,
			},
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "Print the authorization URL instead of opening a browser",
			},
		},
		Action: r.Auth,
	}
}

// pairsCommand manages the record store
func pairsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "pairs",
		Usage: "Manage cover/original track pairs",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Validate and append a track pair",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "brazilian-artist",
						Aliases:  []string{"ba"},
						Usage:    "Brazilian artist name",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "brazilian-track",
						Aliases:  []string{"bt"},
						Usage:    "Brazilian track name",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "original-artist",
						Aliases:  []string{"oa"},
						Usage:    "Original artist name",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "original-track",
						Aliases:  []string{"ot"},
						Usage:    "Original track name",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "Where the pair came from",
						Value: "manual",
					},
					&cli.FloatFlag{
						Name:  "similarity",
						Usage: "Warn about existing pairs at least this similar (0-1)",
						Value: models.DefaultSimilarity,
					},
				},
				Action: r.PairsAdd,
			},
			{
				Name:  "list",
				Usage: "List track pairs",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, markdown or json",
						Value:   "text",
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Filter by status: all, pending, added or unavailable",
						Value: "all",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead of stdout",
					},
				},
				Action: r.PairsList,
			},
			{
				Name:  "import",
				Usage: "Merge pairs from another CSV file into the store",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Usage:    "CSV file with the store header",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Report what would be imported without writing",
					},
				},
				Action: r.PairsImport,
			},
		},
	}
}

// playlistCommand runs reconciliation batches
func playlistCommand(r *Runner) *cli.Command {
	runFlags := func(extra ...cli.Flag) []cli.Flag {
		return append([]cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Look up tracks without modifying the playlist or the store",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Summary format: text, markdown or json",
				Value:   "text",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Only print the summary",
			},
		}, extra...)
	}

	return &cli.Command{
		Name:  "playlist",
		Usage: "Reconcile track pairs with the Spotify catalog",
		Commands: []*cli.Command{
			{
				Name:  "build",
				Usage: "Look up pending pairs and add matched ones to the playlist",
				Flags: runFlags(&cli.StringFlag{
					Name:  "playlist-id",
					Usage: "Target playlist (defaults to [playlist] id or TARGET_PLAYLIST_ID)",
				}),
				Action: r.PlaylistBuild,
			},
			{
				Name:   "check",
				Usage:  "Record catalog availability without adding anything",
				Flags:  runFlags(),
				Action: r.PlaylistCheck,
			},
			{
				Name:  "lookups",
				Usage: "Show the catalog calls made during a run (sqlite store only)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "run-id",
						Usage:    "Run id printed in the summary",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON",
					},
				},
				Action: r.PlaylistLookups,
			},
		},
	}
}

// tuiCommand opens the interactive pair browser
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Browse track pairs and run builds interactively",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the UI is open (defaults to forro-tui.log in the data dir)",
			},
		},
		Action: r.TUI,
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/ansuz/internal"
	pkgconfig "github.com/starford/ansuz/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithLogger(stderrLogger(cfg)))
}

func stderrLogger(cfg *internal.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
}

// withComponents opens the engine for a one-shot command.
func withComponents(fn func(ctx context.Context, cmd *cli.Command, c *internal.Components) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		c, err := internal.Open(internal.WithConfig(cfg), internal.WithLogger(stderrLogger(cfg)))
		if err != nil {
			return err
		}
		defer c.Close()
		return fn(ctx, cmd, c)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func requireArgs(cmd *cli.Command, n int) error {
	if cmd.Args().Len() < n {
		return fmt.Errorf("%s: expected %d argument(s), usage: %s", cmd.Name, n, cmd.ArgsUsage)
	}
	return nil
}

func limitFlag() cli.Flag {
	return &cli.IntFlag{
		Name:    "limit",
		Aliases: []string{"n"},
		Usage:   "Maximum number of results (0 for all)",
		Value:   10,
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "ansuz",
		Usage:  "Linked Markdown notes with backlinks and vector similarity search",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, refresh queue and vault watcher",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:      "open",
				Usage:     "Open a note, creating it when missing",
				ArgsUsage: "<path|[[marker]]>",
				Action: withComponents(func(ctx context.Context, cmd *cli.Command, c *internal.Components) error {
					if err := requireArgs(cmd, 1); err != nil {
						return err
					}
					note, created, err := c.Graph.OpenOrCreate(ctx, cmd.Args().First())
					if err != nil {
						return err
					}
					return printJSON(map[string]any{"path": note.Path, "created": created, "content": note.Content})
				}),
			},
			{
				Name:      "link",
				Usage:     "Link one note to another and record the backlink",
				ArgsUsage: "<from> <to>",
				Action: withComponents(func(ctx context.Context, cmd *cli.Command, c *internal.Components) error {
					if err := requireArgs(cmd, 2); err != nil {
						return err
					}
					target, err := c.Graph.CreateLink(ctx, cmd.Args().Get(0), cmd.Args().Get(1))
					if err != nil {
						return err
					}
					fmt.Println(target)
					return nil
				}),
			},
			{
				Name:      "follow",
				Usage:     "Resolve a link marker to a note path",
				ArgsUsage: "<[[marker]]>",
				Action: withComponents(func(ctx context.Context, cmd *cli.Command, c *internal.Components) error {
					if err := requireArgs(cmd, 1); err != nil {
						return err
					}
					p, err := c.Graph.Follow(ctx, cmd.Args().First())
					if err != nil {
						return err
					}
					fmt.Println(p)
					return nil
				}),
			},
			{
				Name:      "search",
				Usage:     "Rank notes by similarity to text, or to a note with --ref",
				ArgsUsage: "[text]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "ref", Aliases: []string{"r"}, Usage: "Reference note path"},
					limitFlag(),
				},
				Action: withComponents(func(ctx context.Context, cmd *cli.Command, c *internal.Components) error {
					limit := int(cmd.Int("limit"))
					if ref := cmd.String("ref"); ref != "" {
						results, err := c.Search.FindSimilar(ctx, ref, limit)
						if err != nil {
							return err
						}
						return printJSON(results)
					}
					if err := requireArgs(cmd, 1); err != nil {
						return err
					}
					results, err := c.Search.SearchByText(ctx, cmd.Args().First(), limit)
					if err != nil {
						return err
					}
					return printJSON(results)
				}),
			},
			{
				Name:      "similar",
				Usage:     "Rank notes by similarity to an embedded note",
				ArgsUsage: "<path>",
				Flags:     []cli.Flag{limitFlag()},
				Action: withComponents(func(ctx context.Context, cmd *cli.Command, c *internal.Components) error {
					if err := requireArgs(cmd, 1); err != nil {
						return err
					}
					results, err := c.Search.FindSimilar(ctx, cmd.Args().First(), int(cmd.Int("limit")))
					if err != nil {
						return err
					}
					return printJSON(results)
				}),
			},
			{
				Name:      "backlinks",
				Usage:     "List the notes linking to a note",
				ArgsUsage: "<path>",
				Action: withComponents(func(ctx context.Context, cmd *cli.Command, c *internal.Components) error {
					if err := requireArgs(cmd, 1); err != nil {
						return err
					}
					bl, err := c.Graph.Backlinks(ctx, cmd.Args().First())
					if err != nil {
						return err
					}
					for _, p := range bl {
						fmt.Println(p)
					}
					return nil
				}),
			},
			{
				Name:  "reindex",
				Usage: "Reconcile the store with the vault and re-embed stale notes",
				Action: withComponents(func(ctx context.Context, _ *cli.Command, c *internal.Components) error {
					rep, err := c.Reindex(ctx)
					if err != nil {
						return err
					}
					return printJSON(rep)
				}),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/quill/internal"
	pkgconfig "github.com/starford/quill/pkg/config"
)

var version = "dev"

type runFunc func(ctx context.Context, opts ...internal.Option) error

func action(run runFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg := internal.NewDefaultConfig()
		if err := pkgconfig.LoadOptional(cmd.String("config"), cfg, flagOverrides(cmd)); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}

		if err := run(ctx,
			internal.WithConfig(cfg),
			internal.WithConfigFile(cmd.String("config")),
			internal.WithVersion(version),
		); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}
		return nil
	}
}

// flagOverrides applies --pages and --output on top of the loaded config.
func flagOverrides(cmd *cli.Command) func(*internal.Config) {
	return func(cfg *internal.Config) {
		if v := cmd.String("pages"); v != "" {
			cfg.Site.PagesDir = v
		}
		if v := cmd.String("output"); v != "" {
			cfg.Site.Output = v
		}
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "quill",
		Usage:   "Build the JSON post index of a static Markdown blog and preview it",
		Version: version,
		Action:  action(internal.Build),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:  "pages",
				Usage: "Override site.pages_dir",
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "Override site.output",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Regenerate posts.json once (default)",
				Action: action(internal.Build),
			},
			{
				Name:   "serve",
				Usage:  "Serve the site and API with live rebuilds",
				Action: action(internal.Serve),
			},
			{
				Name:   "watch",
				Usage:  "Rebuild posts.json whenever a post changes",
				Action: action(internal.Watch),
			},
			{
				Name:   "mcp",
				Usage:  "Expose the blog to LLM tools over MCP stdio",
				Action: action(internal.MCP),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

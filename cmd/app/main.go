package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/doorlink/internal"
	"github.com/starford/doorlink/internal/tree"
	pkgconfig "github.com/starford/doorlink/pkg/config"
)

var version = "dev"

// loadConfig reads the optional config file and settles the tree root from
// --root, the config file, or the workspace folders around --file.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configured := cmd.String("root")
	if configured == "" {
		configured = cfg.Project.Root
	}
	folders := cmd.StringSlice("folder")
	if len(folders) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		folders = []string{wd}
	}
	root, err := tree.DetectRoot(configured, folders, cmd.String("file"))
	if err != nil {
		return nil, err
	}
	cfg.Project.Root = root
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

func main() {
	cmd := &cli.Command{
		Name:    "doorlink",
		Usage:   "Link graph and reference lookup for doorstop requirement trees",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (optional)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Tree root; detected from --folder and --file when empty",
				Sources: cli.EnvVars("DOORLINK_ROOT"),
			},
			&cli.StringSliceFlag{
				Name:  "folder",
				Usage: "Workspace folder to consider for root detection (repeatable)",
			},
			&cli.StringFlag{
				Name:  "file",
				Usage: "Open file used to pick the closest workspace folder",
			},
		},
		Commands: append(queryCommands(),
			&cli.Command{
				Name:   "serve",
				Usage:  "Run the HTTP API with file watching and SSE",
				Action: serve,
			},
			&cli.Command{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdin/stdout",
				Action: serveMCP,
			},
		),
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "doorlink:", err)
		os.Exit(1)
	}
}

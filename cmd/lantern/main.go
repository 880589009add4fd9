// Command lantern is the terminal client for the Nightwell narrative
// game: it bootstraps a session, streams narration for each action with
// a paced reveal, and keeps the local journal and room caches warm.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/nightwell-games/lantern/internal/api/game"
	"github.com/nightwell-games/lantern/internal/config"
	"github.com/nightwell-games/lantern/internal/telemetry"
)

// version is set via ldflags at build time.
var version = "dev"

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	app := &cli.App{
		Name:    "lantern",
		Usage:   "Nightwell narrative game client",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to config file",
				Value: config.DefaultPath,
			},
		},
		Commands: []*cli.Command{
			playCommand(logger),
			statusCommand(logger),
			roomsCommand(logger),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("lantern failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func statusCommand(logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Fetch and print the state of a session",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "session",
				Usage:    "Session id",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			client := game.NewClient(cfg.Server.BaseURL,
				game.WithHTTPClient(telemetry.HTTPClient(cfg.Server.RequestTimeout())),
			)
			state, err := client.GetSession(c.Context, c.String("session"))
			if err != nil {
				return err
			}

			fmt.Printf("session: %s\n", state.SessionID)
			fmt.Printf("room:    %s\n", state.RoomID)
			fmt.Printf("phase:   %s\n", state.Phase)
			fmt.Printf("turn:    %d\n", state.TurnCount)
			fmt.Printf("hints:   %d\n", state.HintsUnlocked)
			return nil
		},
	}
}

func roomsCommand(logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "rooms",
		Usage: "List rooms and refresh the local cache",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			client := game.NewClient(cfg.Server.BaseURL,
				game.WithHTTPClient(telemetry.HTTPClient(cfg.Server.RequestTimeout())),
			)
			rooms, err := client.ListRooms(c.Context)
			if err != nil {
				return err
			}

			if store, err := openCache(cfg); err == nil {
				defer store.Close()
				if err := store.SaveRooms(context.Background(), rooms); err != nil {
					logger.Warn("failed to cache room list", slog.String("error", err.Error()))
				}
			} else {
				logger.Warn("cache unavailable", slog.String("error", err.Error()))
			}

			for _, room := range rooms {
				marker := " "
				if room.Visited {
					marker = "*"
				}
				fmt.Printf("%s %-12s %s\n", marker, room.ID, room.Name)
			}
			return nil
		},
	}
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/urfave/cli/v2"

	"github.com/nightwell-games/lantern/internal/api/game"
	"github.com/nightwell-games/lantern/internal/cache"
	"github.com/nightwell-games/lantern/internal/config"
	"github.com/nightwell-games/lantern/internal/domain"
	"github.com/nightwell-games/lantern/internal/narrator"
	"github.com/nightwell-games/lantern/internal/telemetry"
)

func playCommand(logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "Start or resume a session and play interactively",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "player",
				Usage: "Player id",
				Value: "wanderer",
			},
			&cli.StringFlag{
				Name:  "room",
				Usage: "Room to enter",
				Value: "cellar",
			},
			&cli.StringFlag{
				Name:  "session",
				Usage: "Session id to resume",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			shutdown, err := telemetry.InitTracer("lantern", logger)
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}
			defer shutdown(context.Background())

			client := game.NewClient(cfg.Server.BaseURL,
				game.WithHTTPClient(telemetry.HTTPClient(cfg.Server.RequestTimeout())),
			)

			state, err := client.StartSession(c.Context, &game.StartSessionRequest{
				PlayerID:  c.String("player"),
				RoomID:    c.String("room"),
				SessionID: c.String("session"),
			})
			if err != nil {
				return fmt.Errorf("failed to start session: %w", err)
			}
			logger.Info("session started",
				slog.String("session_id", state.SessionID),
				slog.String("room_id", state.RoomID),
			)

			store, err := openCache(cfg)
			if err != nil {
				logger.Warn("cache unavailable", slog.String("error", err.Error()))
				store = nil
			} else {
				defer store.Close()
			}

			ui := newConsoleListener()

			opts := []narrator.Option{
				narrator.WithLogger(logger),
				// The stream stays open for the full narration, so the
				// client carries no timeout.
				narrator.WithHTTPClient(telemetry.HTTPClient(0)),
				narrator.WithPacingInterval(cfg.Stream.Pacing()),
				narrator.WithSettleGrace(cfg.Stream.Grace()),
				narrator.WithLoadingInterval(cfg.Stream.Loading()),
			}
			if store != nil {
				opts = append(opts, narrator.WithCacheStore(store))
			}

			orch := narrator.New(client.StreamEndpoint(), ui, opts...)
			orch.BindSession(*state)

			if state.Narration != "" {
				fmt.Println(state.Narration)
			}

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("\n> ")
				if !scanner.Scan() {
					break
				}
				action := scanner.Text()
				if action == "quit" || action == "exit" {
					break
				}

				if err := orch.SubmitAction(c.Context, action); err != nil {
					if errors.Is(err, domain.ErrEmptyAction) {
						continue
					}
					return err
				}
				ui.wait()

				if orch.Phase().Terminal() {
					fmt.Printf("\nThe tale ends: %s after %d turns.\n",
						orch.Phase(), orch.TurnCount())
					break
				}
			}
			return scanner.Err()
		},
	}
}

func openCache(cfg *config.Config) (*cache.Store, error) {
	if dir := filepath.Dir(cfg.Cache.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return cache.New(cfg.Cache.Path)
}

// consoleListener renders orchestrator output to stdout. It prints only
// the unseen suffix of the transcript so paced reveals appear in place.
type consoleListener struct {
	mu      sync.Mutex
	printed int
	loading bool
	done    chan struct{}
}

func newConsoleListener() *consoleListener {
	return &consoleListener{done: make(chan struct{}, 1)}
}

// wait blocks until the in-flight action settles or fails.
func (l *consoleListener) wait() {
	<-l.done
}

func (l *consoleListener) signal() {
	select {
	case l.done <- struct{}{}:
	default:
	}
}

func (l *consoleListener) TranscriptUpdated(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loading {
		// Clear the loading label line.
		fmt.Print("\r\033[K")
		l.loading = false
	}
	if len(text) < l.printed {
		// The transcript restarted with a new action.
		l.printed = 0
	}
	fmt.Print(text[l.printed:])
	l.printed = len(text)
}

func (l *consoleListener) StreamingChanged(active bool) {
	if active {
		l.mu.Lock()
		l.printed = 0
		l.mu.Unlock()
	}
}

func (l *consoleListener) LoadingLabelChanged(label string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Printf("\r\033[K%s...", label)
	l.loading = true
}

func (l *consoleListener) ActionSettled(result domain.ActionResult) {
	l.mu.Lock()
	fmt.Println()
	if result.Outcome != "" {
		fmt.Printf("[%s]\n", result.Outcome)
	}
	if result.JournalChapterUnlocked != "" {
		fmt.Printf("Journal chapter unlocked: %s\n", result.JournalChapterUnlocked)
	}
	l.mu.Unlock()
	l.signal()
}

func (l *consoleListener) ActionFailed(err *domain.ClientError) {
	l.mu.Lock()
	if l.loading {
		fmt.Print("\r\033[K")
		l.loading = false
	}
	fmt.Printf("\nThe narrator falls silent: %s\n", err.Message)
	l.mu.Unlock()
	l.signal()
}

// Copyright 2026 Loopwork Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/loopwork/cardpile"
	"github.com/loopwork/cardpile/ai"
	"github.com/loopwork/cardpile/core"
	"github.com/loopwork/cardpile/ingestion"
	"github.com/loopwork/cardpile/queue"
)

func main() {
	app := &cli.App{
		Name:  "cardpile",
		Usage: "Personal knowledge base with semantic search over ingested cards",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "worker",
				Usage:  "Consume and process card ingestion jobs",
				Action: workerCommand,
				Flags: append(serviceFlags(),
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of concurrent processing workers",
						Value: 2,
					},
					&cli.DurationFlag{
						Name:  "poll-interval",
						Usage: "Sleep between empty queue polls",
						Value: time.Second,
					},
					&cli.IntFlag{
						Name:  "max-attempts",
						Usage: "Delivery attempts before a job is dead-lettered",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay before a failed job becomes visible again",
						Value: 30 * time.Second,
					},
					&cli.DurationFlag{
						Name:  "visibility-timeout",
						Usage: "How long a claimed job stays invisible to other workers",
						Value: 5 * time.Minute,
					},
				),
			},
			{
				Name:      "add",
				Usage:     "Add a card and enqueue it for processing",
				ArgsUsage: "<source>",
				Action:    addCommand,
				Flags: append(serviceFlags(),
					&cli.StringFlag{
						Name:     "type",
						Aliases:  []string{"t"},
						Usage:    "Card type (text, url, pdf, youtube, spotify, tweet)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "Optional card title",
					},
				),
			},
			{
				Name:      "retry",
				Usage:     "Re-enqueue processing for a failed card",
				ArgsUsage: "<card-id>",
				Action:    retryCommand,
				Flags:     serviceFlags(),
			},
			{
				Name:      "status",
				Usage:     "Show a card's status, or recent cards when no ID is given",
				ArgsUsage: "[card-id]",
				Action:    statusCommand,
				Flags: append(serviceFlags(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of recent cards to list",
						Value: 20,
					},
				),
			},
			{
				Name:      "search",
				Usage:     "Search card chunks semantically",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: append(serviceFlags(),
					&cli.IntFlag{
						Name:  "max-hits",
						Usage: "Maximum number of results",
						Value: 10,
					},
				),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// serviceFlags are shared by every command that opens the database.
func serviceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to BadgerDB database directory",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "all-minilm",
		},
		&cli.IntFlag{
			Name:  "embedding-dimensions",
			Usage: "Embedding vector length",
			Value: 384,
		},
		&cli.StringFlag{
			Name:  "crawler-host",
			Usage: "Crawler service base URL",
			Value: "http://localhost:3005",
		},
		&cli.StringFlag{
			Name:  "transcriber-host",
			Usage: "Transcription service base URL",
			Value: "https://api.assemblyai.com",
		},
		&cli.StringFlag{
			Name:    "transcriber-key",
			Usage:   "Transcription service API key",
			EnvVars: []string{"CARDPILE_TRANSCRIBER_KEY"},
		},
	}
}

func openService(c *cli.Context) (*cardpile.Service, error) {
	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("embedding-host")),
		ai.WithModel(c.String("embedding-model")),
		ai.WithDimensions(c.Int("embedding-dimensions")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	// Queue flags are only defined on the worker command; elsewhere they
	// read as zero and Normalize restores the defaults.
	queueConfig := queue.Config{
		MaxAttempts:       c.Int("max-attempts"),
		RetryDelay:        c.Duration("retry-delay"),
		VisibilityTimeout: c.Duration("visibility-timeout"),
	}

	service, err := cardpile.NewService(c.String("db"),
		cardpile.WithAIConfig(aiConfig),
		cardpile.WithQueueConfig(queueConfig),
		cardpile.WithCrawlerHost(c.String("crawler-host")),
		cardpile.WithTranscriberHost(c.String("transcriber-host"), c.String("transcriber-key")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open service: %w", err)
	}
	return service, nil
}

func workerCommand(c *cli.Context) error {
	service, err := openService(c)
	if err != nil {
		return err
	}
	defer service.Close()

	worker, err := service.NewWorker(
		[]ingestion.Option{
			ingestion.WithDimensions(c.Int("embedding-dimensions")),
		},
		ingestion.WithWorkers(c.Int("workers")),
		ingestion.WithPollInterval(c.Duration("poll-interval")),
	)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}
	defer worker.Release()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Crawler host: %s\n", c.String("crawler-host"))
	fmt.Fprintln(os.Stderr)

	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("worker failed: %w", err)
	}
	return nil
}

func addCommand(c *cli.Context) error {
	source := c.Args().First()
	if source == "" {
		return fmt.Errorf("source argument is required")
	}

	cardType, err := core.ParseCardType(c.String("type"))
	if err != nil {
		return err
	}

	service, err := openService(c)
	if err != nil {
		return err
	}
	defer service.Close()

	card, err := service.AddCard(context.Background(), cardType, source, c.String("title"))
	if err != nil {
		return err
	}

	fmt.Printf("Added card %s (%s, %s)\n", card.Id, card.Type, card.Status)
	return nil
}

func retryCommand(c *cli.Context) error {
	cardId := c.Args().First()
	if cardId == "" {
		return fmt.Errorf("card-id argument is required")
	}

	service, err := openService(c)
	if err != nil {
		return err
	}
	defer service.Close()

	if err := service.RetryCard(context.Background(), core.ID(cardId)); err != nil {
		return err
	}

	fmt.Printf("Re-enqueued card %s\n", cardId)
	return nil
}

func statusCommand(c *cli.Context) error {
	service, err := openService(c)
	if err != nil {
		return err
	}
	defer service.Close()

	ctx := context.Background()

	if cardId := c.Args().First(); cardId != "" {
		card, err := service.CardRepository().GetCard(ctx, core.ID(cardId))
		if err != nil {
			return err
		}
		printCard(card)
		return nil
	}

	cards, err := service.CardRepository().ListCards(ctx, c.Int("limit"))
	if err != nil {
		return err
	}
	if len(cards) == 0 {
		fmt.Println("No cards")
		return nil
	}
	for _, card := range cards {
		printCard(card)
	}

	stats, err := service.Queue().Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\nQueue: %d ready, %d scheduled, %d dead\n", stats.Ready, stats.Scheduled, stats.Dead)
	return nil
}

func printCard(card *core.Card) {
	line := fmt.Sprintf("%s  %-9s %-10s %s", card.Id, card.Status, card.Type, card.Source)
	if card.Title != "" {
		line += fmt.Sprintf(" (%s)", card.Title)
	}
	if card.ErrorMessage != "" {
		line += fmt.Sprintf("\n    error: %s", card.ErrorMessage)
	}
	fmt.Println(line)
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("query argument is required")
	}

	service, err := openService(c)
	if err != nil {
		return err
	}
	defer service.Close()

	searcher, err := service.NewSearcher()
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}

	results, err := searcher.FindSimilar(context.Background(), query, c.Int("max-hits"))
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No matches")
		return nil
	}

	for i, result := range results {
		fmt.Printf("%2d. [%.3f] card %s chunk %d\n    %s\n",
			i+1, result.Score, result.Chunk.CardId, result.Chunk.Seq, firstLine(result.Chunk.Text))
	}
	return nil
}

// firstLine truncates chunk text for terminal display.
func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	runes := []rune(text)
	if len(runes) > 120 {
		return string(runes[:120]) + "…"
	}
	return text
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

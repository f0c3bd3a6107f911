package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mikeboe/deep-research/pkg/agent"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/events"
)

var (
	topic      string
	budget     int
	maxQueries int
)

func main() {
	handler := slog.NewTextHandler(os.Stdout, nil)
	slog.SetDefault(slog.New(handler))

	// Load .env file
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist, as long as env vars are set
	}

	rootCmd := &cobra.Command{
		Use:   "deep-research",
		Short: "A terminal-based deep research agent",
		Long:  `deep-research is an autonomous agent that researches a topic through iterative search, summarization and evaluation rounds, then writes a final report.`,
		Run: func(cmd *cobra.Command, args []string) {
			if !cmd.Flags().Changed("topic") {
				// Interactive Mode
				reader := bufio.NewReader(os.Stdin)
				fmt.Print("Enter research topic: ")
				input, _ := reader.ReadString('\n')
				topic = strings.TrimSpace(input)
			}
			if topic == "" {
				slog.Error("Topic cannot be empty")
				os.Exit(1)
			}

			cfg := config.Load()
			if budget > 0 {
				cfg.Budget = budget
			}
			if maxQueries > 0 {
				cfg.MaxQueriesPerRound = maxQueries
			}

			sessionID := uuid.New().String()
			slog.Info("Starting research", "topic", topic, "session", sessionID, "budget", cfg.Budget)

			ctx := context.Background()
			sink := &events.LogSink{Logger: slog.Default()}
			pipeline, err := agent.NewPipeline(ctx, cfg, sessionID, sink, slog.Default())
			if err != nil {
				slog.Error("Error initializing research pipeline", "error", err)
				os.Exit(1)
			}

			outcome, err := pipeline.Run(ctx, topic)
			if err != nil {
				slog.Error("Error running research", "error", err)
				os.Exit(1)
			}

			if outcome.Report == "" {
				slog.Warn("No report produced", "terminal_state", outcome.Result.State)
				return
			}

			reportFilename := fmt.Sprintf("report_%d.md", time.Now().Unix())
			if err := os.WriteFile(reportFilename, []byte(outcome.Report), 0644); err != nil {
				slog.Error("Failed to save report", "error", err)
				os.Exit(1)
			}
			slog.Info("Saved report", "filename", reportFilename)

			if sourcesData, err := json.MarshalIndent(outcome.Result.Evidence, "", "  "); err == nil {
				if err := os.WriteFile("sources.json", sourcesData, 0644); err != nil {
					slog.Error("Failed to save sources.json", "error", err)
				} else {
					slog.Info("Saved sources", "filename", "sources.json")
				}
			}

			if outcome.CoverURL != "" {
				slog.Info("Cover image ready", "url", outcome.CoverURL)
			}
		},
	}

	rootCmd.Flags().StringVarP(&topic, "topic", "t", "", "The research topic")
	rootCmd.Flags().IntVarP(&budget, "budget", "b", 0, "Maximum number of research rounds (overrides RESEARCH_BUDGET)")
	rootCmd.Flags().IntVarP(&maxQueries, "max-queries", "q", 0, "Maximum queries per round (overrides MAX_QUERIES_PER_ROUND)")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

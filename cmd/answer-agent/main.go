package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/answer-agent/pkg/chat"
	"github.com/mikeboe/answer-agent/pkg/clients"
	"github.com/mikeboe/answer-agent/pkg/config"
	"github.com/mikeboe/answer-agent/pkg/research"
)

var (
	queryFlag  string
	configPath string
)

func main() {
	// Setup structured logging
	handler := slog.NewTextHandler(os.Stderr, nil)
	slog.SetDefault(slog.New(handler))

	// Load .env file
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist, as long as env vars are set
	}

	rootCmd := &cobra.Command{
		Use:   "answer-agent",
		Short: "A terminal question-answering agent with live web lookups",
		Long: `answer-agent answers free-text questions by iterating a gather-synthesize-evaluate
loop: it consults web search, content extraction, and encyclopedia lookups,
asks the language model for a cited draft, and refines until the draft is
judged sufficient or the iteration bound is reached.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := config.NewStore(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			model, err := clients.OpenAI(store.Current().LLM)
			if err != nil {
				return fmt.Errorf("failed to init LLM: %w", err)
			}

			if queryFlag != "" {
				// Non-interactive mode: answer one query and exit.
				result := runQuery(cmd.Context(), store.Current(), model, queryFlag)
				printResult(result)
				return nil
			}

			runShell(store, model)
			return nil
		},
	}

	rootCmd.Flags().StringVarP(&queryFlag, "query", "q", "", "Answer a single query and exit")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file")
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

// runShell is the interactive conversation loop. Free text is a query;
// everything else is a shell command.
func runShell(store *config.Store, model llms.Model) {
	transcript := chat.NewTranscript()
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("answer-agent — ask me anything.")
	fmt.Println("Commands: quit/exit, history, clear, tools, reload")

	for {
		fmt.Print("\n> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("\nGoodbye!")
			return
		}
		input := strings.TrimSpace(line)

		switch strings.ToLower(input) {
		case "":
			continue
		case "quit", "exit", "q":
			fmt.Println("Goodbye!")
			return
		case "history":
			showHistory(transcript)
		case "clear":
			transcript.Clear()
			fmt.Println("Conversation history cleared.")
		case "tools":
			showTools(store.Current())
		case "reload":
			if _, err := store.Reload(); err != nil {
				fmt.Printf("Reload rejected, keeping current configuration: %v\n", err)
			} else {
				fmt.Println("Configuration reloaded; it applies from the next query.")
			}
		default:
			// The snapshot read here serves the whole query; a reload during
			// the run affects the next query only.
			result := runQuery(context.Background(), store.Current(), model, input)
			transcript.Append(input, result)
			printResult(result)
		}
	}
}

func runQuery(ctx context.Context, cfg *config.Config, model llms.Model, query string) *research.ResearchResult {
	engine := research.NewEngine(cfg, model)
	engine.OnStateChange = func(state research.State, iteration int) {
		switch state {
		case research.StateGathering:
			fmt.Printf("  [%d/%d] gathering sources...\n", iteration, cfg.Research.MaxIterations)
		case research.StateSynthesizing:
			fmt.Printf("  [%d/%d] synthesizing answer...\n", iteration, cfg.Research.MaxIterations)
		case research.StateEvaluating:
			fmt.Printf("  [%d/%d] evaluating sufficiency...\n", iteration, cfg.Research.MaxIterations)
		}
	}
	return engine.Run(ctx, query)
}

func printResult(result *research.ResearchResult) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	if result.Degraded {
		fmt.Println("NOTE: degraded answer, the generation backend was unavailable.")
	}
	fmt.Println(result.FinalAnswer)
	if len(result.SourceURLs) > 0 {
		fmt.Println("\nSources:")
		for _, u := range result.SourceURLs {
			fmt.Printf("  - %s\n", u)
		}
	}
	fmt.Printf("\n(%d iteration(s))\n", len(result.Iterations))
	fmt.Println(strings.Repeat("=", 60))
}

func showHistory(transcript *chat.Transcript) {
	entries := transcript.Entries()
	if len(entries) == 0 {
		fmt.Println("No conversation history yet.")
		return
	}
	for i, e := range entries {
		fmt.Printf("\n%d. %s\n", i+1, e.Query)
		fmt.Printf("   Iterations: %d, degraded: %v\n", len(e.Result.Iterations), e.Result.Degraded)
		answer := e.Result.FinalAnswer
		if len(answer) > 200 {
			answer = answer[:200] + "..."
		}
		fmt.Printf("   %s\n", answer)
	}
}

func showTools(cfg *config.Config) {
	fmt.Println("Configured tools:")
	for name, tc := range cfg.Tools {
		status := "disabled"
		if tc.Enabled {
			status = "enabled"
		}
		fmt.Printf("  %-14s %s  max_results=%d max_length=%d timeout=%s\n",
			name, status, tc.MaxResults, tc.MaxLength, tc.Timeout)
	}
	fmt.Printf("max_iterations=%d, llm evaluator=%v\n",
		cfg.Research.MaxIterations, cfg.Research.UseLLMEvaluator)
}

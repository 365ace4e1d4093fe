package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/converse/backend"
	"github.com/tailored-agentic-units/converse/core/protocol"
	"github.com/tailored-agentic-units/converse/observability"
	"github.com/tailored-agentic-units/converse/retrieval"
	"github.com/tailored-agentic-units/converse/session"
	"github.com/tailored-agentic-units/converse/transcript"
)

type chatOptions struct {
	configFile string
	dataDir    string
	saveDir    string
	baseURL    string
	apiKey     string
	embedModel string
	postTypes  []string
	minDate    string
	categories []string
	verbose    bool
}

func newChatCmd() *cobra.Command {
	opts := &chatOptions{}

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Hold an interactive retrieval-augmented conversation",
		Long: "chat starts an interactive conversation. The first line runs retrieval " +
			"and opens a session; later lines are follow-up turns against the same " +
			"context. Commands: /reduce halves the context, /usage prints the ledger, " +
			"/quit exits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, opts)
		},
	}

	flags := chatCmd.Flags()
	flags.StringVar(&opts.configFile, "config", "", "Path to session config JSON file")
	flags.StringVar(&opts.dataDir, "data-dir", ".converse", "Vector store directory")
	flags.StringVar(&opts.saveDir, "save-dir", "", "Directory for saved transcripts (empty: don't save)")
	flags.StringVar(&opts.baseURL, "base-url", "https://openrouter.ai/api/v1", "OpenAI-compatible API root")
	flags.StringVar(&opts.apiKey, "api-key", "", "API key (defaults to CONVERSE_API_KEY)")
	flags.StringVar(&opts.embedModel, "embed-model", "text-embedding-3-small", "Embedding model for retrieval")
	flags.StringSliceVar(&opts.postTypes, "post-type", nil, "Restrict retrieval to these post types")
	flags.StringVar(&opts.minDate, "min-date", "", "Restrict retrieval to posts on/after this ISO date")
	flags.StringSliceVar(&opts.categories, "category", nil, "Restrict retrieval to these primary categories")
	flags.BoolVar(&opts.verbose, "verbose", false, "Enable verbose diagnostics on stderr")

	return chatCmd
}

func runChat(cmd *cobra.Command, opts *chatOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cfg := session.DefaultConfig()
	if opts.configFile != "" {
		loaded, err := session.LoadConfig(opts.configFile)
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	if cfg.Provider == "" {
		cfg.Provider = "platform"
	}

	if opts.apiKey == "" {
		opts.apiKey = os.Getenv("CONVERSE_API_KEY")
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	observability.RegisterObserver("slog", observability.NewSlogObserver(logger))

	store, err := retrieval.NewVectorStore(opts.dataDir, embedFunc(opts))
	if err != nil {
		return err
	}

	ctrl, err := session.New(&cfg,
		session.WithFactory(newFactory(opts, cfg.Model)),
		session.WithRetriever(store),
	)
	if err != nil {
		return err
	}
	defer ctrl.Destroy(context.Background())

	startedAt := time.Now()
	out := cmd.OutOrStdout()
	filters := retrieval.Filters{
		PostTypes:  opts.postTypes,
		MinDate:    opts.minDate,
		Categories: opts.categories,
	}

	fmt.Fprint(out, "> ")
	scanner := bufio.NewScanner(cmd.InOrStdin())
	started := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprint(out, "> ")
			continue
		}

		if line == "/quit" {
			break
		}
		if line == "/reduce" {
			ok, err := ctrl.ReduceContext(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "context reduced: %v\n> ", ok)
			continue
		}
		if line == "/usage" {
			usage := ctrl.TokenUsage()
			fmt.Fprintf(out, "used %d, available %d, limit %d\n> ", usage.Used, usage.Available, usage.Limit)
			continue
		}

		var stream protocol.Stream
		if started {
			stream, err = ctrl.Continue(ctx, line)
		} else {
			stream, err = ctrl.Start(ctx, line, filters)
		}
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			fmt.Fprint(out, "> ")
			continue
		}

		if err := printStream(out, stream); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "stream failed: %v\n", err)
		} else {
			started = true
		}
		fmt.Fprint(out, "> ")
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	return saveTranscript(ctx, ctrl, opts.saveDir, startedAt)
}

func printStream(w io.Writer, stream protocol.Stream) error {
	for ev, err := range stream {
		if err != nil {
			return err
		}
		switch ev.Type {
		case protocol.EventSearch:
			if sd, ok := ev.Message.(*session.SearchData); ok {
				for _, post := range sd.DisplayPosts {
					fmt.Fprintf(w, "  [%.2f] %s\n", post.Score, post.Title)
				}
			}
		case protocol.EventData:
			fmt.Fprint(w, ev.Message)
		case protocol.EventUsage:
			if u, ok := ev.Message.(*protocol.Usage); ok {
				fmt.Fprintf(w, "\n(turn %d: %d in / %d out, %d total)\n",
					u.TurnNumber, u.InputTokens, u.OutputTokens, u.TotalTokens)
			}
		}
	}
	return nil
}

func newFactory(opts *chatOptions, model string) *backend.Factory {
	client := backend.NewClient(opts.baseURL, opts.apiKey, model)

	factory := backend.NewFactory()
	factory.Register("platform", backend.PersistentVariant(backend.NewSessionEngine(client), true))
	factory.Register("writer", backend.OneShotVariant(client, true))
	factory.Register("local", backend.BatchVariant(client, true))
	return factory
}

func embedFunc(opts *chatOptions) chromem.EmbeddingFunc {
	return chromem.NewEmbeddingFuncOpenAICompat(opts.baseURL, opts.apiKey, opts.embedModel, nil)
}

func saveTranscript(ctx context.Context, ctrl *session.Controller, saveDir string, startedAt time.Time) error {
	if saveDir == "" {
		return nil
	}
	turns := ctrl.History()
	if len(turns) == 0 {
		return nil
	}

	provider, model := ctrl.Model()
	usage := ctrl.TokenUsage()
	return transcript.NewFileStore(saveDir).Save(ctx, &transcript.Transcript{
		ID:         ctrl.ID(),
		Provider:   provider,
		Model:      model,
		StartedAt:  startedAt,
		Turns:      turns,
		TokensUsed: usage.Used,
		TokenLimit: usage.Limit,
	})
}

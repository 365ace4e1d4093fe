package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/converse/retrieval"
)

func newIndexCmd() *cobra.Command {
	var (
		dataDir    string
		baseURL    string
		apiKey     string
		embedModel string
		postType   string
		date       string
		categories []string
		chunkSize  int
	)

	indexCmd := &cobra.Command{
		Use:   "index <file>...",
		Short: "Ingest documents into the vector store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiKey == "" {
				apiKey = os.Getenv("CONVERSE_API_KEY")
			}

			embed := embedFunc(&chatOptions{baseURL: baseURL, apiKey: apiKey, embedModel: embedModel})
			store, err := retrieval.NewVectorStore(dataDir, embed)
			if err != nil {
				return err
			}

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}

				name := filepath.Base(path)
				title := strings.TrimSuffix(name, filepath.Ext(name))
				chunks := retrieval.SplitText(string(data), chunkSize)

				post := retrieval.Post{
					ID:       name,
					Title:    title,
					Date:     date,
					Type:     postType,
					Category: categories,
				}
				if err := store.Index(cmd.Context(), post, chunks); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "indexed %s (%d chunks)\n", name, len(chunks))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "store now holds %d chunks\n", store.Count())
			return nil
		},
	}

	flags := indexCmd.Flags()
	flags.StringVar(&dataDir, "data-dir", ".converse", "Vector store directory")
	flags.StringVar(&baseURL, "base-url", "https://openrouter.ai/api/v1", "OpenAI-compatible API root")
	flags.StringVar(&apiKey, "api-key", "", "API key (defaults to CONVERSE_API_KEY)")
	flags.StringVar(&embedModel, "embed-model", "text-embedding-3-small", "Embedding model")
	flags.StringVar(&postType, "post-type", "article", "Post type recorded in chunk metadata")
	flags.StringVar(&date, "date", "", "ISO publication date recorded in chunk metadata")
	flags.StringSliceVar(&categories, "category", nil, "Primary categories recorded in chunk metadata")
	flags.IntVar(&chunkSize, "chunk-size", 0, "Chunk size in bytes (0: default)")

	return indexCmd
}

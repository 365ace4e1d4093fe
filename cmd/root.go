// Package cmd wires the converse CLI: an interactive retrieval-augmented
// chat session and a document indexing command for the vector store.
package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "converse",
		Short:         "Retrieval-augmented conversations against interchangeable backends",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newChatCmd(),
		newIndexCmd(),
	)

	return rootCmd
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var (
	versionFlag bool

	// ServerURL overrides the configured backend base URL when set.
	ServerURL string
)

var rootCmd = &cobra.Command{
	Use:   "ragtui",
	Short: "ragtui - Terminal client for a RAG chat backend",
	Long: `A terminal client for a retrieval-augmented-generation backend:
chat with scoped document retrieval, upload documents into the semantic or
BM25 corpus, and run lexical searches.`,
	Run: func(cmd *cobra.Command, args []string) {
		if versionFlag {
			fmt.Printf("ragtui version %s\n", Version)
			return
		}
		// When no subcommand is specified, launch the TUI
		LaunchTUI()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVarP(&versionFlag, "version", "v", false, "Print version information")
	rootCmd.PersistentFlags().StringVar(&ServerURL, "server", "", "Backend base URL (default: from config)")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(uploadCmd)
}

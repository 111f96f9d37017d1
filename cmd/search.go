package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	SearchQuery string
	SearchTopK  int
)

// SearchRunner is the function that actually runs the search (defined in main package)
var SearchRunner func()

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run a BM25 search against the lexical corpus",
	Long: `Run a lexical (BM25) search against the backend's document corpus.
The search is corpus-wide and independent of any chat session.`,
	Run: func(cmd *cobra.Command, args []string) {
		if SearchQuery == "" {
			fmt.Println("Error: --query is required")
			os.Exit(1)
		}
		if SearchRunner != nil {
			SearchRunner()
		} else {
			fmt.Println("Error: Search runner not initialized")
			os.Exit(1)
		}
	},
}

func init() {
	searchCmd.Flags().StringVarP(&SearchQuery, "query", "q", "", "Search query (required)")
	searchCmd.Flags().IntVarP(&SearchTopK, "top-k", "k", 0, "Number of results (default: from config)")

	searchCmd.MarkFlagRequired("query")
}

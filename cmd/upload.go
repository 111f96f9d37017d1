package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	UploadPipeline string
	UploadPaths    []string
)

// UploadRunner is the function that actually runs the upload (defined in main package)
var UploadRunner func()

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload documents into the semantic or BM25 corpus",
	Long: `Upload local files to the backend as one multipart submission.
The semantic pipeline (--pipeline rag) feeds the embedding index; the
lexical pipeline (--pipeline bm25) feeds the BM25 corpus.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		UploadPaths = args
		if UploadPipeline != "rag" && UploadPipeline != "bm25" {
			fmt.Printf("Error: unknown pipeline %q (want rag or bm25)\n", UploadPipeline)
			os.Exit(1)
		}
		if UploadRunner != nil {
			UploadRunner()
		} else {
			fmt.Println("Error: Upload runner not initialized")
			os.Exit(1)
		}
	},
}

func init() {
	uploadCmd.Flags().StringVarP(&UploadPipeline, "pipeline", "p", "rag", "Target pipeline: rag or bm25")
}

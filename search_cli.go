package main

import (
	"context"
	"fmt"
	"os"

	"ragtui/cmd"
)

func init() {
	cmd.SearchRunner = runSearchCommand
}

func runSearchCommand() {
	config, err := LoadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if cmd.ServerURL != "" {
		config.ServerURL = cmd.ServerURL
	}

	topK := cmd.SearchTopK
	if topK <= 0 {
		topK = config.BM25TopK
	}

	log := NewLogger(config.LogFile)
	defer log.Sync()

	client := NewBackendClient(config.ServerURL, config.Timeout(), log)

	results, err := client.SearchBM25(context.Background(), cmd.SearchQuery, topK)
	if err != nil {
		fmt.Printf("Error searching: %v\n", err)
		os.Exit(1)
	}

	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}
	for i, result := range results {
		fmt.Printf("%d. %s\n", i+1, result)
	}
}

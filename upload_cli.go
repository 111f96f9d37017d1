package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"ragtui/cmd"
)

func init() {
	cmd.UploadRunner = runUploadCommand
}

func runUploadCommand() {
	config, err := LoadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if cmd.ServerURL != "" {
		config.ServerURL = cmd.ServerURL
	}

	pipeline := PipelineSemantic
	if cmd.UploadPipeline == "bm25" {
		pipeline = PipelineLexical
	}

	for _, path := range cmd.UploadPaths {
		if _, err := os.Stat(path); err != nil {
			fmt.Printf("Error: cannot read %s: %v\n", path, err)
			os.Exit(1)
		}
	}

	log := NewLogger(config.LogFile)
	defer log.Sync()

	client := NewBackendClient(config.ServerURL, config.Timeout(), log)

	result, err := client.Upload(context.Background(), pipeline, cmd.UploadPaths)
	if err != nil {
		if errors.Is(err, ErrMissingCredential) {
			fmt.Println("Error: the backend has no API key configured. Set one in the TUI settings first.")
		} else {
			fmt.Printf("Error uploading: %v\n", err)
		}
		os.Exit(1)
	}

	fmt.Printf("Indexed %d file(s) into the %s corpus: %s\n",
		result.Indexed, pipeline, strings.Join(result.FileNames, ", "))
}

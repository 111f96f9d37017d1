package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"ragtui/cmd"
)

func main() {
	cmd.TUILauncher = runTUI
	cmd.Execute()
}

func runTUI() {
	config, err := LoadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if cmd.ServerURL != "" {
		config.ServerURL = cmd.ServerURL
	}

	log := NewLogger(config.LogFile)
	defer log.Sync()

	client := NewBackendClient(config.ServerURL, config.Timeout(), log)
	session := NewSession()

	p := tea.NewProgram(
		initialModel(client, config, session, log),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}

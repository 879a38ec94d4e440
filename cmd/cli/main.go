package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"execsvc/internal/cli/command"
	"execsvc/internal/cli/config"
	httpclient "execsvc/internal/cli/http"
	"execsvc/internal/cli/repl"
	"execsvc/internal/cli/state"
)

const defaultConfigPath = "configs/cli.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	baseURL := flag.String("base", "", "Override base URL")
	timeout := flag.Duration("timeout", 0, "Override HTTP timeout (e.g. 10s)")
	statePath := flag.String("state", "", "Override cli state path")
	pretty := flag.Bool("pretty", false, "Pretty print JSON response")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if *statePath != "" {
		cfg.StatePath = *statePath
	}

	prefs, err := state.Load(cfg.StatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load cli state failed: %v\n", err)
		os.Exit(1)
	}
	if prefs.BaseURL != "" {
		cfg.BaseURL = prefs.BaseURL
	}
	if prefs.Timeout > 0 {
		cfg.Timeout = prefs.Timeout
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	if *pretty {
		trueValue := true
		cfg.PrettyJSON = &trueValue
	}

	client := httpclient.New(cfg.BaseURL, cfg.Timeout)
	session := repl.New(client, command.Registry(), &prefs, cfg.StatePath, *cfg.PrettyJSON, os.Stdout)
	if err := session.Run(context.Background(), cfg.HistoryPath); err != nil {
		fmt.Fprintf(os.Stderr, "cli stopped: %v\n", err)
		os.Exit(1)
	}
}

// Package main is the entry point for the webvitals collection tool.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Version is the release version, overridden at build time.
var Version = "dev"

// loadEnvFiles loads .env from standard locations
func loadEnvFiles() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		_ = godotenv.Load()
		return
	}

	// Try loading from ~/.config/webvitals/.env first
	configEnv := filepath.Join(homeDir, ".config", "webvitals", ".env")
	if _, err := os.Stat(configEnv); err == nil {
		_ = godotenv.Load(configEnv)
	}

	// Also load local .env (can override)
	_ = godotenv.Load()
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve", "start":
			runServe(os.Args[2:])
			return
		case "replay":
			runReplay(os.Args[2:])
			return
		case "version", "-v", "--version":
			fmt.Printf("webvitals %s\n", Version)
			return
		case "help", "-h", "--help":
			printHelp()
			return
		}
	}
	printHelp()
	os.Exit(2)
}

// setupLogging configures zerolog for console output.
func setupLogging(debug bool) {
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	})

	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// printHelp prints usage information
func printHelp() {
	fmt.Println("webvitals - web performance metrics collection")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  webvitals [command]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve        Start the collection server")
	fmt.Println("  replay       Replay a performance trace against a collection endpoint")
	fmt.Println("  version      Print version information")
	fmt.Println("  help         Show this help message")
	fmt.Println()
	fmt.Println("Serve Options:")
	fmt.Println("  webvitals serve --config FILE [--debug]")
	fmt.Println()
	fmt.Println("Replay Options:")
	fmt.Println("  webvitals replay --trace FILE --server URL [--count N] [--flush-delay D]")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  webvitals serve --config configs/config.yaml")
	fmt.Println("  webvitals replay --trace traces/homepage.jsonl --server http://localhost:8080")
}

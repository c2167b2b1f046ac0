package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/sigtrace/sigtrace/internal/config"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := config.Load(); err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("error executing command: %v", err)
	}
}

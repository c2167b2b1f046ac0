package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sigtrace/sigtrace/internal/config"
	"github.com/sigtrace/sigtrace/internal/ingest"
)

func runWatch(cmd *cobra.Command, args []string) error {
	root := resolveRoot(args)
	once, _ := cmd.Flags().GetBool("once")

	a, closer, err := buildApp(root, config.Global)
	if err != nil {
		return err
	}
	defer closer()

	slog.Info("initial ingest", slog.String("root", root))
	summary, err := a.ingest.Ingest(cmd.Context(), root, true)
	if err != nil {
		return fmt.Errorf("initial ingest: %w", err)
	}
	a.graph.Invalidate()
	slog.Info("initial ingest complete",
		slog.Int("files_indexed", summary.TextFiles+summary.BinaryFiles),
		slog.Int("files_skipped", summary.Skipped),
		slog.Int("errors", summary.Errors),
	)

	if once {
		return nil
	}

	watcher, err := ingest.NewWatcher(root, a.ingest)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	watcher.OnBatchApplied = a.graph.Invalidate

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("shutting down watcher")
		watcher.Stop()
		cancel()
	}()

	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	slog.Info("watching for changes", slog.String("root", root))

	<-ctx.Done()
	return nil
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/sigtrace/sigtrace/internal/config"
	"github.com/sigtrace/sigtrace/internal/telemetry"
)

// shutdownGrace bounds how long an in-flight request gets to finish once a
// shutdown signal arrives.
const shutdownGrace = 10 * time.Second

// runServe hosts the read-only observability surface over an already-
// ingested store: liveness, Prometheus metrics, and a debug summary. It is
// deliberately not a query-dispatch API — search_substring, verify_snippet,
// cluster and scan_critical are CLI-only (see cmd_query.go, cmd_risk.go).
func runServe(cmd *cobra.Command, args []string) error {
	root := resolveRoot(args)
	addr, _ := cmd.Flags().GetString("addr")

	shutdownTelemetry, err := telemetry.Init(cmd.Context(), telemetry.Config{
		ServiceName:    "sigtraced",
		ServiceVersion: "0.1.0",
		TraceExporter:  traceExp,
		MetricExporter: metricExp,
	})
	if err != nil {
		return err
	}
	defer shutdownTelemetry(context.Background())

	a, closer, err := buildApp(root, config.Global)
	if err != nil {
		return err
	}
	defer closer()

	router := gin.Default()
	router.Use(otelgin.Middleware("sigtraced"))

	router.GET("/healthz", handleHealthz)
	router.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))
	router.GET("/debug/summary", handleDebugSummary(a))

	srv := &http.Server{Addr: addr, Handler: router}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("shutting down sigtraced server")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", slog.Any("error", err))
		}
	}()

	slog.Info("sigtraced listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleDebugSummary reports the count of indexed paths and the ingest
// root, a minimal operational snapshot for humans poking at a running
// sigtraced with curl.
func handleDebugSummary(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		paths, err := a.store.ListPaths(c.Request.Context(), "")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"root":          a.root,
			"indexed_files": len(paths),
		})
	}
}

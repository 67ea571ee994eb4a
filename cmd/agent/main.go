// Package main is the entry point of the chess-engine gateway agent.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tecu23/jetson-gateway/internal/logging"
	"github.com/tecu23/jetson-gateway/internal/root"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging")
	workDir := flag.String("dir", ".", "agent working directory (holds jetson_agent.conf, mgmt.port, metrics.addr)")
	flag.Parse()

	logger, err := logging.New(*debug)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file loaded", zap.Error(err))
	}

	dir := *workDir
	if dir == "" {
		dir = "."
	}
	if abs, err := os.Getwd(); err == nil && dir == "." {
		dir = abs
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGABRT)

	if err := root.Run(context.Background(), root.Config{WorkDir: dir, Logger: logger}); err != nil {
		select {
		case sig := <-sigCh:
			logger.Info("agent stopped by signal", zap.Stringer("signal", sig))
			_ = logger.Sync()
			os.Exit(int(sig.(syscall.Signal)))
		default:
		}
		logger.Fatal("agent exited with error", zap.Error(err))
	}
}

// ====================================
// File: cmd/curved/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"os"

	"go.uber.org/zap"

	"github.com/curvelaunch/curved/internal/app"
	"github.com/curvelaunch/curved/internal/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the engine config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logCfg := logger.DefaultConfig()
	logCfg.Debug = *debug
	log, err := logger.New(logCfg)
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	log.Info("Starting curve engine")

	runner := app.NewRunner(log.Logger)
	if err := runner.Initialize(*configPath); err != nil {
		log.Fatal("Failed to initialize engine", zap.Error(err))
	}

	if err := runner.Run(ctx); err != nil {
		log.Fatal("Engine execution error", zap.Error(err))
	}

	runner.Shutdown()
}

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"posestream/internal/app"
	"posestream/internal/config"
	"posestream/internal/logger"
)

func main() {
	configFile := flag.String("config", "", "YAML config file (overrides CONFIG_FILE)")
	flag.Parse()

	if *configFile != "" {
		os.Setenv("CONFIG_FILE", *configFile)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logs, err := logger.New(cfg.LogDirectory, cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logs.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logs)
	if err != nil {
		logs.Error("Startup failed: %v", err)
		logs.Close()
		log.Fatalf("Failed to start server: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		logs.Error("Server stopped: %v", err)
		logs.Close()
		os.Exit(1)
	}
}

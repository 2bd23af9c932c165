package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"worldbuilder-agent/handler"
	"worldbuilder-agent/internal/app"
	"worldbuilder-agent/internal/config"
	"worldbuilder-agent/internal/logging"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load(os.Getenv("WORLDBUILDER_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// ---- Router ----
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build router", zap.Error(err))
	}

	// ---- Handler ----
	h, err := handler.NewHandler(a.Service, logger)
	if err != nil {
		logger.Fatal("failed to create handler", zap.Error(err))
	}

	lambda.Start(h.Handle)
}

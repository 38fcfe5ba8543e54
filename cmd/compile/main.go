package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/suppkb/internal/pipeline"
	"github.com/OFFIS-RIT/suppkb/internal/storage"
	"github.com/OFFIS-RIT/suppkb/internal/util"
	"github.com/OFFIS-RIT/suppkb/pkg/logger"
	"github.com/OFFIS-RIT/suppkb/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	config, cleanup, err := pipeline.ConfigFromEnv(ctx)
	if err != nil {
		logger.Fatal("Could not build run configuration", "err", err)
	}
	defer cleanup()

	summary, err := pipeline.Run(ctx, config)
	if err != nil {
		logger.Fatal("Compile run failed", "err", err)
	}

	if util.GetEnv("AWS_BUCKET") != "" {
		client := storage.NewS3Client(ctx)
		if client == nil {
			logger.Fatal("Could not create S3 client")
		}
		key, err := storage.UploadArchive(ctx, client, summary.OutputFile)
		if err != nil {
			logger.Fatal("Could not upload archive", "err", err)
		}
		logger.Info("Archive uploaded", "key", key)
	}
}

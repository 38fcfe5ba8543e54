package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/suppkb/internal/pipeline"
	"github.com/OFFIS-RIT/suppkb/internal/queue"
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

	baseConfig, cleanup, err := pipeline.ConfigFromEnv(ctx)
	if err != nil {
		logger.Fatal("Could not build run configuration", "err", err)
	}
	defer cleanup()

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	// Compile runs are heavyweight, so take one job at a time.
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := ch.Consume(
		queue.CompileQueue,
		"compile_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "err", err)
	}

	logger.Info("Listening for compile jobs")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping worker")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("Message channel closed")
				return
			}

			startTime := time.Now()
			logger.Info("Received compile job")

			err := queue.ProcessCompileMessage(ctx, msg.Body, baseConfig)
			if err != nil {
				logger.Error("Error processing compile job", "err", err)
				queue.HandleProcessingError(ch, msg)
				continue
			}

			if util.GetEnv("AWS_BUCKET") != "" {
				uploadArchive(ctx, baseConfig, msg.Body)
			}

			if err := msg.Ack(false); err != nil {
				logger.Error("Failed to ack message", "err", err)
			}
			logger.Info("Compile job processed", "duration", time.Since(startTime).Round(time.Second))
		}
	}
}

func uploadArchive(ctx context.Context, baseConfig pipeline.Config, body []byte) {
	outputFile := queue.OutputFileFor(body, baseConfig)

	client := storage.NewS3Client(ctx)
	if client == nil {
		logger.Error("Could not create S3 client, skipping upload")
		return
	}
	key, err := storage.UploadArchive(ctx, client, outputFile)
	if err != nil {
		logger.Error("Could not upload archive", "err", err)
		return
	}
	logger.Info("Archive uploaded", "key", key)
}

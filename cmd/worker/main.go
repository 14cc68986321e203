package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/graphloom/backend/internal/graphstore"
	"github.com/OFFIS-RIT/graphloom/backend/internal/queue"
	"github.com/OFFIS-RIT/graphloom/backend/internal/storage"
	"github.com/OFFIS-RIT/graphloom/backend/internal/util"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/graph"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/logger"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/logger/console"

	amqp "github.com/rabbitmq/amqp091-go"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  debug,
		Prefix: "worker",
	})
	logger.Init(consoleLogger)

	// graph store and pipeline
	s, closeStore, err := graphstore.Open(ctx, graphstore.ConfigFromEnv())
	if err != nil {
		logger.Fatal("Failed to open graph store", "err", err)
	}
	defer closeStore()

	pipeline, err := graph.NewPipeline(graph.NewPipelineParams{
		Store:           s,
		ParallelUpserts: int(util.GetEnvNumeric("INGEST_PARALLEL_UPSERTS", 8)),
		MaxRetries:      int(util.GetEnvNumeric("INGEST_MAX_RETRIES", 3)),
	})
	if err != nil {
		logger.Fatal("Failed to create ingest pipeline", "err", err)
	}

	// payloads referenced by object_key
	var payloads queue.PayloadSource
	if bucket := util.GetEnv("AWS_BUCKET"); bucket != "" {
		client, err := storage.NewS3Client(ctx)
		if err != nil {
			logger.Fatal("Failed to create S3 client", "err", err)
		}
		payloads = storage.NewObjectStore(client, bucket)
	}

	// Init rabbitmq
	conn, err := queue.Init()
	if err != nil {
		logger.Fatal("Failed to connect to queue", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.IngestQueue}); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	// prefetch=1 so only one batch is ingested at a time
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, false); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.IngestQueue,
		fmt.Sprintf("%s_consumer", queue.IngestQueue),
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.IngestQueue, "err", err)
	}

	logger.Info("Listening for messages", "queue", queue.IngestQueue)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received, exiting...")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("Message channel closed", "queue", queue.IngestQueue)
				return
			}
			handleMessage(ctx, pipeline, payloads, ch, consumerCh, msg)
		}
	}
}

func handleMessage(
	ctx context.Context,
	pipeline queue.Ingester,
	payloads queue.PayloadSource,
	ch *amqp.Channel,
	consumerCh *amqp.Channel,
	msg amqp.Delivery,
) {
	startTime := time.Now()
	logger.Info("Received message", "queue", queue.IngestQueue, "retries", queue.Retries(msg.Headers))

	ingestMsg, result, err := queue.ProcessIngestMessage(ctx, pipeline, payloads, msg.Body)
	correlationID := ""
	if ingestMsg != nil {
		correlationID = ingestMsg.CorrelationID
	}

	if err != nil {
		logger.Error("Error processing message", "queue", queue.IngestQueue, "correlation_id", correlationID, "err", err)
		handleProcessingError(consumerCh, msg, errors.Is(err, queue.ErrInvalidMessage))
		return
	}

	if err := msg.Ack(false); err != nil {
		logger.Error("Failed to ack message", "err", err)
	}

	event, err := json.Marshal(queue.GraphUpdatedEvent{CorrelationID: correlationID, Result: result})
	if err == nil {
		err = queue.PublishTopic(ch, queue.GraphUpdatedTopic, event)
	}
	if err != nil {
		logger.Warn("Failed to publish graph update event", "correlation_id", correlationID, "err", err)
	}

	processingDuration := time.Since(startTime)
	hours := int(processingDuration.Hours())
	minutes := int(processingDuration.Minutes()) % 60
	seconds := int(processingDuration.Seconds()) % 60
	logger.Info(
		"Message processed successfully",
		"correlation_id", correlationID,
		"duration", fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds),
	)
}

// handleProcessingError moves a failed message to the retry queue, or to the
// dead-letter queue once it is out of retries or can never succeed.
// Node upserts are idempotent on redelivery; relationships of a partially
// ingested batch are inserted again when duplicates are allowed.
func handleProcessingError(ch *amqp.Channel, msg amqp.Delivery, permanent bool) {
	target, headers := queue.Reroute(queue.IngestQueue, msg.Headers, permanent)
	logger.Info("Rerouting message", "target", target, "retries", queue.Retries(headers))

	pubErr := ch.Publish(
		"",
		target,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         msg.Body,
			Headers:      headers,
			DeliveryMode: amqp.Persistent,
		},
	)
	if pubErr != nil {
		logger.Error("Failed to publish rerouted message", "target", target, "err", pubErr)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

package queue

import (
	"fmt"

	"github.com/rabbitmq/amqp091-go"

	"github.com/OFFIS-RIT/suppkb/internal/util"
	"github.com/OFFIS-RIT/suppkb/pkg/logger"
)

// CompileQueue receives compile-job messages; failed jobs pass through the
// retry queue and land in the dead-letter queue after the retry budget.
const (
	CompileQueue      = "compile_queue"
	CompileRetryQueue = "compile_queue_retry"
	CompileDLQ        = "compile_queue_dlq"

	retryTTLMs = 30000
	maxRetries = 3
)

func Init() *amqp091.Connection {
	user := util.GetEnv("RABBITMQ_USER")
	pass := util.GetEnv("RABBITMQ_PASSWORD")
	host := util.GetEnv("RABBITMQ_HOST")
	port := util.GetEnv("RABBITMQ_PORT")

	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		user,
		pass,
		host,
		port,
	)

	conn, err := amqp091.Dial(connURL)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}

	return conn
}

func SetupQueues(ch *amqp091.Channel) error {
	_, err := ch.QueueDeclare(
		CompileQueue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to declare %s: %w", CompileQueue, err)
	}

	_, err = ch.QueueDeclare(
		CompileDLQ,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare %s: %w", CompileDLQ, err)
	}

	_, err = ch.QueueDeclare(
		CompileRetryQueue,
		true,
		false,
		false,
		false,
		amqp091.Table{
			"x-message-ttl":             int32(retryTTLMs),
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": CompileQueue,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare %s: %w", CompileRetryQueue, err)
	}

	return nil
}

func Publish(ch *amqp091.Channel, queueName string, data []byte) error {
	err := ch.Publish(
		"", // default exchange
		queueName,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         data,
			DeliveryMode: amqp091.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queueName, err)
	}
	return nil
}

// HandleProcessingError routes a failed delivery to the retry queue, or to
// the dead-letter queue once the retry budget is exhausted.
func HandleProcessingError(ch *amqp091.Channel, msg amqp091.Delivery) {
	target := CompileRetryQueue
	if deathCount(msg) >= maxRetries {
		target = CompileDLQ
	}

	if err := Publish(ch, target, msg.Body); err != nil {
		logger.Error("Failed to route failed message, requeueing", "queue", target, "err", err)
		_ = msg.Nack(false, true)
		return
	}
	if err := msg.Ack(false); err != nil {
		logger.Error("Failed to ack message after rerouting", "err", err)
	}
}

func deathCount(msg amqp091.Delivery) int64 {
	deaths, ok := msg.Headers["x-death"].([]any)
	if !ok {
		return 0
	}
	var count int64
	for _, death := range deaths {
		table, ok := death.(amqp091.Table)
		if !ok {
			continue
		}
		if n, ok := table["count"].(int64); ok {
			count += n
		}
	}
	return count
}

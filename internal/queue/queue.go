package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/OFFIS-RIT/graphloom/backend/internal/util"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const (
	// IngestQueue carries extraction batches for asynchronous ingestion.
	IngestQueue = "ingest_queue"

	// GraphEventsExchange receives a graph.updated event after every
	// successful asynchronous ingest.
	GraphEventsExchange = "pubsub_exchange"
	GraphUpdatedTopic   = "graph.updated"

	retryTTL = int32(10000)
)

// Init dials RabbitMQ using the RABBITMQ_* environment variables.
func Init() (*amqp091.Connection, error) {
	user := util.GetEnvString("RABBITMQ_USER", "guest")
	pass := util.GetEnvString("RABBITMQ_PASSWORD", "guest")
	host := util.GetEnvString("RABBITMQ_HOST", "localhost")
	port := util.GetEnvString("RABBITMQ_PORT", "5672")

	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		user,
		pass,
		host,
		port,
	)

	conn, err := amqp091.Dial(connURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	logger.Debug("[Queue] Connected to RabbitMQ", "host", host, "port", port)
	return conn, nil
}

// SetupQueues declares each queue together with its dead-letter queue and a
// retry queue that dead-letters back into the main queue after retryTTL.
func SetupQueues(ch *amqp091.Channel, queueNames []string) error {
	for _, name := range queueNames {
		_, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		)
		if err != nil {
			return fmt.Errorf("declaring queue %s: %w", name, err)
		}

		dlqName := DeadLetterQueue(name)
		_, err = ch.QueueDeclare(
			dlqName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("declaring queue %s: %w", dlqName, err)
		}

		retryName := RetryQueue(name)
		_, err = ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             retryTTL,
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("declaring queue %s: %w", retryName, err)
		}
	}

	return nil
}

func DeadLetterQueue(name string) string {
	return name + "_dlq"
}

func RetryQueue(name string) string {
	return name + "_retry"
}

// PublishFIFO publishes a persistent message to queueName via the default
// exchange.
func PublishFIFO(ch *amqp091.Channel, queueName string, data []byte) error {
	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}

	return ch.Publish(
		"",
		queueName,
		false,
		false,
		publishing,
	)
}

// PublishTopic publishes a transient event to the graph events exchange.
func PublishTopic(ch *amqp091.Channel, topic string, data []byte) error {
	err := ch.ExchangeDeclare(
		GraphEventsExchange,
		"topic",
		false,
		true,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	publishing := amqp091.Publishing{
		ContentType: "application/json",
		Body:        data,
		Timestamp:   time.Now(),
	}

	return ch.Publish(
		GraphEventsExchange,
		topic,
		false,
		false,
		publishing,
	)
}

// ChannelPublisher serializes publishes on a shared channel.
type ChannelPublisher struct {
	mu sync.Mutex
	ch *amqp091.Channel
}

func NewChannelPublisher(ch *amqp091.Channel) *ChannelPublisher {
	return &ChannelPublisher{ch: ch}
}

func (p *ChannelPublisher) Publish(queueName string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PublishFIFO(p.ch, queueName, data)
}

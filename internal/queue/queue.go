// Package queue carries stage run requests over RabbitMQ.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/keggflow/internal/util"
	"github.com/OFFIS-RIT/keggflow/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// StageQueue receives stage run requests. SetupQueues also creates its
// _retry and _dlq companions.
const StageQueue = "stage_queue"

const retryDelay = 10 * time.Second

type declarer interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
}

type publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// ConnURL builds the broker URL from RABBITMQ_* variables.
func ConnURL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		util.GetEnv("RABBITMQ_USER"),
		util.GetEnv("RABBITMQ_PASSWORD"),
		util.GetEnvString("RABBITMQ_HOST", "localhost"),
		util.GetEnvString("RABBITMQ_PORT", "5672"),
	)
}

// Init dials the broker, retrying while it is still starting up.
func Init(ctx context.Context) (*amqp091.Connection, error) {
	params := util.BackoffParams{MaxTries: 5, Base: time.Second, Factor: 2}
	conn, err := util.RetryWithBackoff(ctx, params, func(context.Context) (*amqp091.Connection, error) {
		conn, err := amqp091.Dial(ConnURL())
		if err != nil {
			logger.Warn("[Queue] Broker not reachable", "err", err)
		}
		return conn, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// SetupQueues declares each queue with a dead letter queue (name_dlq) and a
// retry queue (name_retry) whose messages return to the main queue after
// retryDelay.
func SetupQueues(ch declarer, queueNames []string) error {
	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare %s: %w", name, err)
		}

		dlqName := name + "_dlq"
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare %s: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err := ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryDelay.Milliseconds()),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to declare %s: %w", retryName, err)
		}
	}
	return nil
}

// PublishFIFO sends a persistent message to the default exchange.
func PublishFIFO(ch publisher, queueName string, data []byte, headers amqp091.Table) error {
	return ch.Publish(
		"",
		queueName,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         data,
			Headers:      headers,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		},
	)
}

package queue

import (
	"context"
	"errors"
	"time"

	"github.com/OFFIS-RIT/keggflow/pkg/common"
	"github.com/OFFIS-RIT/keggflow/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// MaxRetries is how often a failed message is retried before it is moved to
// the dead letter queue.
const MaxRetries = 5

const retriesHeader = "x-retries"

// StageRunner runs pipeline stages.
type StageRunner interface {
	Run(ctx context.Context, force bool) error
	RunStage(ctx context.Context, name string, force bool) error
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Delivery is the part of amqp091.Delivery the handler reads.
type Delivery struct {
	Body    []byte
	Headers amqp091.Table
	Ack     acknowledger
}

// FromAMQP wraps a broker delivery.
func FromAMQP(d *amqp091.Delivery) Delivery {
	return Delivery{Body: d.Body, Headers: d.Headers, Ack: d}
}

// ProcessStageMessage runs the requested stage. Undecodable messages and
// permanent failures go straight to the dead letter queue; other failed runs
// are retried.
func ProcessStageMessage(ctx context.Context, runner StageRunner, ch publisher, d Delivery, queueName string) {
	start := time.Now()
	msg, err := DecodeStageMessage(d.Body)
	if err != nil {
		logger.Error("[Queue] Invalid message", "queue", queueName, "err", err)
		deadLetter(ch, d, queueName)
		return
	}

	logger.Info("[Queue] Running stage", "id", msg.ID, "stage", msg.Stage, "force", msg.Force)
	if msg.Stage == StageAll {
		err = runner.Run(ctx, msg.Force)
	} else {
		err = runner.RunStage(ctx, msg.Stage, msg.Force)
	}

	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("[Queue] Stage interrupted, requeueing", "id", msg.ID, "stage", msg.Stage)
			d.Ack.Nack(false, true)
			return
		}
		logger.Error("[Queue] Stage failed", "id", msg.ID, "stage", msg.Stage, "err", err)
		if permanent(err) {
			deadLetter(ch, d, queueName)
			return
		}
		handleProcessingError(ch, d, queueName)
		return
	}

	if err := d.Ack.Ack(false); err != nil {
		logger.Error("[Queue] Failed to ack message", "err", err)
	}
	logger.Info("[Queue] Stage done", "id", msg.ID, "stage", msg.Stage, "duration", time.Since(start).Round(time.Millisecond))
}

// permanent reports errors that a retry on the same files cannot fix.
func permanent(err error) bool {
	return errors.Is(err, common.ErrNoValidIdentifiers) ||
		errors.Is(err, common.ErrEmptyResult) ||
		errors.Is(err, common.ErrUnknownStage)
}

// retryCount reads the x-retries header. The broker may hand integers back
// with any width.
func retryCount(headers amqp091.Table) int {
	switch v := headers[retriesHeader].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	}
	return 0
}

func handleProcessingError(ch publisher, d Delivery, queueName string) {
	retries := retryCount(d.Headers)
	if retries >= MaxRetries {
		deadLetter(ch, d, queueName)
		return
	}

	headers := amqp091.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[retriesHeader] = int32(retries + 1)

	retryName := queueName + "_retry"
	if err := PublishFIFO(ch, retryName, d.Body, headers); err != nil {
		logger.Error("[Queue] Failed to publish to retry queue", "retry_queue", retryName, "err", err)
		d.Ack.Nack(false, true)
		return
	}
	logger.Info("[Queue] Scheduled retry", "retry_queue", retryName, "attempt", retries+1)
	d.Ack.Ack(false)
}

func deadLetter(ch publisher, d Delivery, queueName string) {
	dlqName := queueName + "_dlq"
	logger.Info("[Queue] Sending message to DLQ", "dlq", dlqName)
	if err := PublishFIFO(ch, dlqName, d.Body, d.Headers); err != nil {
		logger.Error("[Queue] Failed to publish to DLQ", "dlq", dlqName, "err", err)
		d.Ack.Nack(false, true)
		return
	}
	d.Ack.Ack(false)
}

package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/OFFIS-RIT/keggflow/pkg/common"

	"github.com/rabbitmq/amqp091-go"
)

type declared struct {
	name string
	args amqp091.Table
}

type fakeChannel struct {
	declared  []declared
	published map[string][]amqp091.Publishing
	failOn    string
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error) {
	f.declared = append(f.declared, declared{name: name, args: args})
	return amqp091.Queue{Name: name}, nil
}

func (f *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if key == f.failOn {
		return errors.New("channel closed")
	}
	if f.published == nil {
		f.published = map[string][]amqp091.Publishing{}
	}
	f.published[key] = append(f.published[key], msg)
	return nil
}

type fakeAck struct {
	acked   int
	nacked  int
	requeue bool
}

func (f *fakeAck) Ack(bool) error { f.acked++; return nil }

func (f *fakeAck) Nack(_ bool, requeue bool) error {
	f.nacked++
	f.requeue = requeue
	return nil
}

type fakeRunner struct {
	err   error
	stage string
	full  bool
	force bool
}

func (f *fakeRunner) Run(ctx context.Context, force bool) error {
	f.full = true
	f.force = force
	return f.err
}

func (f *fakeRunner) RunStage(ctx context.Context, name string, force bool) error {
	f.stage = name
	f.force = force
	return f.err
}

func TestSetupQueues(t *testing.T) {
	ch := &fakeChannel{}
	if err := SetupQueues(ch, []string{StageQueue}); err != nil {
		t.Fatalf("SetupQueues: %v", err)
	}
	want := []string{StageQueue, StageQueue + "_dlq", StageQueue + "_retry"}
	if len(ch.declared) != len(want) {
		t.Fatalf("got %d queues, want %d", len(ch.declared), len(want))
	}
	for i, name := range want {
		if ch.declared[i].name != name {
			t.Fatalf("queue %d: got %q, want %q", i, ch.declared[i].name, name)
		}
	}
	retryArgs := ch.declared[2].args
	if retryArgs["x-dead-letter-routing-key"] != StageQueue {
		t.Fatalf("got routing key %v, want %q", retryArgs["x-dead-letter-routing-key"], StageQueue)
	}
	if retryArgs["x-message-ttl"] != int32(10000) {
		t.Fatalf("got ttl %v, want 10000", retryArgs["x-message-ttl"])
	}
}

func TestEnqueueRoundTrip(t *testing.T) {
	ch := &fakeChannel{}
	id, err := Enqueue(ch, "closure", true)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	msgs := ch.published[StageQueue]
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].DeliveryMode != amqp091.Persistent {
		t.Fatalf("got delivery mode %d, want persistent", msgs[0].DeliveryMode)
	}

	msg, err := DecodeStageMessage(msgs[0].Body)
	if err != nil {
		t.Fatalf("DecodeStageMessage: %v", err)
	}
	if msg.ID != id || msg.Stage != "closure" || !msg.Force {
		t.Fatalf("got %+v, want id %q stage closure force", msg, id)
	}
}

func TestDecodeStageMessageRejects(t *testing.T) {
	for _, body := range []string{`not json`, `{"id":"x"}`} {
		if _, err := DecodeStageMessage([]byte(body)); err == nil {
			t.Fatalf("DecodeStageMessage(%q): expected error", body)
		}
	}
}

func TestRetryCount(t *testing.T) {
	tests := []struct {
		name    string
		headers amqp091.Table
		want    int
	}{
		{"missing", nil, 0},
		{"int32", amqp091.Table{retriesHeader: int32(3)}, 3},
		{"int64", amqp091.Table{retriesHeader: int64(4)}, 4},
		{"int", amqp091.Table{retriesHeader: 2}, 2},
		{"string", amqp091.Table{retriesHeader: "2"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryCount(tt.headers); got != tt.want {
				t.Fatalf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProcessStageMessage(t *testing.T) {
	body := []byte(`{"id":"abc","stage":"link","force":false}`)

	t.Run("success acks", func(t *testing.T) {
		ch, ack, runner := &fakeChannel{}, &fakeAck{}, &fakeRunner{}
		ProcessStageMessage(context.Background(), runner, ch, Delivery{Body: body, Ack: ack}, StageQueue)
		if runner.stage != "link" || ack.acked != 1 || len(ch.published) != 0 {
			t.Fatalf("got stage %q acked %d published %v", runner.stage, ack.acked, ch.published)
		}
	})

	t.Run("all runs the pipeline", func(t *testing.T) {
		ch, ack, runner := &fakeChannel{}, &fakeAck{}, &fakeRunner{}
		msg := []byte(`{"id":"abc","stage":"all","force":true}`)
		ProcessStageMessage(context.Background(), runner, ch, Delivery{Body: msg, Ack: ack}, StageQueue)
		if !runner.full || !runner.force || runner.stage != "" {
			t.Fatalf("got full %v force %v stage %q", runner.full, runner.force, runner.stage)
		}
	})

	t.Run("failure retries", func(t *testing.T) {
		ch, ack := &fakeChannel{}, &fakeAck{}
		runner := &fakeRunner{err: errors.New("boom")}
		d := Delivery{Body: body, Headers: amqp091.Table{retriesHeader: int32(1)}, Ack: ack}
		ProcessStageMessage(context.Background(), runner, ch, d, StageQueue)
		retried := ch.published[StageQueue+"_retry"]
		if len(retried) != 1 || ack.acked != 1 {
			t.Fatalf("got %d retries acked %d, want 1 and 1", len(retried), ack.acked)
		}
		if got := retried[0].Headers[retriesHeader]; got != int32(2) {
			t.Fatalf("got retries header %v, want 2", got)
		}
		if d.Headers[retriesHeader] != int32(1) {
			t.Fatalf("delivery headers were modified")
		}
	})

	t.Run("exhausted goes to dlq", func(t *testing.T) {
		ch, ack := &fakeChannel{}, &fakeAck{}
		runner := &fakeRunner{err: errors.New("boom")}
		d := Delivery{Body: body, Headers: amqp091.Table{retriesHeader: int32(MaxRetries)}, Ack: ack}
		ProcessStageMessage(context.Background(), runner, ch, d, StageQueue)
		if len(ch.published[StageQueue+"_dlq"]) != 1 || len(ch.published[StageQueue+"_retry"]) != 0 {
			t.Fatalf("got published %v, want one dlq message", ch.published)
		}
	})

	t.Run("permanent failure skips retries", func(t *testing.T) {
		permanentErrs := []error{
			fmt.Errorf("stage validate: %w", &common.ValidationError{Kind: "ko", Source: "ko_candidates.txt"}),
			fmt.Errorf("stage parse-reactions: %w", &common.EmptyResultError{Path: "reactions.flat", Reason: "file is empty"}),
			fmt.Errorf("%w %q", common.ErrUnknownStage, "nope"),
		}
		for _, perr := range permanentErrs {
			ch, ack := &fakeChannel{}, &fakeAck{}
			runner := &fakeRunner{err: perr}
			ProcessStageMessage(context.Background(), runner, ch, Delivery{Body: body, Ack: ack}, StageQueue)
			if len(ch.published[StageQueue+"_dlq"]) != 1 || len(ch.published[StageQueue+"_retry"]) != 0 {
				t.Fatalf("%v: got published %v, want one dlq message", perr, ch.published)
			}
			if ack.acked != 1 {
				t.Fatalf("%v: got acked %d, want 1", perr, ack.acked)
			}
		}
	})

	t.Run("invalid message goes to dlq", func(t *testing.T) {
		ch, ack, runner := &fakeChannel{}, &fakeAck{}, &fakeRunner{}
		ProcessStageMessage(context.Background(), runner, ch, Delivery{Body: []byte("{}"), Ack: ack}, StageQueue)
		if len(ch.published[StageQueue+"_dlq"]) != 1 || runner.stage != "" {
			t.Fatalf("got published %v stage %q", ch.published, runner.stage)
		}
	})

	t.Run("cancelled requeues", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		ch, ack := &fakeChannel{}, &fakeAck{}
		runner := &fakeRunner{err: context.Canceled}
		ProcessStageMessage(ctx, runner, ch, Delivery{Body: body, Ack: ack}, StageQueue)
		if ack.nacked != 1 || !ack.requeue || len(ch.published) != 0 {
			t.Fatalf("got nacked %d requeue %v published %v", ack.nacked, ack.requeue, ch.published)
		}
	})

	t.Run("retry publish failure requeues", func(t *testing.T) {
		ch, ack := &fakeChannel{failOn: StageQueue + "_retry"}, &fakeAck{}
		runner := &fakeRunner{err: errors.New("boom")}
		ProcessStageMessage(context.Background(), runner, ch, Delivery{Body: body, Ack: ack}, StageQueue)
		if ack.nacked != 1 || ack.acked != 0 {
			t.Fatalf("got nacked %d acked %d", ack.nacked, ack.acked)
		}
	})
}

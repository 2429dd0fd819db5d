// Package queue consumes provider events from the signal queue and feeds
// them through live evaluation. One message is one raw event for one tenant.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ignite/playbook-engine/internal/engine"
	"github.com/ignite/playbook-engine/internal/signal"
)

// OrchestratorFactory builds (or returns) the tenant-scoped orchestrator a
// message should be evaluated against.
type OrchestratorFactory func(orgID string) *engine.Orchestrator

// Envelope is the queue message format: a tenant id wrapping a raw provider
// event.
type Envelope struct {
	OrgID string          `json:"orgId"`
	Event signal.RawEvent `json:"event"`
}

// Consumer long-polls the signal queue and evaluates each recognized signal
// live.
type Consumer struct {
	sqsClient     *sqs.Client
	queueURL      string
	orchestrators OrchestratorFactory
	waitSeconds   int32
	maxMessages   int32
	evalTimeout   time.Duration
	done          chan struct{}
	closeOnce     sync.Once
}

func NewConsumer(sqsClient *sqs.Client, queueURL string, orchestrators OrchestratorFactory, waitSeconds, maxMessages int, evalTimeout time.Duration) *Consumer {
	return &Consumer{
		sqsClient:     sqsClient,
		queueURL:      queueURL,
		orchestrators: orchestrators,
		waitSeconds:   int32(waitSeconds),
		maxMessages:   int32(maxMessages),
		evalTimeout:   evalTimeout,
		done:          make(chan struct{}),
	}
}

func (c *Consumer) Start(ctx context.Context) {
	log.Printf("[queue] signal consumer started (queue=%s)", c.queueURL)
	go c.poll(ctx)
}

func (c *Consumer) Stop() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Consumer) poll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		out, err := c.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: c.maxMessages,
			WaitTimeSeconds:     c.waitSeconds,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[queue] receive error: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, msg := range out.Messages {
			var env Envelope
			if err := json.Unmarshal([]byte(*msg.Body), &env); err != nil {
				log.Printf("[queue] bad message: %v", err)
				c.deleteMessage(ctx, msg.ReceiptHandle)
				continue
			}

			if c.processEnvelope(ctx, env) {
				c.deleteMessage(ctx, msg.ReceiptHandle)
			}
		}
	}
}

// processEnvelope evaluates one message and reports whether it should be
// deleted. Malformed events are deleted (they will never succeed); transient
// failures stay on the queue for redelivery.
func (c *Consumer) processEnvelope(ctx context.Context, env Envelope) bool {
	if env.OrgID == "" {
		log.Printf("[queue] dropping message with no orgId")
		return true
	}

	sig, detected := signal.Detect(env.Event, time.Now())
	if !detected {
		log.Printf("[queue] org %s: event %q carries no known signal", env.OrgID, env.Event.EventType)
		return true
	}

	evalCtx, cancel := c.evalContext(ctx)
	defer cancel()

	orch := c.orchestrators(env.OrgID)
	report, err := orch.Evaluate(evalCtx, sig, engine.Live)
	if err != nil {
		var verr *engine.ValidationError
		if errors.As(err, &verr) || engine.IsNotFound(err) {
			log.Printf("[queue] org %s: dropping signal %s: %v", env.OrgID, sig.ID, err)
			return true
		}
		if errors.Is(err, engine.ErrConcurrencyConflict) {
			log.Printf("[queue] org %s: customer %s contended, leaving for redelivery", env.OrgID, sig.CustomerID)
			return false
		}
		log.Printf("[queue] org %s: evaluate error: %v", env.OrgID, err)
		return false
	}

	log.Printf("[queue] org %s: signal %s (%s) evaluated, %d playbooks fired",
		env.OrgID, sig.ID, sig.Type, len(report.Runs))
	return true
}

// evalContext bounds one evaluation so a stuck downstream cannot stall the
// whole poll loop past the message visibility timeout.
func (c *Consumer) evalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.evalTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.evalTimeout)
}

func (c *Consumer) deleteMessage(ctx context.Context, handle *string) {
	c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: handle,
	})
}

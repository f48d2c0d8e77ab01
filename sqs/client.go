package sqs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/slackmgr/types"
)

// sqsClient is the subset of the AWS SQS API used by [Client].
type sqsClient interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// Message is a single SQS message held under a visibility lease.
// It is owned by the worker that received it.
type Message struct {
	ID            string
	ReceiptHandle string
	Body          string
	ReceivedAt    time.Time
}

// Client is an SQS queue consumer that receives one message at a time,
// renews message leases on request and deletes messages once the caller has
// fully processed them.
//
// Create a Client with [New], then call [Client.Init] once before any other
// method. Init is not thread-safe; all other methods are safe for concurrent
// use after Init returns, so a single Client can be shared by all workers.
type Client struct {
	client      sqsClient
	queueName   string
	queueURL    string
	awsCfg      *aws.Config
	opts        *Options
	logger      types.Logger
	initialized bool
}

// New creates a Client configured to consume from the named SQS queue.
//
// Functional options may be passed to override defaults (see With* functions).
// The logger is automatically enriched with "plugin" and "queue_name" fields.
//
// New does not connect to AWS. Call [Client.Init] to resolve the queue URL.
func New(awsCfg *aws.Config, queueName string, logger types.Logger, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	logger = logger.
		WithField("plugin", "sqs").
		WithField("queue_name", queueName)

	return &Client{
		awsCfg:    awsCfg,
		queueName: queueName,
		opts:      options,
		logger:    logger,
	}
}

// Init initializes the Client: validates options and resolves the queue URL
// via GetQueueUrl. It returns the receiver so that initialization can be
// chained with [New]:
//
//	client, err := sqs.New(&awsCfg, "log-events", logger).Init(ctx)
//
// Init is idempotent; subsequent calls on an already-initialized Client are
// no-ops. It is not thread-safe and must be called once during application
// startup before any concurrent access.
func (c *Client) Init(ctx context.Context) (*Client, error) {
	if c.initialized {
		return c, nil
	}

	if c.queueName == "" {
		return nil, errors.New("the SQS queue name cannot be empty")
	}

	if err := c.opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid SQS options: %w", err)
	}

	// Use injected client if provided (for testing), otherwise create real client
	if c.opts.sqsClient != nil {
		c.client = c.opts.sqsClient
	} else {
		c.client = sqs.NewFromConfig(*c.awsCfg, func(o *sqs.Options) {
			o.Retryer = retry.AddWithMaxBackoffDelay(o.Retryer, c.opts.sqsAPIMaxRetryBackoffDelay)
			o.Retryer = retry.AddWithMaxAttempts(o.Retryer, c.opts.sqsAPIMaxRetryAttempts)
		})
	}

	input := &sqs.GetQueueUrlInput{QueueName: aws.String(c.queueName)}

	if c.opts.queueOwnerAccountID != "" {
		input.QueueOwnerAWSAccountId = aws.String(c.opts.queueOwnerAccountID)
	}

	resp, err := c.client.GetQueueUrl(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to get SQS queue URL for %s: %w", c.queueName, err)
	}

	c.queueURL = aws.ToString(resp.QueueUrl)
	c.initialized = true

	c.logger.WithField("queue_url", c.queueURL).Info("SQS client initialized")

	return c, nil
}

// Name returns the SQS queue name supplied to [New].
func (c *Client) Name() string {
	return c.queueName
}

// VisibilityTimeout returns the lease duration requested on receive and on
// every renewal.
func (c *Client) VisibilityTimeout() time.Duration {
	return time.Duration(c.opts.sqsVisibilityTimeoutSeconds) * time.Second
}

// Receive long-polls the queue for at most one message. It returns a nil
// message and a nil error when the wait time elapsed without a delivery.
//
// Exactly one message is requested per call, so the caller always knows
// which receipt handle belongs to the object it is downloading. Cancelling
// ctx aborts an in-progress wait.
func (c *Client) Receive(ctx context.Context) (*Message, error) {
	if !c.initialized {
		return nil, errors.New("SQS client not initialized")
	}

	c.logger.WithField("wait_time", c.opts.sqsReceiveWaitTimeSeconds).Debug("Reading SQS queue")

	input := &sqs.ReceiveMessageInput{
		QueueUrl:            &c.queueURL,
		MaxNumberOfMessages: 1,
		VisibilityTimeout:   c.opts.sqsVisibilityTimeoutSeconds,
		WaitTimeSeconds:     c.opts.sqsReceiveWaitTimeSeconds,
	}

	output, err := c.client.ReceiveMessage(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to receive SQS message: %w", err)
	}

	if len(output.Messages) == 0 {
		return nil, nil //nolint:nilnil // an empty long poll is not an error
	}

	m := output.Messages[0]

	msg := &Message{
		ID:            aws.ToString(m.MessageId),
		ReceiptHandle: aws.ToString(m.ReceiptHandle),
		Body:          aws.ToString(m.Body),
		ReceivedAt:    time.Now(),
	}

	c.opts.metrics.MessageReceived()
	c.logger.WithField("message_id", msg.ID).Debug("SQS message received")

	return msg, nil
}

// Delete removes msg from the queue. It uses its own short-lived context so
// that a message whose processing already succeeded is still deleted when
// ctx has been cancelled by a shutdown.
func (c *Client) Delete(_ context.Context, msg *Message) error { //nolint:contextcheck // delete must complete regardless of caller's context state
	if !c.initialized {
		return errors.New("SQS client not initialized")
	}

	input := &sqs.DeleteMessageInput{
		QueueUrl:      &c.queueURL,
		ReceiptHandle: &msg.ReceiptHandle,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := c.client.DeleteMessage(ctx, input); err != nil {
		return fmt.Errorf("failed to delete SQS message %s: %w", msg.ID, err)
	}

	c.opts.metrics.MessageDeleted()
	c.logger.WithField("message_id", msg.ID).Debug("SQS message deleted")

	return nil
}

// ExtendVisibility renews the lease on msg for the full visibility timeout.
func (c *Client) ExtendVisibility(ctx context.Context, msg *Message) error {
	if !c.initialized {
		return errors.New("SQS client not initialized")
	}

	input := &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          &c.queueURL,
		ReceiptHandle:     &msg.ReceiptHandle,
		VisibilityTimeout: c.opts.sqsVisibilityTimeoutSeconds,
	}

	if _, err := c.client.ChangeMessageVisibility(ctx, input); err != nil {
		c.opts.metrics.LeaseRenewed(false)
		return fmt.Errorf("failed to extend SQS message visibility: %w", err)
	}

	c.opts.metrics.LeaseRenewed(true)

	c.logger.
		WithField("message_id", msg.ID).
		WithField("visibility_timeout_seconds", c.opts.sqsVisibilityTimeoutSeconds).
		Debug("SQS message visibility extended")

	return nil
}

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/megabin/megabin/internal/dailyroute"
	"github.com/megabin/megabin/internal/optimization"
	"github.com/megabin/megabin/internal/schedule"
)

// JobTypeOptimizeRoutes requests an on-demand daily route run.
const JobTypeOptimizeRoutes = "optimize_routes"

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	processor        *MessageProcessor
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Job              *OptimizeJob
	Logger           zerolog.Logger
}

// OptimizeMessage is an on-demand optimization request.
type OptimizeMessage struct {
	JobType   string `json:"job_type"`
	Date      string `json:"date,omitempty"`
	Overwrite bool   `json:"overwrite,omitempty"`
}

// Ack tells the caller whether a message should be acknowledged.
type Ack bool

// MessageProcessor decodes and runs optimize messages independently of the
// Pub/Sub transport.
type MessageProcessor struct {
	job    *OptimizeJob
	logger zerolog.Logger
}

// NewMessageProcessor creates a processor for job.
func NewMessageProcessor(job *OptimizeJob, logger zerolog.Logger) *MessageProcessor {
	return &MessageProcessor{job: job, logger: logger}
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// A run holds one message for its whole duration.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = 30 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		processor:        NewMessageProcessor(cfg.Job, cfg.Logger),
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		logger := h.logger.With().
			Str("message_id", msg.ID).
			Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
			Logger()

		if h.processor.Process(logger.WithContext(ctx), msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// Process handles one message body. Messages that can never succeed are
// acknowledged so they are not redelivered.
func (p *MessageProcessor) Process(ctx context.Context, data []byte) Ack {
	startTime := time.Now()
	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &p.logger
	}

	logger.Debug().Msg("received pubsub message")

	var msg OptimizeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		return true
	}

	if msg.JobType != JobTypeOptimizeRoutes {
		logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return true
	}

	date, err := p.parseDate(msg.Date)
	if err != nil {
		logger.Error().Err(err).Str("date", msg.Date).Msg("invalid date in message")
		return true
	}

	_, err = p.job.Run(ctx, TriggerPubSub, date, dailyroute.RunOptions{Overwrite: msg.Overwrite})
	if err != nil {
		if retryable(err) {
			return false
		}
		return true
	}

	logger.Info().
		Str("job_type", msg.JobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")
	return true
}

func (p *MessageProcessor) parseDate(value string) (time.Time, error) {
	if value == "" {
		return p.job.Today(), nil
	}
	t, err := time.Parse(schedule.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	return t, nil
}

// retryable reports whether redelivering the message could succeed.
// Bad input, missing configuration and recorded progress will fail again.
func retryable(err error) bool {
	switch {
	case errors.Is(err, optimization.ErrValidation),
		errors.Is(err, optimization.ErrConfiguration),
		errors.Is(err, optimization.ErrNoCapacity),
		errors.Is(err, dailyroute.ErrProgressRecorded):
		return false
	default:
		return true
	}
}

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// ErrMalformedMessage is returned for messages that are not a RefreshMessage.
var ErrMalformedMessage = errors.New("malformed refresh message")

// RefreshMessage is the payload published on the refresh topic.
type RefreshMessage struct {
	JobType string `json:"job_type"`
}

// Dispatcher runs the job named by a refresh message.
type Dispatcher struct {
	job    *RefreshJob
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher for a refresh job.
func NewDispatcher(job *RefreshJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{job: job, logger: logger}
}

// Dispatch decodes data and runs its job. Unknown job types are ignored.
// A station refresh fails when more stations failed than succeeded.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) error {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	switch msg.JobType {
	case JobStationRefresh:
		result, err := d.job.Run(ctx)
		if err != nil {
			return err
		}
		if result.Failed > result.Successful {
			return fmt.Errorf("too many station failures: %d/%d", result.Failed, result.Stations)
		}
		return nil
	case JobHealthCheck:
		return d.job.CheckSnapshot(ctx)
	default:
		d.logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return nil
	}
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// PubSubHandler receives refresh messages from a subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// NewPubSubHandler creates a Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start receives messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().Str("subscription", h.subscriptionName).Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		start := time.Now()
		logger := h.logger.With().Str("message_id", msg.ID).Logger()

		err := h.dispatcher.Dispatch(ctx, msg.Data)
		switch {
		case errors.Is(err, ErrMalformedMessage):
			logger.Error().Err(err).Msg("dropping malformed message")
			msg.Ack()
		case err != nil:
			logger.Error().Err(err).Msg("job failed")
			msg.Nack()
		default:
			logger.Info().Dur("duration", time.Since(start)).Msg("job completed")
			msg.Ack()
		}
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

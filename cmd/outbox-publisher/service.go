package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hoangtran/auctionhub-backend/pkg/config"
	"github.com/hoangtran/auctionhub-backend/pkg/db/models"
	"github.com/hoangtran/auctionhub-backend/pkg/enums"
	"github.com/hoangtran/auctionhub-backend/pkg/logger"
	"github.com/hoangtran/auctionhub-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPollMs      = 500
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	backoffCeiling     = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type messageBus interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type eventStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetterStore interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// topicPublisher and publishResult wrap the pubsub SDK so tests can swap in
// fakes without a broker.
type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type publisherFactory func(topic string) topicPublisher

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               txRunner
	PubSub           messageBus
	Repository       eventStore
	DLQRepository    deadLetterStore
	Registry         eventResolver
	PublisherFactory publisherFactory
}

// Service drains the outbox table and relays each row to Pub/Sub. Rows that
// keep failing move to the dead-letter table instead of blocking the batch.
type Service struct {
	cfg              *config.Config
	logg             *logger.Logger
	db               txRunner
	bus              messageBus
	store            eventStore
	dlq              deadLetterStore
	resolver         eventResolver
	publisherFactory publisherFactory
	batchSize        int
	maxAttempts      int
	pollInterval     time.Duration
	jitter           *rand.Rand
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.DLQRepository == nil {
		return nil, errors.New("dlq repository is required")
	}
	if params.Registry == nil {
		return nil, errors.New("event registry is required")
	}

	factory := params.PublisherFactory
	if factory == nil {
		factory = func(topic string) topicPublisher {
			pub := params.PubSub.Publisher(topic)
			if pub == nil {
				return nil
			}
			return sdkPublisher{pub}
		}
	}

	batch := params.Config.Outbox.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := params.Config.Outbox.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}
	maxAttempts := params.Config.Outbox.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Service{
		cfg:              params.Config,
		logg:             params.Logger,
		db:               params.DB,
		bus:              params.PubSub,
		store:            params.Repository,
		dlq:              params.DLQRepository,
		resolver:         params.Registry,
		publisherFactory: factory,
		batchSize:        batch,
		maxAttempts:      maxAttempts,
		pollInterval:     time.Duration(pollMs) * time.Millisecond,
		jitter:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Run polls until ctx is canceled. Consecutive batch errors stretch the pause
// between polls up to backoffCeiling; an empty table just waits one interval.
func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := s.bus.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	var failStreak int
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "outbox publisher stopping")
			return ctx.Err()
		default:
		}

		drained, err := s.drainOnce(ctx)
		if err != nil {
			failStreak++
			s.logg.Error(ctx, "outbox batch failed", err)
			if err := s.pause(ctx, s.backoffFor(failStreak)); err != nil {
				return err
			}
			continue
		}
		failStreak = 0

		if drained > 0 {
			continue
		}
		if err := s.pause(ctx, s.withJitter(s.pollInterval)); err != nil {
			return err
		}
	}
}

// drainOnce claims one batch inside a single transaction and reports how many
// rows it settled. SKIP LOCKED in the fetch keeps concurrent publishers from
// double-sending.
func (s *Service) drainOnce(ctx context.Context) (int, error) {
	drained := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.store.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		for _, event := range events {
			if err := s.dispatch(ctx, tx, event); err != nil {
				return err
			}
			drained++
		}
		return nil
	})
	return drained, err
}

// dispatch settles one row: published, retried later, or dead-lettered. It
// only returns an error when a bookkeeping write fails, which aborts the
// whole transaction.
func (s *Service) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	resolved, err := s.resolver.Resolve(event)
	if err != nil {
		return s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err)
	}

	lctx := s.logg.WithFields(ctx, s.eventFields(event, resolved))
	pubErr := s.publish(ctx, event, resolved)
	if pubErr == nil {
		if err := s.store.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.logg.Info(lctx, "outbox event published")
		return nil
	}

	var nonRetry registry.NonRetryableError
	if errors.As(pubErr, &nonRetry) {
		return s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, pubErr)
	}

	if event.AttemptCount+1 >= s.maxAttempts {
		return s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("max publish attempts reached: %w", pubErr))
	}

	s.logg.Warn(s.logg.WithField(lctx, "error", pubErr.Error()), "outbox publish failed, will retry")
	if err := s.store.MarkFailedTx(tx, event.ID, pubErr); err != nil {
		return fmt.Errorf("mark failed %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publisherFactory(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	msg := &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	}

	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(pctx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil result for topic %s", topic))
	}
	_, err := result.Get(pctx)
	return err
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	lctx := s.logg.WithFields(ctx, map[string]any{
		"outbox_id":    event.ID.String(),
		"event_type":   event.EventType,
		"error_reason": reason,
		"error":        cause.Error(),
	})
	s.logg.Warn(lctx, "outbox event dead-lettered")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.store.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) eventFields(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
		"topic":          resolved.Descriptor.Topic,
	}
	if resolved.Envelope.EventID != "" {
		fields["event_id"] = resolved.Envelope.EventID
	}
	return fields
}

func (s *Service) backoffFor(streak int) time.Duration {
	d := s.pollInterval
	for i := 1; i < streak; i++ {
		d *= 2
		if d >= backoffCeiling {
			d = backoffCeiling
			break
		}
	}
	return s.withJitter(d)
}

func (s *Service) withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(s.jitter.Int63n(int64(jitterWindow)))
}

func (s *Service) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type sdkPublisher struct {
	pub *gcppubsub.Publisher
}

func (p sdkPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p.pub == nil {
		return nil
	}
	return p.pub.Publish(ctx, msg)
}

package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/hoangtran/auctionhub-backend/pkg/db/models"
	"github.com/hoangtran/auctionhub-backend/pkg/enums"
	"github.com/hoangtran/auctionhub-backend/pkg/logger"
	"github.com/hoangtran/auctionhub-backend/pkg/outbox"
	"github.com/hoangtran/auctionhub-backend/pkg/outbox/idempotency"
	"github.com/hoangtran/auctionhub-backend/pkg/outbox/payloads"
	"github.com/hoangtran/auctionhub-backend/pkg/outbox/registry"
)

const auctionNotificationConsumer = "auction-notifications"

// payloadVersion is the envelope schema version this consumer understands.
const payloadVersion = 1

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches domain events and fans them out into per-user notifications.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

func newNotificationDecoders() *registry.DecoderRegistry {
	reg := registry.NewDecoderRegistry()
	decodeInto := func(factory func() interface{}) func(json.RawMessage) (interface{}, error) {
		return func(raw json.RawMessage) (interface{}, error) {
			payload := factory()
			if err := json.Unmarshal(raw, payload); err != nil {
				return nil, err
			}
			return payload, nil
		}
	}
	reg.Register(enums.EventBidPlaced, payloadVersion, decodeInto(func() interface{} { return new(payloads.BidPlacedEvent) }))
	reg.Register(enums.EventBidAccepted, payloadVersion, decodeInto(func() interface{} { return new(payloads.BidPlacedEvent) }))
	reg.Register(enums.EventBidOutbid, payloadVersion, decodeInto(func() interface{} { return new(payloads.BidOutbidEvent) }))
	reg.Register(enums.EventAuctionStatusChanged, payloadVersion, decodeInto(func() interface{} { return new(payloads.AuctionStatusChangedEvent) }))
	reg.Register(enums.EventAuctionWon, payloadVersion, decodeInto(func() interface{} { return new(payloads.AuctionWonEvent) }))
	reg.Register(enums.EventPaymentCreated, payloadVersion, decodeInto(func() interface{} { return new(payloads.PaymentCreatedEvent) }))
	for _, eventType := range []enums.OutboxEventType{
		enums.EventPaymentCompleted,
		enums.EventPaymentExpired,
		enums.EventPaymentCancelled,
		enums.EventPaymentFailed,
	} {
		reg.Register(eventType, payloadVersion, decodeInto(func() interface{} { return new(payloads.PaymentStatusEvent) }))
	}
	return reg
}

// NewConsumer builds the auction notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		decoders:     newNotificationDecoders(),
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if !eventType.IsValid() {
		c.logg.Info(logCtx, "skipping unknown event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, auctionNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handle(ctx, eventType, envelope.Version, envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, auctionNotificationConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handle(ctx context.Context, eventType enums.OutboxEventType, version int, data json.RawMessage, logCtx context.Context) error {
	decoded, err := c.decoders.Decode(eventType, version, data)
	if errors.Is(err, registry.ErrDecoderNotRegistered) {
		c.logg.Info(logCtx, "event not handled")
		return nil
	}
	if err != nil {
		return err
	}
	switch payload := decoded.(type) {
	case *payloads.BidPlacedEvent:
		if eventType == enums.EventBidAccepted {
			return c.notifyBidAccepted(ctx, *payload, logCtx)
		}
		return c.notifyBidPlaced(ctx, *payload, logCtx)
	case *payloads.BidOutbidEvent:
		return c.notifyOutbid(ctx, *payload, logCtx)
	case *payloads.AuctionStatusChangedEvent:
		return c.notifyStatusChange(ctx, *payload, logCtx)
	case *payloads.AuctionWonEvent:
		return c.notifyAuctionWon(ctx, *payload, logCtx)
	case *payloads.PaymentCreatedEvent:
		return c.notifyPaymentCreated(ctx, *payload, logCtx)
	case *payloads.PaymentStatusEvent:
		return c.notifyPaymentResult(ctx, *payload, logCtx)
	default:
		c.logg.Info(logCtx, "event not handled")
		return nil
	}
}

func (c *Consumer) notifyBidPlaced(ctx context.Context, payload payloads.BidPlacedEvent, logCtx context.Context) error {
	if payload.SellerID == uuid.Nil {
		return fmt.Errorf("seller id missing")
	}
	err := c.repo.Create(ctx, &models.Notification{
		UserID:  payload.SellerID,
		Type:    enums.NotificationTypeBidPlaced,
		Title:   "New bid on your auction",
		Message: fmt.Sprintf("Your auction received a bid of %s.", payload.Amount.StringFixed(2)),
		Link:    stringPtr(auctionLink(payload.AuctionID)),
	})
	if err != nil {
		return err
	}
	c.logg.Info(logCtx, "seller notified of new bid")
	return nil
}

func (c *Consumer) notifyBidAccepted(ctx context.Context, payload payloads.BidPlacedEvent, logCtx context.Context) error {
	if payload.BidderID == uuid.Nil {
		return fmt.Errorf("bidder id missing")
	}
	err := c.repo.Create(ctx, &models.Notification{
		UserID:  payload.BidderID,
		Type:    enums.NotificationTypeBidAccepted,
		Title:   "Bid accepted",
		Message: fmt.Sprintf("Your bid of %s is now the leading bid.", payload.Amount.StringFixed(2)),
		Link:    stringPtr(auctionLink(payload.AuctionID)),
	})
	if err != nil {
		return err
	}
	c.logg.Info(logCtx, "bidder notified of accepted bid")
	return nil
}

func (c *Consumer) notifyOutbid(ctx context.Context, payload payloads.BidOutbidEvent, logCtx context.Context) error {
	if payload.OutbidBidderID == uuid.Nil {
		return fmt.Errorf("outbid bidder id missing")
	}
	err := c.repo.Create(ctx, &models.Notification{
		UserID:  payload.OutbidBidderID,
		Type:    enums.NotificationTypeOutbid,
		Title:   "You have been outbid",
		Message: fmt.Sprintf("Someone raised the bid to %s. Bid again to retake the lead.", payload.NewLeaderAmount.StringFixed(2)),
		Link:    stringPtr(auctionLink(payload.AuctionID)),
	})
	if err != nil {
		return err
	}
	c.logg.Info(logCtx, "previous leader notified of outbid")
	return nil
}

func (c *Consumer) notifyStatusChange(ctx context.Context, payload payloads.AuctionStatusChangedEvent, logCtx context.Context) error {
	if payload.SellerID == uuid.Nil {
		return fmt.Errorf("seller id missing")
	}
	message := fmt.Sprintf("Your auction is now %s.", payload.ToStatus)
	if payload.Reason != "" {
		message = fmt.Sprintf("Your auction is now %s: %s.", payload.ToStatus, payload.Reason)
	}
	err := c.repo.Create(ctx, &models.Notification{
		UserID:  payload.SellerID,
		Type:    enums.NotificationTypeAuctionStatus,
		Title:   "Auction status updated",
		Message: message,
		Link:    stringPtr(auctionLink(payload.AuctionID)),
	})
	if err != nil {
		return err
	}
	c.logg.Info(logCtx, "seller notified of status change")
	return nil
}

func (c *Consumer) notifyAuctionWon(ctx context.Context, payload payloads.AuctionWonEvent, logCtx context.Context) error {
	if payload.WinnerID == uuid.Nil || payload.SellerID == uuid.Nil {
		return fmt.Errorf("winner or seller id missing")
	}
	if err := c.repo.Create(ctx, &models.Notification{
		UserID:  payload.WinnerID,
		Type:    enums.NotificationTypeAuctionWon,
		Title:   "You won the auction",
		Message: fmt.Sprintf("You won with a bid of %s. Complete the payment to claim your item.", payload.FinalPrice.StringFixed(2)),
		Link:    stringPtr(auctionLink(payload.AuctionID)),
	}); err != nil {
		return err
	}
	if err := c.repo.Create(ctx, &models.Notification{
		UserID:  payload.SellerID,
		Type:    enums.NotificationTypeAuctionWon,
		Title:   "Your auction sold",
		Message: fmt.Sprintf("Your auction closed at %s.", payload.FinalPrice.StringFixed(2)),
		Link:    stringPtr(auctionLink(payload.AuctionID)),
	}); err != nil {
		return err
	}
	c.logg.Info(logCtx, "winner and seller notified")
	return nil
}

func (c *Consumer) notifyPaymentCreated(ctx context.Context, payload payloads.PaymentCreatedEvent, logCtx context.Context) error {
	if payload.BuyerID == uuid.Nil {
		return fmt.Errorf("buyer id missing")
	}
	err := c.repo.Create(ctx, &models.Notification{
		UserID:  payload.BuyerID,
		Type:    enums.NotificationTypePaymentPending,
		Title:   "Payment due",
		Message: fmt.Sprintf("Order %s for %s is due by %s.", payload.OrderCode, payload.Amount.StringFixed(2), payload.ExpiresAt.Format("Jan 2 15:04 MST")),
		Link:    stringPtr(paymentLink(payload.PaymentOrderID)),
	})
	if err != nil {
		return err
	}
	c.logg.Info(logCtx, "buyer notified of payment order")
	return nil
}

func (c *Consumer) notifyPaymentResult(ctx context.Context, payload payloads.PaymentStatusEvent, logCtx context.Context) error {
	if payload.BuyerID == uuid.Nil || payload.SellerID == uuid.Nil {
		return fmt.Errorf("buyer or seller id missing")
	}
	buyerMessage := fmt.Sprintf("Order %s is now %s.", payload.OrderCode, payload.Status)
	if err := c.repo.Create(ctx, &models.Notification{
		UserID:  payload.BuyerID,
		Type:    enums.NotificationTypePaymentResult,
		Title:   "Payment update",
		Message: buyerMessage,
		Link:    stringPtr(paymentLink(payload.PaymentOrderID)),
	}); err != nil {
		return err
	}
	var sellerTitle, sellerMessage string
	switch payload.Status {
	case enums.PaymentStatusCompleted:
		sellerTitle = "Payment received"
		sellerMessage = fmt.Sprintf("The buyer paid order %s.", payload.OrderCode)
	case enums.PaymentStatusExpired, enums.PaymentStatusCancelled:
		sellerTitle = "Sale fell through"
		sellerMessage = fmt.Sprintf("Order %s is %s; the sale did not complete.", payload.OrderCode, payload.Status)
	}
	if sellerTitle != "" {
		if err := c.repo.Create(ctx, &models.Notification{
			UserID:  payload.SellerID,
			Type:    enums.NotificationTypePaymentResult,
			Title:   sellerTitle,
			Message: sellerMessage,
			Link:    stringPtr(paymentLink(payload.PaymentOrderID)),
		}); err != nil {
			return err
		}
	}
	c.logg.Info(logCtx, "payment parties notified")
	return nil
}

func auctionLink(auctionID uuid.UUID) string {
	return fmt.Sprintf("/auctions/%s", auctionID)
}

func paymentLink(orderID uuid.UUID) string {
	return fmt.Sprintf("/payments/%s", orderID)
}

func stringPtr(value string) *string {
	return &value
}

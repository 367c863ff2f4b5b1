package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/sgtm-webhook/pkg/enums"
	"github.com/angelmondragon/sgtm-webhook/pkg/logger"
)

const eventTypeAttribute = "event_type"

// Envelope is the message body published by the order store.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// OrderEventData is the envelope payload for order triggers.
type OrderEventData struct {
	OrderID json.Number `json:"order_id"`
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// Consumer feeds the orders subscription into the Handler.
type Consumer struct {
	subscription receiver
	handler      *Handler
	logg         *logger.Logger
}

func NewConsumer(subscription receiver, handler *Handler, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, errors.New("orders subscription required")
	}
	if handler == nil {
		return nil, errors.New("event handler required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Consumer{subscription: subscription, handler: handler, logg: logg}, nil
}

// Run processes messages until the context is canceled or the subscription errors.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Attributes, msg.Data).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	nack bool
}

func (c *Consumer) process(ctx context.Context, messageID string, attrs map[string]string, data []byte) processResult {
	logCtx := c.logg.WithField(ctx, "message_id", messageID)

	evt, err := decodeOrderEvent(attrs, data)
	if err != nil {
		// Malformed messages never succeed on redelivery.
		c.logg.Error(logCtx, "dropping malformed order event", err)
		return processResult{}
	}

	res, err := c.handler.Handle(logCtx, evt)
	if errors.Is(err, ErrRetry) {
		c.logg.Warn(logCtx, "order event will be redelivered: "+err.Error())
		return processResult{nack: true}
	}
	if err != nil {
		c.logg.Error(logCtx, "order event rejected", err)
		return processResult{}
	}
	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
		"decision":    string(res.Decision),
		"skip_reason": string(res.SkipReason),
	}), "order event handled")
	return processResult{}
}

func decodeOrderEvent(attrs map[string]string, data []byte) (OrderEvent, error) {
	trigger, err := enums.ParseInboundTrigger(strings.TrimSpace(attrs[eventTypeAttribute]))
	if err != nil {
		return OrderEvent{}, err
	}

	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return OrderEvent{}, fmt.Errorf("decode envelope: %w", err)
	}
	if len(envelope.Data) == 0 {
		return OrderEvent{}, errors.New("envelope data missing")
	}

	dec := json.NewDecoder(strings.NewReader(string(envelope.Data)))
	dec.UseNumber()
	var payload OrderEventData
	if err := dec.Decode(&payload); err != nil {
		return OrderEvent{}, fmt.Errorf("decode order data: %w", err)
	}
	orderID, err := strconv.ParseInt(payload.OrderID.String(), 10, 64)
	if err != nil || orderID <= 0 {
		return OrderEvent{}, fmt.Errorf("invalid order_id %q", payload.OrderID)
	}

	return OrderEvent{EventID: envelope.EventID, Type: trigger, OrderID: orderID}, nil
}

// Package fulfillment hands placed orders to the downstream fulfillment service.
package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"

	"petapt/internal/domain"
)

const EventOrderPlaced = "order.placed"

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("fulfillment: downstream unavailable")

type Publisher interface {
	PublishOrderPlaced(ctx context.Context, order domain.Order) error
}

// OrderPlaced is the event payload.
type OrderPlaced struct {
	OrderID       string             `json:"orderId"`
	Number        string             `json:"number"`
	Owner         string             `json:"owner"`
	PaymentMethod string             `json:"paymentMethod"`
	ShippingID    string             `json:"shippingAddressId"`
	BillingID     string             `json:"billingAddressId"`
	TotalCents    int64              `json:"totalCents"`
	Currency      string             `json:"currency"`
	Lines         []domain.OrderLine `json:"lines"`
	PlacedAt      time.Time          `json:"placedAt"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes order.placed events keyed by order id, behind a circuit breaker.
type KafkaPublisher struct {
	writer  messageWriter
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  *log.Logger
}

func NewKafka(brokers []string, topic string, logger *log.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return newKafka(w, logger)
}

func newKafka(w messageWriter, logger *log.Logger) *KafkaPublisher {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	p := &KafkaPublisher{writer: w, logger: logger}
	p.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "fulfillment",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Printf("fulfillment: breaker name=%s from=%s to=%s", name, from, to)
		},
	})
	return p
}

func (p *KafkaPublisher) PublishOrderPlaced(ctx context.Context, order domain.Order) error {
	payload, err := json.Marshal(OrderPlaced{
		OrderID:       order.ID,
		Number:        order.Number,
		Owner:         order.Owner,
		PaymentMethod: order.PaymentMethod,
		ShippingID:    order.ShippingAddressID,
		BillingID:     order.BillingAddressID,
		TotalCents:    order.TotalCents,
		Currency:      order.Currency,
		Lines:         order.Lines,
		PlacedAt:      order.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("fulfillment: encode order %s: %w", order.ID, err)
	}
	msg := kafka.Message{
		Key:   []byte(order.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventOrderPlaced)},
		},
	}
	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.writer.WriteMessages(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrUnavailable
	}
	if err != nil {
		p.logger.Printf("fulfillment: publish order_id=%s error=%v", order.ID, err)
		return err
	}
	p.logger.Printf("fulfillment: published order_id=%s number=%s", order.ID, order.Number)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop drops events. Used when no brokers are configured.
type Nop struct {
	Logger *log.Logger
}

func (n Nop) PublishOrderPlaced(_ context.Context, order domain.Order) error {
	if n.Logger != nil {
		n.Logger.Printf("fulfillment: no broker configured, order_id=%s not published", order.ID)
	}
	return nil
}

package booking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/SmartLinkDrive/CarRental/internal/common/middleware"
	"github.com/segmentio/kafka-go"
)

const (
	EventCreated   = "booking.created"
	EventCancelled = "booking.cancelled"
)

// bookingEvent Kafka 消息体。
type bookingEvent struct {
	Event      string  `json:"event"`
	BookingID  string  `json:"booking_id"`
	UserID     string  `json:"user_id"`
	CarID      string  `json:"car_id"`
	StartDate  Date    `json:"start_date"`
	EndDate    Date    `json:"end_date"`
	TotalPrice float64 `json:"total_price"`
	OccurredAt string  `json:"occurred_at"`
}

// KafkaPublisher 预订事件发布器。
// 写入经熔断器保护：broker 故障时快速失败，不拖慢预订主流程
// （调用方本就只把事件当 best-effort 旁路）。
type KafkaPublisher struct {
	writer  *kafka.Writer
	breaker *middleware.CircuitBreaker
}

// NewKafkaPublisher 创建发布器。以 car_id 作为消息 key，
// 同一辆车的事件保持分区内有序。
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  3,
			BatchTimeout: 50 * time.Millisecond,
			Logger:       kafka.LoggerFunc(func(string, ...any) {}),
		},
		breaker: middleware.NewCircuitBreaker("booking-events", 5, 30*time.Second),
	}
}

func (p *KafkaPublisher) PublishCreated(ctx context.Context, b *Booking) error {
	return p.publish(ctx, EventCreated, b)
}

func (p *KafkaPublisher) PublishCancelled(ctx context.Context, b *Booking) error {
	return p.publish(ctx, EventCancelled, b)
}

func (p *KafkaPublisher) publish(ctx context.Context, event string, b *Booking) error {
	payload, err := json.Marshal(bookingEvent{
		Event:      event,
		BookingID:  b.ID,
		UserID:     b.UserID,
		CarID:      b.CarID,
		StartDate:  b.StartDate,
		EndDate:    b.EndDate,
		TotalPrice: b.TotalPrice,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	return p.breaker.Call(ctx, func() error {
		return p.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(b.CarID),
			Value: payload,
		})
	})
}

// Close 关闭底层 writer。
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

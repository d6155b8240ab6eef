package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

// Publisher はイベント1件を送る。
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// KafkaPublisher は注文番号をキーにして同じ注文のイベントを同じパーティションに載せる。
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.OrderNumber), Value: data, Time: time.Now().UTC()})
	if err != nil {
		return &TransientInfraError{Op: "kafka write", Err: err}
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// RedisPublisher はpub/subのチャンネルに流す。
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return &TransientInfraError{Op: "redis publish", Err: err}
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// LogPublisher はログに出すだけ（開発用）
type LogPublisher struct {
	logger *log.Logger
}

func NewLogPublisher(logger *log.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, ev Event) error {
	p.logger.Infoj(log.JSON{
		"event":           "notification",
		"type":            ev.Type,
		"event_id":        ev.EventID,
		"order_id":        ev.OrderID,
		"order_number":    ev.OrderNumber,
		"user_id":         ev.UserID,
		"status":          ev.Status,
		"tracking_number": ev.TrackingNumber,
	})
	return nil
}

func (p *LogPublisher) Close() error { return nil }

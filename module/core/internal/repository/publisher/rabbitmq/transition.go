package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nandanugg/geofence/module/core/domain"
	"github.com/nandanugg/geofence/module/core/internal/repository/publisher"
)

var _ publisher.TransitionPublisher = (*TransitionPublisher)(nil)

const (
	ExchangeName = "geofence.events"
	QueueName    = "geofence_transitions"
)

type TransitionPublisher struct {
	mu sync.Mutex
	ch *amqp.Channel
}

func NewTransitionPublisher(conn *amqp.Connection) (*TransitionPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeName, "fanout", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(QueueName, "", ExchangeName, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	return &TransitionPublisher{ch: ch}, nil
}

type transitionMessage struct {
	EventID    string                `json:"event_id"`
	DeviceID   string                `json:"device_id"`
	GeofenceID string                `json:"geofence_id"`
	Event      domain.TransitionType `json:"event"`
	Location   messageLocation       `json:"location"`
	Timestamp  int64                 `json:"timestamp"`
	Distance   *float64              `json:"distance,omitempty"`
}

type messageLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func encodeTransition(ev *domain.TransitionEvent) ([]byte, error) {
	msg := transitionMessage{
		EventID:    ev.ID.String(),
		DeviceID:   ev.DeviceID,
		GeofenceID: ev.GeofenceID,
		Event:      ev.Type,
		Location: messageLocation{
			Latitude:  ev.Lat,
			Longitude: ev.Lon,
		},
		Timestamp: ev.Timestamp.Unix(),
		Distance:  ev.Distance,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal transition: %w", err)
	}
	return body, nil
}

func (p *TransitionPublisher) PublishTransition(ctx context.Context, ev *domain.TransitionEvent) error {
	body, err := encodeTransition(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, ExchangeName, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID.String(),
		Timestamp:    ev.Timestamp,
		Type:         string(ev.Type),
		Body:         body,
	})
}

func (p *TransitionPublisher) Close() error {
	return p.ch.Close()
}

package subscriber

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/nandanugg/geofence/module/core/domain"
)

// TopicPattern matches /devices/<device_id>/location.
const TopicPattern = "/devices/+/location"

type trackingService interface {
	ProcessReport(ctx context.Context, report *domain.LocationReport) ([]domain.TransitionEvent, error)
}

type locationMessage struct {
	DeviceID  string   `json:"device_id"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Timestamp int64    `json:"timestamp"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
}

type LocationSubscriber struct {
	client      mqtt.Client
	trackingSvc trackingService
}

func NewLocationSubscriber(client mqtt.Client, trackingSvc trackingService) *LocationSubscriber {
	return &LocationSubscriber{
		client:      client,
		trackingSvc: trackingSvc,
	}
}

func (s *LocationSubscriber) Start() error {
	token := s.client.Subscribe(TopicPattern, 1, s.handleMessage)
	token.Wait()
	return token.Error()
}

func (s *LocationSubscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var raw locationMessage
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		log.Warn().Err(err).Str("topic", msg.Topic()).Msg("invalid location message")
		return
	}

	if err := validateLocationMessage(&raw); err != nil {
		log.Warn().Err(err).Str("topic", msg.Topic()).Msg("location message rejected")
		return
	}

	report := &domain.LocationReport{
		DeviceID:  raw.DeviceID,
		Lat:       raw.Latitude,
		Lon:       raw.Longitude,
		Timestamp: time.Unix(raw.Timestamp, 0),
		Accuracy:  raw.Accuracy,
	}

	if _, err := s.trackingSvc.ProcessReport(context.Background(), report); err != nil {
		log.Error().Err(err).Str("device_id", raw.DeviceID).Msg("process location report")
	}
}

func validateLocationMessage(msg *locationMessage) error {
	if msg.DeviceID == "" {
		return fmt.Errorf("device_id: required")
	}
	if err := domain.ValidateCoordinates(msg.Latitude, msg.Longitude); err != nil {
		return err
	}
	if msg.Timestamp <= 0 {
		return fmt.Errorf("timestamp: must be positive")
	}
	return nil
}

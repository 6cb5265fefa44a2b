package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nandanugg/geofence/module/core/domain"
	"github.com/nandanugg/geofence/module/core/engine"
	"github.com/nandanugg/geofence/module/core/internal/repository/database"
	"github.com/nandanugg/geofence/module/core/internal/repository/publisher"
)

// TrackingService runs reports through the engine and hands the resulting
// transitions to the archive and the event bus.
type TrackingService struct {
	engine    *engine.Engine
	repo      database.TransitionRepository
	publisher publisher.TransitionPublisher
}

func NewTrackingService(eng *engine.Engine, repo database.TransitionRepository, pub publisher.TransitionPublisher) *TrackingService {
	return &TrackingService{
		engine:    eng,
		repo:      repo,
		publisher: pub,
	}
}

// ProcessReport returns the transitions triggered by report, usually none.
// Rejected reports are not errors; the reason is only logged. Archive and
// publish failures are logged as well since the engine has already moved on.
func (s *TrackingService) ProcessReport(ctx context.Context, report *domain.LocationReport) ([]domain.TransitionEvent, error) {
	res, err := s.engine.Process(report)
	if err != nil {
		log.Error().Err(err).
			Str("device_id", report.DeviceID).
			Str("geofence_id", res.GeofenceID).
			Msg("geofence evaluation failed")
		return nil, fmt.Errorf("process report: %w", err)
	}

	logOutcome(report, &res)

	for i := range res.Events {
		ev := &res.Events[i]
		if err := s.repo.Insert(ctx, ev); err != nil {
			log.Error().Err(err).Str("event_id", ev.ID.String()).Msg("archive transition")
		}
		if err := s.publisher.PublishTransition(ctx, ev); err != nil {
			log.Error().Err(err).Str("event_id", ev.ID.String()).Msg("publish transition")
		}
	}

	if res.Events == nil {
		return []domain.TransitionEvent{}, nil
	}
	return res.Events, nil
}

func logOutcome(report *domain.LocationReport, res *engine.Result) {
	var evt *zerolog.Event
	switch res.Outcome {
	case engine.OutcomeNoAssignment, engine.OutcomeGeofenceNotFound:
		evt = log.Warn()
	case engine.OutcomeTransition:
		evt = log.Info()
	default:
		evt = log.Debug()
	}

	evt = evt.Str("device_id", report.DeviceID).
		Str("geofence_id", res.GeofenceID).
		Str("outcome", string(res.Outcome))
	for _, ev := range res.Events {
		evt = evt.Str("event", string(ev.Type))
	}
	evt.Msg("report processed")
}

func (s *TrackingService) GetDeviceState(_ context.Context, deviceID string) (*domain.DeviceState, error) {
	st, ok := s.engine.DeviceState(deviceID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &st, nil
}

func (s *TrackingService) GetEvents(_ context.Context, deviceID string, limit int) ([]domain.TransitionEvent, error) {
	return s.engine.Events(deviceID, limit), nil
}

func (s *TrackingService) GetHistory(ctx context.Context, query *domain.HistoryQuery) ([]domain.TransitionEvent, error) {
	return s.repo.GetHistory(ctx, query)
}

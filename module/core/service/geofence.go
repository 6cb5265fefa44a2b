package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/nandanugg/geofence/module/core/domain"
	"github.com/nandanugg/geofence/module/core/engine"
	"github.com/nandanugg/geofence/module/core/internal/repository/database"
)

// GeofenceService keeps the durable geofence table and the engine in step.
// Writes hit the repository first so the engine never holds a definition
// that would be lost on restart.
type GeofenceService struct {
	repo   database.GeofenceRepository
	engine *engine.Engine
}

func NewGeofenceService(repo database.GeofenceRepository, eng *engine.Engine) *GeofenceService {
	return &GeofenceService{
		repo:   repo,
		engine: eng,
	}
}

// Load copies every persisted geofence into the engine. Definitions that no
// longer validate are skipped.
func (s *GeofenceService) Load(ctx context.Context) error {
	fences, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list geofences: %w", err)
	}

	loaded := 0
	for _, gf := range fences {
		if err := s.engine.UpsertGeofence(gf); err != nil {
			log.Warn().Err(err).Str("geofence_id", gf.ID).Msg("skipping stored geofence")
			continue
		}
		loaded++
	}
	log.Info().Int("count", loaded).Msg("geofences loaded")
	return nil
}

func (s *GeofenceService) Upsert(ctx context.Context, gf *domain.Geofence) error {
	if err := gf.Validate(); err != nil {
		return err
	}
	if err := s.repo.Upsert(ctx, gf); err != nil {
		return fmt.Errorf("store geofence: %w", err)
	}
	if err := s.engine.UpsertGeofence(*gf); err != nil {
		return err
	}

	log.Info().Str("geofence_id", gf.ID).Str("name", gf.Name).Str("type", string(gf.Type)).Msg("geofence upserted")
	return nil
}

func (s *GeofenceService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete geofence: %w", err)
	}

	cascaded, existed := s.engine.DeleteGeofence(id)
	if !existed {
		log.Debug().Str("geofence_id", id).Msg("delete of unknown geofence")
		return nil
	}
	log.Info().Str("geofence_id", id).Int("device_states", cascaded).Msg("geofence deleted")
	return nil
}

func (s *GeofenceService) Get(_ context.Context, id string) (*domain.Geofence, error) {
	gf, ok := s.engine.Geofence(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &gf, nil
}

func (s *GeofenceService) List(_ context.Context) ([]domain.Geofence, error) {
	return s.engine.Geofences(), nil
}

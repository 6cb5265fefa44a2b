package database

import (
	"context"

	"github.com/nandanugg/geofence/module/core/domain"
)

type GeofenceRepository interface {
	Upsert(ctx context.Context, gf *domain.Geofence) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.Geofence, error)
}

type TransitionRepository interface {
	Insert(ctx context.Context, ev *domain.TransitionEvent) error
	GetHistory(ctx context.Context, query *domain.HistoryQuery) ([]domain.TransitionEvent, error)
}

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/nandanugg/geofence/module/core/containment"
	"github.com/nandanugg/geofence/module/core/domain"
	"github.com/nandanugg/geofence/module/core/engine"
	"github.com/nandanugg/geofence/module/core/internal/assignment"
)

type mockGeofenceRepo struct {
	upsertFn func(ctx context.Context, gf *domain.Geofence) error
	deleteFn func(ctx context.Context, id string) error
	listFn   func(ctx context.Context) ([]domain.Geofence, error)
	upserted []*domain.Geofence
}

func (m *mockGeofenceRepo) Upsert(ctx context.Context, gf *domain.Geofence) error {
	m.upserted = append(m.upserted, gf)
	if m.upsertFn != nil {
		return m.upsertFn(ctx, gf)
	}
	return nil
}

func (m *mockGeofenceRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockGeofenceRepo) List(ctx context.Context) ([]domain.Geofence, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func newEngine() *engine.Engine {
	return engine.New(containment.NewPolicy(10), assignment.Suffix{})
}

func depotFence() *domain.Geofence {
	return &domain.Geofence{
		ID:       "depot",
		Name:     "Main depot",
		Type:     domain.GeofenceCircular,
		Circular: &domain.Circle{Center: domain.Point{Lat: -6.2088, Lon: 106.8456}, Radius: 50},
	}
}

func TestGeofenceUpsert_Success(t *testing.T) {
	repo := &mockGeofenceRepo{}
	eng := newEngine()
	svc := NewGeofenceService(repo, eng)

	if err := svc.Upsert(context.Background(), depotFence()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.upserted) != 1 {
		t.Fatalf("expected 1 repo upsert, got %d", len(repo.upserted))
	}
	if _, ok := eng.Geofence("depot"); !ok {
		t.Error("expected engine to hold the geofence")
	}
}

func TestGeofenceUpsert_InvalidNeverStored(t *testing.T) {
	repo := &mockGeofenceRepo{}
	eng := newEngine()
	svc := NewGeofenceService(repo, eng)

	gf := depotFence()
	gf.Polygon = &domain.Polygon{Vertices: []domain.Point{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}, {Lat: 2, Lon: 0}}}

	err := svc.Upsert(context.Background(), gf)
	if !errors.Is(err, domain.ErrInvalidGeofence) {
		t.Fatalf("expected ErrInvalidGeofence, got %v", err)
	}
	if len(repo.upserted) != 0 {
		t.Error("invalid geofence must not reach the repository")
	}
	if _, ok := eng.Geofence("depot"); ok {
		t.Error("invalid geofence must not reach the engine")
	}
}

func TestGeofenceUpsert_RepoError(t *testing.T) {
	repo := &mockGeofenceRepo{
		upsertFn: func(_ context.Context, _ *domain.Geofence) error {
			return errors.New("db error")
		},
	}
	eng := newEngine()
	svc := NewGeofenceService(repo, eng)

	if err := svc.Upsert(context.Background(), depotFence()); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := eng.Geofence("depot"); ok {
		t.Error("engine must not change when the repository fails")
	}
}

func TestGeofenceDelete_CascadesDeviceState(t *testing.T) {
	var deleted string
	repo := &mockGeofenceRepo{
		deleteFn: func(_ context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	eng := newEngine()
	svc := NewGeofenceService(repo, eng)

	if err := svc.Upsert(context.Background(), depotFence()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tracking := NewTrackingService(eng, &mockTransitionRepo{}, &mockTransitionPublisher{})
	if _, err := tracking.ProcessReport(context.Background(), reportAt("depot_truck1", -6.2088, 106.8456, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Delete(context.Background(), "depot"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != "depot" {
		t.Errorf("expected repo delete of depot, got %q", deleted)
	}
	if _, err := tracking.GetDeviceState(context.Background(), "depot_truck1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after cascade, got %v", err)
	}
	if _, err := svc.Get(context.Background(), "depot"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGeofenceDelete_RepoError(t *testing.T) {
	repo := &mockGeofenceRepo{
		deleteFn: func(_ context.Context, _ string) error {
			return errors.New("db error")
		},
	}
	eng := newEngine()
	svc := NewGeofenceService(repo, eng)
	if err := svc.Upsert(context.Background(), depotFence()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Delete(context.Background(), "depot"); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := eng.Geofence("depot"); !ok {
		t.Error("engine must keep the geofence when the repository fails")
	}
}

func TestGeofenceLoad(t *testing.T) {
	repo := &mockGeofenceRepo{
		listFn: func(_ context.Context) ([]domain.Geofence, error) {
			return []domain.Geofence{
				*depotFence(),
				{ID: "broken", Type: domain.GeofencePolygon, Polygon: &domain.Polygon{}},
			}, nil
		},
	}
	eng := newEngine()
	svc := NewGeofenceService(repo, eng)

	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fences, _ := svc.List(context.Background())
	if len(fences) != 1 || fences[0].ID != "depot" {
		t.Errorf("expected only depot to load, got %+v", fences)
	}
}

func TestGeofenceLoad_RepoError(t *testing.T) {
	repo := &mockGeofenceRepo{
		listFn: func(_ context.Context) ([]domain.Geofence, error) {
			return nil, errors.New("db error")
		},
	}
	svc := NewGeofenceService(repo, newEngine())

	if err := svc.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

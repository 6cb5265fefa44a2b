package core

import (
	"context"
	"database/sql"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/nandanugg/geofence/module/core/containment"
	"github.com/nandanugg/geofence/module/core/domain"
	"github.com/nandanugg/geofence/module/core/engine"
	"github.com/nandanugg/geofence/module/core/internal/assignment"
	handler "github.com/nandanugg/geofence/module/core/internal/handler/http"
	"github.com/nandanugg/geofence/module/core/internal/handler/subscriber"
	"github.com/nandanugg/geofence/module/core/internal/repository/database/postgres"
	"github.com/nandanugg/geofence/module/core/internal/repository/publisher/rabbitmq"
	"github.com/nandanugg/geofence/module/core/service"
)

type Options struct {
	// Hysteresis is the buffer in meters added to circular radii.
	Hysteresis float64
	// Assignments pin devices to geofences ahead of the id suffix rule.
	Assignments map[string]string
}

type Module struct {
	Engine      *engine.Engine
	GeofenceSvc *service.GeofenceService
	TrackingSvc *service.TrackingService

	db              *sql.DB
	publisher       *rabbitmq.TransitionPublisher
	geofenceHandler *handler.GeofenceHandler
	trackingHandler *handler.TrackingHandler
	subscriber      *subscriber.LocationSubscriber
}

func Build(db *sql.DB, amqpConn *amqp.Connection, mqttClient mqtt.Client, opts Options) (*Module, error) {
	geofenceRepo := postgres.NewGeofenceRepo(db)
	transitionRepo := postgres.NewTransitionRepo(db)

	transitionPub, err := rabbitmq.NewTransitionPublisher(amqpConn)
	if err != nil {
		return nil, fmt.Errorf("transition publisher: %w", err)
	}

	resolver := assignment.Chain{assignment.Static(opts.Assignments), assignment.Suffix{}}
	eng := engine.New(containment.NewPolicy(opts.Hysteresis), resolver)

	geofenceSvc := service.NewGeofenceService(geofenceRepo, eng)
	trackingSvc := service.NewTrackingService(eng, transitionRepo, transitionPub)

	return &Module{
		Engine:          eng,
		GeofenceSvc:     geofenceSvc,
		TrackingSvc:     trackingSvc,
		db:              db,
		publisher:       transitionPub,
		geofenceHandler: handler.NewGeofenceHandler(geofenceSvc),
		trackingHandler: handler.NewTrackingHandler(trackingSvc),
		subscriber:      subscriber.NewLocationSubscriber(mqttClient, trackingSvc),
	}, nil
}

// Load migrates the schema, restores persisted geofences, then upserts seed
// definitions on top. An invalid seed definition is logged and skipped.
func (m *Module) Load(ctx context.Context, seed []domain.Geofence) error {
	if err := postgres.Migrate(ctx, m.db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := m.GeofenceSvc.Load(ctx); err != nil {
		return err
	}
	for i := range seed {
		if err := m.GeofenceSvc.Upsert(ctx, &seed[i]); err != nil {
			log.Warn().Err(err).Str("geofence_id", seed[i].ID).Msg("skipping seed geofence")
		}
	}
	return nil
}

func (m *Module) RegisterRoutes(r *gin.RouterGroup) {
	m.geofenceHandler.Register(r)
	m.trackingHandler.Register(r)
}

func (m *Module) StartSubscribers() error {
	return m.subscriber.Start()
}

func (m *Module) Close() error {
	return m.publisher.Close()
}

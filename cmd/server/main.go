package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"

	"github.com/nandanugg/geofence/config"
	"github.com/nandanugg/geofence/module/core"
	"github.com/nandanugg/geofence/module/core/domain"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	cfg.Logger.Setup()

	var seed []domain.Geofence
	assignments := map[string]string{}
	if cfg.GeofenceFile != "" {
		file, err := config.LoadSeedFile(cfg.GeofenceFile)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.GeofenceFile).Msg("Failed to load geofence file")
		}
		seed = file.Geofences
		if file.Assignments != nil {
			assignments = file.Assignments
		}
	}

	db, err := config.NewPostgres(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres")
	}
	defer func() { _ = db.Close() }()

	amqpConn, err := config.NewRabbitMQ(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbitmq")
	}
	defer func() { _ = amqpConn.Close() }()

	mqttClient, err := config.NewMQTT(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("mqtt")
	}
	defer mqttClient.Disconnect(250)

	coreModule, err := core.Build(db, amqpConn, mqttClient, core.Options{
		Hysteresis:  cfg.Hysteresis,
		Assignments: assignments,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("core module")
	}
	defer func() { _ = coreModule.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := coreModule.Load(ctx, seed); err != nil {
		log.Fatal().Err(err).Msg("load geofences")
	}

	if err := coreModule.StartSubscribers(); err != nil {
		log.Fatal().Err(err).Msg("start subscribers")
	}

	r := gin.New()
	r.Use(gin.Recovery(), config.RequestLogger())

	health := config.NewHealthChecker(db, amqpConn, mqttClient)
	health.Register(r)

	coreModule.RegisterRoutes(&r.RouterGroup)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Float64("hysteresis", cfg.Hysteresis).
			Int("assignments", len(assignments)).
			Msg("Web server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
}

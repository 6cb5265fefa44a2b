package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

type locationMessage struct {
	DeviceID  string  `json:"device_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"timestamp"`
}

const (
	depotLat = -6.2088
	depotLon = 106.8456
)

// device random-walks around the depot so it keeps crossing a 50m fence.
type device struct {
	id       string
	lat, lon float64
}

func (d *device) step() {
	d.lat += (rand.Float64() - 0.5) * 0.0004
	d.lon += (rand.Float64() - 0.5) * 0.0004

	// pull back toward the depot once it drifts past ~300m
	if abs(d.lat-depotLat) > 0.003 || abs(d.lon-depotLon) > 0.003 {
		d.lat = depotLat + (d.lat-depotLat)/2
		d.lon = depotLon + (d.lon-depotLon)/2
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <interval_seconds>\n", os.Args[0])
		os.Exit(1)
	}

	intervalSec, err := strconv.Atoi(os.Args[1])
	if err != nil || intervalSec <= 0 {
		fmt.Fprintf(os.Stderr, "error: interval must be a positive integer\n")
		os.Exit(1)
	}

	broker := "tcp://localhost:1883"
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		broker = v
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("geofence-mock-publisher")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("mqtt connect")
	}
	defer client.Disconnect(250)

	devices := make([]*device, 5)
	for i := range devices {
		devices[i] = &device{
			id:  fmt.Sprintf("depot_truck%d", i+1),
			lat: depotLat + (rand.Float64()-0.5)*0.002,
			lon: depotLon + (rand.Float64()-0.5)*0.002,
		}
	}

	log.Info().Str("broker", broker).Int("interval_s", intervalSec).Int("devices", len(devices)).Msg("publishing")

	ticker := time.NewTicker(time.Duration(intervalSec) * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		d := devices[rand.Intn(len(devices))]
		d.step()

		msg := locationMessage{
			DeviceID:  d.id,
			Latitude:  d.lat,
			Longitude: d.lon,
			Timestamp: time.Now().Unix(),
		}

		payload, _ := json.Marshal(msg)
		topic := fmt.Sprintf("/devices/%s/location", d.id)

		token := client.Publish(topic, 1, false, payload)
		token.Wait()
		if err := token.Error(); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("publish")
			continue
		}

		log.Debug().Str("topic", topic).RawJSON("payload", payload).Msg("published")
	}
}

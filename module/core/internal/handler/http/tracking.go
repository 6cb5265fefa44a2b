package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nandanugg/geofence/module/core/domain"
)

const defaultEventLimit = 100

type trackingService interface {
	ProcessReport(ctx context.Context, report *domain.LocationReport) ([]domain.TransitionEvent, error)
	GetDeviceState(ctx context.Context, deviceID string) (*domain.DeviceState, error)
	GetEvents(ctx context.Context, deviceID string, limit int) ([]domain.TransitionEvent, error)
	GetHistory(ctx context.Context, query *domain.HistoryQuery) ([]domain.TransitionEvent, error)
}

type reportRequest struct {
	DeviceID  string   `json:"device_id"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Timestamp int64    `json:"timestamp"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
}

type eventResponse struct {
	EventID    string   `json:"event_id"`
	DeviceID   string   `json:"device_id"`
	GeofenceID string   `json:"geofence_id"`
	Event      string   `json:"event"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Timestamp  int64    `json:"timestamp"`
	Distance   *float64 `json:"distance,omitempty"`
}

type stateResponse struct {
	DeviceID   string  `json:"device_id"`
	GeofenceID string  `json:"geofence_id"`
	IsInside   bool    `json:"is_inside"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	LastUpdate int64   `json:"last_update"`
}

func toEventResponses(events []domain.TransitionEvent) []eventResponse {
	resp := make([]eventResponse, len(events))
	for i, ev := range events {
		resp[i] = eventResponse{
			EventID:    ev.ID.String(),
			DeviceID:   ev.DeviceID,
			GeofenceID: ev.GeofenceID,
			Event:      string(ev.Type),
			Latitude:   ev.Lat,
			Longitude:  ev.Lon,
			Timestamp:  ev.Timestamp.Unix(),
			Distance:   ev.Distance,
		}
	}
	return resp
}

type TrackingHandler struct {
	trackingSvc trackingService
}

func NewTrackingHandler(trackingSvc trackingService) *TrackingHandler {
	return &TrackingHandler{trackingSvc: trackingSvc}
}

func (h *TrackingHandler) Register(r *gin.RouterGroup) {
	r.POST("/reports", h.IngestReport)
	r.GET("/devices/:device_id/state", h.GetDeviceState)
	r.GET("/events", h.GetEvents)
	r.GET("/events/history", h.GetHistory)
}

func (h *TrackingHandler) IngestReport(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report body"})
		return
	}
	if err := validateReportRequest(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, err := h.trackingSvc.ProcessReport(c.Request.Context(), &domain.LocationReport{
		DeviceID:  req.DeviceID,
		Lat:       req.Latitude,
		Lon:       req.Longitude,
		Timestamp: time.Unix(req.Timestamp, 0),
		Accuracy:  req.Accuracy,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process report"})
		return
	}

	c.JSON(http.StatusOK, toEventResponses(events))
}

func (h *TrackingHandler) GetDeviceState(c *gin.Context) {
	st, err := h.trackingSvc.GetDeviceState(c.Request.Context(), c.Param("device_id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device state not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch device state"})
		return
	}

	c.JSON(http.StatusOK, stateResponse{
		DeviceID:   st.DeviceID,
		GeofenceID: st.GeofenceID,
		IsInside:   st.IsInside,
		Latitude:   st.LastLat,
		Longitude:  st.LastLon,
		LastUpdate: st.LastUpdate.Unix(),
	})
}

func (h *TrackingHandler) GetEvents(c *gin.Context) {
	limit := defaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})
			return
		}
		limit = n
	}

	events, err := h.trackingSvc.GetEvents(c.Request.Context(), c.Query("device_id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch events"})
		return
	}

	c.JSON(http.StatusOK, toEventResponses(events))
}

func (h *TrackingHandler) GetHistory(c *gin.Context) {
	deviceID := c.Query("device_id")
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_id is required"})
		return
	}

	start, err := strconv.ParseInt(c.Query("start"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start parameter"})
		return
	}

	end, err := strconv.ParseInt(c.Query("end"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end parameter"})
		return
	}

	events, err := h.trackingSvc.GetHistory(c.Request.Context(), &domain.HistoryQuery{
		DeviceID: deviceID,
		Start:    time.Unix(start, 0),
		End:      time.Unix(end, 0),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch history"})
		return
	}

	c.JSON(http.StatusOK, toEventResponses(events))
}

func validateReportRequest(req *reportRequest) error {
	if req.DeviceID == "" {
		return fmt.Errorf("device_id: required")
	}
	if err := domain.ValidateCoordinates(req.Latitude, req.Longitude); err != nil {
		return err
	}
	if req.Timestamp <= 0 {
		return fmt.Errorf("timestamp: must be positive")
	}
	if req.Accuracy != nil && *req.Accuracy < 0 {
		return fmt.Errorf("accuracy: must not be negative")
	}
	return nil
}

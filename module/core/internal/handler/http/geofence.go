package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nandanugg/geofence/module/core/domain"
)

type geofenceService interface {
	Upsert(ctx context.Context, gf *domain.Geofence) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*domain.Geofence, error)
	List(ctx context.Context) ([]domain.Geofence, error)
}

type GeofenceHandler struct {
	geofenceSvc geofenceService
}

func NewGeofenceHandler(geofenceSvc geofenceService) *GeofenceHandler {
	return &GeofenceHandler{geofenceSvc: geofenceSvc}
}

func (h *GeofenceHandler) Register(r *gin.RouterGroup) {
	r.POST("/geofences", h.Upsert)
	r.GET("/geofences", h.List)
	r.GET("/geofences/:geofence_id", h.Get)
	r.DELETE("/geofences/:geofence_id", h.Delete)
}

func (h *GeofenceHandler) Upsert(c *gin.Context) {
	var gf domain.Geofence
	if err := c.ShouldBindJSON(&gf); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid geofence body"})
		return
	}

	if err := h.geofenceSvc.Upsert(c.Request.Context(), &gf); err != nil {
		if errors.Is(err, domain.ErrInvalidGeofence) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store geofence"})
		return
	}

	c.JSON(http.StatusOK, gf)
}

func (h *GeofenceHandler) List(c *gin.Context) {
	fences, err := h.geofenceSvc.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch geofences"})
		return
	}

	c.JSON(http.StatusOK, fences)
}

func (h *GeofenceHandler) Get(c *gin.Context) {
	gf, err := h.geofenceSvc.Get(c.Request.Context(), c.Param("geofence_id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "geofence not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch geofence"})
		return
	}

	c.JSON(http.StatusOK, gf)
}

func (h *GeofenceHandler) Delete(c *gin.Context) {
	id := c.Param("geofence_id")

	if err := h.geofenceSvc.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete geofence"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "geofence " + id + " deleted"})
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nandanugg/geofence/module/core/domain"
	"github.com/nandanugg/geofence/module/core/internal/repository/database"
)

var _ database.GeofenceRepository = (*GeofenceRepo)(nil)

type GeofenceRepo struct {
	db *sql.DB
}

func NewGeofenceRepo(db *sql.DB) *GeofenceRepo {
	return &GeofenceRepo{db: db}
}

// geometry is the JSONB payload of the geofences.geometry column.
type geometry struct {
	Circular *domain.Circle  `json:"circular,omitempty"`
	Polygon  *domain.Polygon `json:"polygon,omitempty"`
}

func (r *GeofenceRepo) Upsert(ctx context.Context, gf *domain.Geofence) error {
	body, err := json.Marshal(geometry{Circular: gf.Circular, Polygon: gf.Polygon})
	if err != nil {
		return fmt.Errorf("marshal geometry: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO geofences (id, name, type, geometry, updated_at) VALUES ($1, $2, $3, $4, now()) ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, type = EXCLUDED.type, geometry = EXCLUDED.geometry, updated_at = now()`,
		gf.ID, gf.Name, string(gf.Type), body,
	)
	return err
}

func (r *GeofenceRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM geofences WHERE id = $1`, id)
	return err
}

func (r *GeofenceRepo) List(ctx context.Context) ([]domain.Geofence, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, type, geometry FROM geofences ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []domain.Geofence
	for rows.Next() {
		var (
			gf   domain.Geofence
			typ  string
			body []byte
			geom geometry
		)
		if err := rows.Scan(&gf.ID, &gf.Name, &typ, &body); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(body, &geom); err != nil {
			return nil, fmt.Errorf("geofence %s geometry: %w", gf.ID, err)
		}
		gf.Type = domain.GeofenceType(typ)
		gf.Circular = geom.Circular
		gf.Polygon = geom.Polygon
		results = append(results, gf)
	}
	return results, rows.Err()
}

package postgres

import (
	"context"
	"database/sql"

	"github.com/nandanugg/geofence/module/core/domain"
	"github.com/nandanugg/geofence/module/core/internal/repository/database"
)

var _ database.TransitionRepository = (*TransitionRepo)(nil)

type TransitionRepo struct {
	db *sql.DB
}

func NewTransitionRepo(db *sql.DB) *TransitionRepo {
	return &TransitionRepo{db: db}
}

func (r *TransitionRepo) Insert(ctx context.Context, ev *domain.TransitionEvent) error {
	var distance sql.NullFloat64
	if ev.Distance != nil {
		distance = sql.NullFloat64{Float64: *ev.Distance, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transition_events (id, device_id, geofence_id, event_type, latitude, longitude, distance, timestamp) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.DeviceID, ev.GeofenceID, string(ev.Type), ev.Lat, ev.Lon, distance, ev.Timestamp,
	)
	return err
}

func (r *TransitionRepo) GetHistory(ctx context.Context, query *domain.HistoryQuery) ([]domain.TransitionEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, geofence_id, event_type, latitude, longitude, distance, timestamp FROM transition_events WHERE device_id = $1 AND timestamp >= $2 AND timestamp <= $3 ORDER BY timestamp ASC`,
		query.DeviceID, query.Start, query.End,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	results := []domain.TransitionEvent{}
	for rows.Next() {
		var (
			ev       domain.TransitionEvent
			typ      string
			distance sql.NullFloat64
		)
		if err := rows.Scan(&ev.ID, &ev.DeviceID, &ev.GeofenceID, &typ, &ev.Lat, &ev.Lon, &distance, &ev.Timestamp); err != nil {
			return nil, err
		}
		ev.Type = domain.TransitionType(typ)
		if distance.Valid {
			d := distance.Float64
			ev.Distance = &d
		}
		results = append(results, ev)
	}
	return results, rows.Err()
}

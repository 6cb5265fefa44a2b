// Package engine turns a stream of location reports into geofence ENTER and
// EXIT transitions.
//
// The engine owns every geofence definition, the per-device containment state
// and the transition log. It performs no I/O. Device state is sharded by
// device id: reports for one device are applied strictly in arrival order
// while reports for devices on other shards proceed in parallel.
package engine

import (
	"math"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/nandanugg/geofence/module/core/containment"
	"github.com/nandanugg/geofence/module/core/domain"
)

const (
	shardCount = 32

	// coordTolerance is roughly one meter expressed in degrees on both axes.
	// It is not metrically uniform: a degree of longitude shrinks towards the poles.
	coordTolerance = 0.00001
)

// Resolver maps a device to the single geofence it is tracked against.
type Resolver interface {
	ResolveGeofence(deviceID string) (geofenceID string, ok bool)
}

// ResolverFunc adapts a plain function to Resolver.
type ResolverFunc func(deviceID string) (string, bool)

func (f ResolverFunc) ResolveGeofence(deviceID string) (string, bool) {
	return f(deviceID)
}

type shard struct {
	mu     sync.Mutex
	states map[string]domain.DeviceState
}

type Engine struct {
	policy   containment.Policy
	resolver Resolver

	// Process holds fenceMu for reading while it runs so that a concurrent
	// delete cannot leave device state behind for a removed geofence.
	// Lock order: fenceMu, then shard.
	fenceMu sync.RWMutex
	fences  map[string]domain.Geofence

	shards [shardCount]shard

	logMu sync.RWMutex
	log   []domain.TransitionEvent
}

func New(policy containment.Policy, resolver Resolver) *Engine {
	e := &Engine{
		policy:   policy,
		resolver: resolver,
		fences:   make(map[string]domain.Geofence),
	}
	for i := range e.shards {
		e.shards[i].states = make(map[string]domain.DeviceState)
	}
	return e
}

func (e *Engine) shardFor(deviceID string) *shard {
	return &e.shards[xxhash.Sum64String(deviceID)%shardCount]
}

// UpsertGeofence validates gf and stores a copy, replacing any definition
// with the same id. Device state tracked against that id is kept.
func (e *Engine) UpsertGeofence(gf domain.Geofence) error {
	if err := gf.Validate(); err != nil {
		return err
	}

	e.fenceMu.Lock()
	e.fences[gf.ID] = gf.Clone()
	e.fenceMu.Unlock()
	return nil
}

// DeleteGeofence removes the geofence and every device state tracked against
// it. It returns how many device states were dropped and whether the
// geofence existed.
func (e *Engine) DeleteGeofence(id string) (cascaded int, existed bool) {
	e.fenceMu.Lock()
	defer e.fenceMu.Unlock()

	_, existed = e.fences[id]
	delete(e.fences, id)

	for i := range e.shards {
		sh := &e.shards[i]
		sh.mu.Lock()
		for deviceID, st := range sh.states {
			if st.GeofenceID == id {
				delete(sh.states, deviceID)
				cascaded++
			}
		}
		sh.mu.Unlock()
	}
	return cascaded, existed
}

func (e *Engine) Geofence(id string) (domain.Geofence, bool) {
	e.fenceMu.RLock()
	defer e.fenceMu.RUnlock()

	gf, ok := e.fences[id]
	if !ok {
		return domain.Geofence{}, false
	}
	return gf.Clone(), true
}

// Geofences returns every stored definition ordered by id.
func (e *Engine) Geofences() []domain.Geofence {
	e.fenceMu.RLock()
	out := make([]domain.Geofence, 0, len(e.fences))
	for _, gf := range e.fences {
		out = append(out, gf.Clone())
	}
	e.fenceMu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (e *Engine) DeviceState(deviceID string) (domain.DeviceState, bool) {
	sh := e.shardFor(deviceID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.states[deviceID]
	return st, ok
}

// Events returns up to limit of the most recent transitions in log order,
// oldest first. The device filter, when set, is applied before the limit.
func (e *Engine) Events(deviceID string, limit int) []domain.TransitionEvent {
	if limit <= 0 {
		return []domain.TransitionEvent{}
	}

	e.logMu.RLock()
	defer e.logMu.RUnlock()

	var filtered []domain.TransitionEvent
	if deviceID == "" {
		filtered = e.log
	} else {
		for _, ev := range e.log {
			if ev.DeviceID == deviceID {
				filtered = append(filtered, ev)
			}
		}
	}

	if len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	out := make([]domain.TransitionEvent, len(filtered))
	copy(out, filtered)
	return out
}

// Process applies one report. Soft rejections (no assignment, unknown
// geofence, duplicate, stale) return an empty Result with the reason in
// Outcome and a nil error. An error is returned only when the geofence cannot
// be evaluated; state is left untouched in that case.
func (e *Engine) Process(report *domain.LocationReport) (Result, error) {
	geofenceID, ok := e.resolver.ResolveGeofence(report.DeviceID)
	if !ok || geofenceID == "" {
		return Result{Outcome: OutcomeNoAssignment}, nil
	}

	e.fenceMu.RLock()
	defer e.fenceMu.RUnlock()

	sh := e.shardFor(report.DeviceID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	res := Result{GeofenceID: geofenceID}

	gf, ok := e.fences[geofenceID]
	if !ok {
		res.Outcome = OutcomeGeofenceNotFound
		return res, nil
	}

	prev, hasPrev := sh.states[report.DeviceID]
	if hasPrev {
		if outcome, rejected := filterReport(&prev, report); rejected {
			res.Outcome = outcome
			return res, nil
		}
	}

	pt := report.Point()
	inside, err := e.policy.Contains(&gf, pt)
	if err != nil {
		return res, err
	}

	switch {
	case !hasPrev:
		res.Outcome = OutcomeFirstReport
	case prev.GeofenceID != geofenceID:
		// A device moved to another geofence starts over: the stored flag
		// describes a different boundary.
		res.Outcome = OutcomeReassigned
	case !prev.IsInside && inside:
		res.Outcome = OutcomeTransition
		ev, err := e.newEvent(domain.TransitionEnter, &gf, report)
		if err != nil {
			return Result{GeofenceID: geofenceID}, err
		}
		res.Events = []domain.TransitionEvent{ev}
	case prev.IsInside && !inside:
		res.Outcome = OutcomeTransition
		ev, err := e.newEvent(domain.TransitionExit, &gf, report)
		if err != nil {
			return Result{GeofenceID: geofenceID}, err
		}
		res.Events = []domain.TransitionEvent{ev}
	default:
		res.Outcome = OutcomeUnchanged
	}
	res.Inside = inside

	sh.states[report.DeviceID] = domain.DeviceState{
		DeviceID:   report.DeviceID,
		GeofenceID: geofenceID,
		IsInside:   inside,
		LastUpdate: report.Timestamp,
		LastLat:    report.Lat,
		LastLon:    report.Lon,
	}

	if len(res.Events) > 0 {
		e.logMu.Lock()
		e.log = append(e.log, res.Events...)
		e.logMu.Unlock()
	}
	return res, nil
}

func (e *Engine) newEvent(typ domain.TransitionType, gf *domain.Geofence, report *domain.LocationReport) (domain.TransitionEvent, error) {
	dist, ok, err := e.policy.DistanceToBoundary(gf, report.Point())
	if err != nil {
		return domain.TransitionEvent{}, err
	}
	var distance *float64
	if ok {
		distance = &dist
	}
	return domain.NewTransitionEvent(typ, report, gf.ID, distance), nil
}

// filterReport rejects reports that sit within coordTolerance of the last
// accepted position, or whose timestamp does not move strictly forward.
func filterReport(prev *domain.DeviceState, report *domain.LocationReport) (Outcome, bool) {
	if math.Abs(prev.LastLat-report.Lat) < coordTolerance && math.Abs(prev.LastLon-report.Lon) < coordTolerance {
		return OutcomeDuplicate, true
	}
	if !report.Timestamp.After(prev.LastUpdate) {
		return OutcomeStale, true
	}
	return "", false
}

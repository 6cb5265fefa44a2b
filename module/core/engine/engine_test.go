package engine

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nandanugg/geofence/module/core/containment"
	"github.com/nandanugg/geofence/module/core/domain"
)

var (
	depotCenter = domain.Point{Lat: -6.2088, Lon: 106.8456}
	// ~111m north of the depot, outside a 50m fence even with 10m hysteresis
	outsidePt = domain.Point{Lat: -6.2078, Lon: 106.8456}
	// ~11m north of the depot
	insidePt = domain.Point{Lat: -6.2087, Lon: 106.8456}
	baseTime = time.Unix(1715003456, 0)
)

func depotFence() domain.Geofence {
	return domain.Geofence{
		ID:       "depot",
		Name:     "Main depot",
		Type:     domain.GeofenceCircular,
		Circular: &domain.Circle{Center: depotCenter, Radius: 50},
	}
}

func yardFence() domain.Geofence {
	return domain.Geofence{
		ID:   "yard",
		Name: "Yard",
		Type: domain.GeofencePolygon,
		Polygon: &domain.Polygon{Vertices: []domain.Point{
			{Lat: 0, Lon: 0}, {Lat: 0, Lon: 10}, {Lat: 10, Lon: 10}, {Lat: 10, Lon: 0},
		}},
	}
}

// assignments maps devices to geofences; unknown devices have no assignment.
func assignments(m map[string]string) Resolver {
	return ResolverFunc(func(deviceID string) (string, bool) {
		id, ok := m[deviceID]
		return id, ok
	})
}

func newTestEngine(t *testing.T, m map[string]string, fences ...domain.Geofence) *Engine {
	t.Helper()
	e := New(containment.NewPolicy(10), assignments(m))
	for _, gf := range fences {
		if err := e.UpsertGeofence(gf); err != nil {
			t.Fatalf("upsert %s: %v", gf.ID, err)
		}
	}
	return e
}

func report(deviceID string, pt domain.Point, offset time.Duration) *domain.LocationReport {
	return &domain.LocationReport{
		DeviceID:  deviceID,
		Lat:       pt.Lat,
		Lon:       pt.Lon,
		Timestamp: baseTime.Add(offset),
	}
}

func mustProcess(t *testing.T, e *Engine, r *domain.LocationReport) Result {
	t.Helper()
	res, err := e.Process(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return res
}

func TestProcess_FirstReportNeverEmits(t *testing.T) {
	for _, pt := range []domain.Point{insidePt, outsidePt} {
		e := newTestEngine(t, map[string]string{"truck": "depot"}, depotFence())

		res := mustProcess(t, e, report("truck", pt, 0))
		if len(res.Events) != 0 {
			t.Fatalf("expected no events on first report, got %d", len(res.Events))
		}
		if res.Outcome != OutcomeFirstReport {
			t.Errorf("expected first_report, got %s", res.Outcome)
		}

		st, ok := e.DeviceState("truck")
		if !ok {
			t.Fatal("expected device state to be created")
		}
		if st.GeofenceID != "depot" || st.LastLat != pt.Lat || !st.LastUpdate.Equal(baseTime) {
			t.Errorf("unexpected state: %+v", st)
		}
	}
}

func TestProcess_EnterThenExit(t *testing.T) {
	e := newTestEngine(t, map[string]string{"truck": "depot"}, depotFence())

	mustProcess(t, e, report("truck", outsidePt, 0))

	res := mustProcess(t, e, report("truck", insidePt, time.Minute))
	if len(res.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(res.Events))
	}
	enter := res.Events[0]
	if enter.Type != domain.TransitionEnter {
		t.Errorf("expected enter, got %s", enter.Type)
	}
	if enter.DeviceID != "truck" || enter.GeofenceID != "depot" {
		t.Errorf("unexpected event identity: %+v", enter)
	}
	if enter.Distance == nil || *enter.Distance >= 0 {
		t.Errorf("expected negative distance inside a circle, got %v", enter.Distance)
	}
	if st, _ := e.DeviceState("truck"); !st.IsInside {
		t.Error("expected is_inside after enter")
	}

	res = mustProcess(t, e, report("truck", outsidePt, 2*time.Minute))
	if len(res.Events) != 1 || res.Events[0].Type != domain.TransitionExit {
		t.Fatalf("expected 1 exit event, got %+v", res.Events)
	}
	if res.Events[0].Distance == nil || *res.Events[0].Distance <= 0 {
		t.Errorf("expected positive distance outside, got %v", res.Events[0].Distance)
	}
	if st, _ := e.DeviceState("truck"); st.IsInside {
		t.Error("expected is_inside false after exit")
	}

	if got := len(e.Events("", 100)); got != 2 {
		t.Errorf("expected 2 logged events, got %d", got)
	}
}

func TestProcess_UnchangedContainmentStillUpdatesState(t *testing.T) {
	e := newTestEngine(t, map[string]string{"truck": "depot"}, depotFence())

	mustProcess(t, e, report("truck", insidePt, 0))
	res := mustProcess(t, e, report("truck", depotCenter, time.Minute))
	if len(res.Events) != 0 || res.Outcome != OutcomeUnchanged {
		t.Fatalf("expected unchanged with no events, got %s %+v", res.Outcome, res.Events)
	}

	st, _ := e.DeviceState("truck")
	if st.LastLat != depotCenter.Lat || !st.LastUpdate.Equal(baseTime.Add(time.Minute)) {
		t.Errorf("state not overwritten: %+v", st)
	}
}

func TestProcess_DuplicateIsIdempotent(t *testing.T) {
	e := newTestEngine(t, map[string]string{"truck": "depot"}, depotFence())
	mustProcess(t, e, report("truck", outsidePt, 0))

	first := mustProcess(t, e, report("truck", insidePt, time.Minute))
	if len(first.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(first.Events))
	}

	again := mustProcess(t, e, report("truck", insidePt, 2*time.Minute))
	if len(again.Events) != 0 || again.Outcome != OutcomeDuplicate {
		t.Errorf("expected duplicate with no events, got %s %+v", again.Outcome, again.Events)
	}

	near := domain.Point{Lat: insidePt.Lat + 0.000005, Lon: insidePt.Lon - 0.000005}
	again = mustProcess(t, e, report("truck", near, 3*time.Minute))
	if len(again.Events) != 0 || again.Outcome != OutcomeDuplicate {
		t.Errorf("expected near-identical report to be a duplicate, got %s", again.Outcome)
	}

	st, _ := e.DeviceState("truck")
	if !st.LastUpdate.Equal(baseTime.Add(time.Minute)) {
		t.Errorf("duplicate must not update state, last_update=%v", st.LastUpdate)
	}
	if got := len(e.Events("truck", 100)); got != 1 {
		t.Errorf("expected 1 logged event, got %d", got)
	}
}

func TestProcess_StaleTimestampRejected(t *testing.T) {
	tests := []struct {
		name   string
		offset time.Duration
	}{
		{"equal timestamp", time.Minute},
		{"older timestamp", 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, map[string]string{"truck": "depot"}, depotFence())
			mustProcess(t, e, report("truck", outsidePt, time.Minute))

			// inside and far from the last coordinates, but not newer
			res := mustProcess(t, e, report("truck", insidePt, tt.offset))
			if len(res.Events) != 0 || res.Outcome != OutcomeStale {
				t.Fatalf("expected stale rejection, got %s %+v", res.Outcome, res.Events)
			}

			st, _ := e.DeviceState("truck")
			if st.IsInside || st.LastLat != outsidePt.Lat {
				t.Errorf("stale report must not touch state: %+v", st)
			}
		})
	}
}

func TestProcess_SoftFailuresLeaveNoState(t *testing.T) {
	e := newTestEngine(t, map[string]string{"lost": "nowhere"}, depotFence())

	res := mustProcess(t, e, report("stranger", insidePt, 0))
	if res.Outcome != OutcomeNoAssignment || len(res.Events) != 0 {
		t.Errorf("expected no_assignment, got %s", res.Outcome)
	}
	if _, ok := e.DeviceState("stranger"); ok {
		t.Error("unassigned device must not get state")
	}

	res = mustProcess(t, e, report("lost", insidePt, 0))
	if res.Outcome != OutcomeGeofenceNotFound || res.GeofenceID != "nowhere" {
		t.Errorf("expected geofence_not_found for nowhere, got %s %s", res.Outcome, res.GeofenceID)
	}
	if _, ok := e.DeviceState("lost"); ok {
		t.Error("device with missing geofence must not get state")
	}
}

func TestProcess_PolygonEventsHaveNoDistance(t *testing.T) {
	e := newTestEngine(t, map[string]string{"drone": "yard"}, yardFence())

	mustProcess(t, e, report("drone", domain.Point{Lat: 20, Lon: 20}, 0))
	res := mustProcess(t, e, report("drone", domain.Point{Lat: 5, Lon: 5}, time.Minute))
	if len(res.Events) != 1 || res.Events[0].Type != domain.TransitionEnter {
		t.Fatalf("expected enter, got %+v", res.Events)
	}
	if res.Events[0].Distance != nil {
		t.Errorf("polygon events must not carry a distance, got %f", *res.Events[0].Distance)
	}
}

func TestProcess_ReassignedDeviceStartsOver(t *testing.T) {
	assigned := map[string]string{"truck": "depot"}
	e := newTestEngine(t, assigned, depotFence(), yardFence())

	mustProcess(t, e, report("truck", insidePt, 0))

	assigned["truck"] = "yard"
	res := mustProcess(t, e, report("truck", domain.Point{Lat: 20, Lon: 20}, time.Minute))
	if len(res.Events) != 0 || res.Outcome != OutcomeReassigned {
		t.Fatalf("expected reassignment without events, got %s %+v", res.Outcome, res.Events)
	}
	st, _ := e.DeviceState("truck")
	if st.GeofenceID != "yard" || st.IsInside {
		t.Errorf("unexpected state after reassignment: %+v", st)
	}
}

func TestProcess_UnsupportedGeofenceIsHardError(t *testing.T) {
	e := newTestEngine(t, map[string]string{"truck": "broken"})
	// bypass validation to simulate a corrupted definition
	e.fences["broken"] = domain.Geofence{ID: "broken", Type: "hexagon"}

	_, err := e.Process(report("truck", insidePt, 0))
	if !errors.Is(err, containment.ErrUnsupportedGeofence) {
		t.Fatalf("expected ErrUnsupportedGeofence, got %v", err)
	}
	if _, ok := e.DeviceState("truck"); ok {
		t.Error("failed evaluation must not create state")
	}
}

func TestUpsertGeofence(t *testing.T) {
	e := newTestEngine(t, nil)

	err := e.UpsertGeofence(domain.Geofence{ID: "bad", Type: domain.GeofenceCircular})
	if !errors.Is(err, domain.ErrInvalidGeofence) {
		t.Fatalf("expected ErrInvalidGeofence, got %v", err)
	}
	if _, ok := e.Geofence("bad"); ok {
		t.Error("invalid geofence must not be stored")
	}

	gf := depotFence()
	if err := e.UpsertGeofence(gf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gf.Circular.Radius = 999
	stored, ok := e.Geofence("depot")
	if !ok || stored.Circular.Radius != 50 {
		t.Fatalf("stored geofence must not alias caller memory: %+v", stored.Circular)
	}

	replacement := yardFence()
	replacement.ID = "depot"
	if err := e.UpsertGeofence(replacement); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, _ = e.Geofence("depot")
	if stored.Type != domain.GeofencePolygon || stored.Circular != nil {
		t.Errorf("expected polygon replacement, got %+v", stored)
	}

	if got := e.Geofences(); len(got) != 1 {
		t.Errorf("expected 1 geofence, got %d", len(got))
	}
}

func TestDeleteGeofence_Cascades(t *testing.T) {
	e := newTestEngine(t,
		map[string]string{"truck1": "depot", "truck2": "depot", "drone": "yard"},
		depotFence(), yardFence(),
	)
	mustProcess(t, e, report("truck1", insidePt, 0))
	mustProcess(t, e, report("truck2", outsidePt, 0))
	mustProcess(t, e, report("drone", domain.Point{Lat: 5, Lon: 5}, 0))

	cascaded, existed := e.DeleteGeofence("depot")
	if !existed || cascaded != 2 {
		t.Fatalf("expected 2 cascaded states, got %d existed=%v", cascaded, existed)
	}
	for _, id := range []string{"truck1", "truck2"} {
		if _, ok := e.DeviceState(id); ok {
			t.Errorf("state for %s should be gone", id)
		}
	}
	if _, ok := e.DeviceState("drone"); !ok {
		t.Error("state for other geofences must survive")
	}
	if _, ok := e.Geofence("depot"); ok {
		t.Error("geofence should be gone")
	}

	res := mustProcess(t, e, report("truck1", insidePt, time.Minute))
	if res.Outcome != OutcomeGeofenceNotFound {
		t.Errorf("expected geofence_not_found after delete, got %s", res.Outcome)
	}

	if _, existed := e.DeleteGeofence("depot"); existed {
		t.Error("second delete should report a missing geofence")
	}
}

func TestEvents_FilterThenTruncate(t *testing.T) {
	e := newTestEngine(t, map[string]string{"a": "depot", "b": "depot"}, depotFence())

	// a produces 4 events, b produces 2, interleaved
	mustProcess(t, e, report("a", outsidePt, 0))
	mustProcess(t, e, report("b", outsidePt, 0))
	pts := []domain.Point{insidePt, outsidePt, insidePt, outsidePt}
	for i, pt := range pts {
		mustProcess(t, e, report("a", pt, time.Duration(i+1)*time.Minute))
		if i < 2 {
			mustProcess(t, e, report("b", pt, time.Duration(i+1)*time.Minute))
		}
	}

	all := e.Events("", 100)
	if len(all) != 6 {
		t.Fatalf("expected 6 events, got %d", len(all))
	}

	last := e.Events("", 2)
	if len(last) != 2 || last[0].ID != all[4].ID || last[1].ID != all[5].ID {
		t.Errorf("expected the 2 most recent events in log order")
	}

	onlyA := e.Events("a", 3)
	if len(onlyA) != 3 {
		t.Fatalf("expected 3 events for a, got %d", len(onlyA))
	}
	for _, ev := range onlyA {
		if ev.DeviceID != "a" {
			t.Errorf("unexpected device %s", ev.DeviceID)
		}
	}
	if onlyA[2].Type != domain.TransitionExit || !onlyA[2].Timestamp.Equal(baseTime.Add(4*time.Minute)) {
		t.Errorf("expected most recent event of a last, got %+v", onlyA[2])
	}

	if got := e.Events("b", 10); len(got) != 2 {
		t.Errorf("expected 2 events for b, got %d", len(got))
	}
	if got := e.Events("nobody", 10); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
	if got := e.Events("", 0); len(got) != 0 {
		t.Errorf("expected no events for limit 0, got %d", len(got))
	}
}

func TestProcess_ConcurrentDevices(t *testing.T) {
	const devices = 50
	m := make(map[string]string, devices)
	for i := 0; i < devices; i++ {
		m[fmt.Sprintf("truck-%d", i)] = "depot"
	}
	e := newTestEngine(t, m, depotFence())

	var wg sync.WaitGroup
	for id := range m {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			pts := []domain.Point{outsidePt, insidePt, outsidePt, insidePt}
			for i, pt := range pts {
				if _, err := e.Process(report(id, pt, time.Duration(i)*time.Second)); err != nil {
					t.Errorf("process %s: %v", id, err)
				}
			}
		}(id)
	}
	wg.Wait()

	if got := len(e.Events("", devices*10)); got != devices*3 {
		t.Errorf("expected %d events, got %d", devices*3, got)
	}
	for id := range m {
		if got := e.Events(id, 10); len(got) != 3 || got[0].Type != domain.TransitionEnter {
			t.Errorf("device %s: unexpected events %+v", id, got)
		}
	}
}

func TestDeleteGeofence_ConcurrentWithProcess(t *testing.T) {
	const devices = 20
	m := make(map[string]string, devices)
	for i := 0; i < devices; i++ {
		m[fmt.Sprintf("truck-%d", i)] = "depot"
	}
	e := newTestEngine(t, m, depotFence())

	var wg sync.WaitGroup
	for id := range m {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				pt := outsidePt
				if i%2 == 0 {
					pt = insidePt
				}
				if _, err := e.Process(report(id, pt, time.Duration(i)*time.Second)); err != nil {
					t.Errorf("process %s: %v", id, err)
				}
			}
		}(id)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			e.DeleteGeofence("depot")
			if err := e.UpsertGeofence(depotFence()); err != nil {
				t.Errorf("upsert: %v", err)
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("process and delete did not finish")
	}
}

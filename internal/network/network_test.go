package network

import (
	"errors"
	"testing"
	"time"
)

var day0 = time.Date(2025, 9, 7, 0, 0, 0, 0, time.UTC)

func clock(t *testing.T, s string) time.Duration {
	t.Helper()
	d, err := ParseClock(s)
	if err != nil {
		t.Fatalf("clock %s: %v", s, err)
	}
	return d
}

func TestBuildSingleFlight(t *testing.T) {
	airports := []Airport{{Code: "SPIM", Continent: "SA", UTCOffset: -5 * time.Hour, GroundCapacity: 400}, {Code: "SKBO", Continent: "SA", UTCOffset: -5 * time.Hour, GroundCapacity: 300}}
	flights := []FlightLeg{{Origin: "SPIM", Destination: "SKBO", Departure: clock(t, "10:00"), Arrival: clock(t, "13:00"), Capacity: 300}}
	g, err := Build(airports, flights, Options{Start: day0, Days: 1})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	dep := NodeID("SPIM", day0.Add(15*time.Hour))
	arr := NodeID("SKBO", day0.Add(18*time.Hour))
	if dep != "SPIM@2025-09-07T15:00Z" {
		t.Fatalf("unexpected node id %s", dep)
	}
	if _, ok := g.Node(dep); !ok {
		t.Fatalf("missing departure node")
	}
	out := g.Out(dep)
	if len(out) != 1 || out[0] != ArcID(dep, arr) {
		t.Fatalf("unexpected adjacency %v", out)
	}
	a, _ := g.Arc(out[0])
	if a.Kind != KindFlight || a.Capacity != 300 || a.Flight == nil {
		t.Fatalf("unexpected arc %+v", a)
	}
	st := g.Stats()
	if st.FlightArcs != 1 || st.WaitArcs != 0 || st.Nodes != 2 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestBuildOvernightAddsDay(t *testing.T) {
	airports := []Airport{{Code: "SPIM", UTCOffset: -5 * time.Hour}, {Code: "EBCI", UTCOffset: 2 * time.Hour}}
	// 22:00 Lima is 03:00Z, 18:00 Brussels is 16:00Z: same UTC day, no shift.
	// 23:30 Brussels (21:30Z) to 05:00 Lima (10:00Z) wraps to the next day.
	flights := []FlightLeg{
		{Origin: "SPIM", Destination: "EBCI", Departure: clock(t, "22:00"), Arrival: clock(t, "18:00"), Capacity: 100},
		{Origin: "EBCI", Destination: "SPIM", Departure: clock(t, "23:30"), Arrival: clock(t, "05:00"), Capacity: 100},
	}
	g, err := Build(airports, flights, Options{Start: day0})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	dep := NodeID("EBCI", day0.Add(21*time.Hour+30*time.Minute))
	arr := NodeID("SPIM", day0.Add(34*time.Hour))
	a, ok := g.Arc(ArcID(dep, arr))
	if !ok {
		t.Fatalf("overnight arc missing; arcs=%v", g.ArcIDs())
	}
	if !a.Arr.After(a.Dep) {
		t.Fatalf("arrival must follow departure: %+v", a)
	}
}

func TestBuildWaitArcsChainEvents(t *testing.T) {
	airports := []Airport{{Code: "A", GroundCapacity: 0}, {Code: "B", GroundCapacity: 50}}
	flights := []FlightLeg{
		{Origin: "A", Destination: "B", Departure: clock(t, "08:00"), Arrival: clock(t, "10:00"), Capacity: 10},
		{Origin: "B", Destination: "A", Departure: clock(t, "12:00"), Arrival: clock(t, "14:00"), Capacity: 10},
	}
	g, err := Build(airports, flights, Options{Start: day0, Days: 2})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	evA := g.Events("A")
	if len(evA) != 4 {
		t.Fatalf("expected 4 events at A, got %v", evA)
	}
	for i := 1; i < len(evA); i++ {
		if !evA[i].After(evA[i-1]) {
			t.Fatalf("events not strictly sorted: %v", evA)
		}
	}
	// three wait arcs per airport over four events
	if st := g.Stats(); st.WaitArcs != 6 || st.FlightArcs != 4 {
		t.Fatalf("unexpected stats %+v", st)
	}
	w, ok := g.Arc(ArcID(NodeID("A", evA[0]), NodeID("A", evA[1])))
	if !ok || w.Kind != KindWait || w.Capacity != 1 {
		t.Fatalf("ground capacity 0 should floor at 1: %+v ok=%v", w, ok)
	}
	w, _ = g.Arc(ArcID(NodeID("B", g.Events("B")[0]), NodeID("B", g.Events("B")[1])))
	if w.Capacity != 50 {
		t.Fatalf("wait capacity=%d", w.Capacity)
	}
}

func TestWaitCapacityPolicies(t *testing.T) {
	airports := []Airport{{Code: "A", GroundCapacity: 5}, {Code: "B", GroundCapacity: 5}}
	flights := []FlightLeg{
		{Origin: "A", Destination: "B", Departure: clock(t, "08:00"), Arrival: clock(t, "09:00"), Capacity: 10},
		{Origin: "A", Destination: "B", Departure: clock(t, "10:00"), Arrival: clock(t, "11:00"), Capacity: 10},
	}
	for _, tc := range []struct {
		in   string
		want int
	}{{"ground", 5}, {"unlimited", UnlimitedWait(Airport{})}, {"42", 42}} {
		pol, err := ParseWaitCapacity(tc.in)
		if err != nil {
			t.Fatalf("parse %s: %v", tc.in, err)
		}
		g, _ := Build(airports, flights, Options{Start: day0, WaitCapacity: pol})
		ev := g.Events("A")
		w, _ := g.Arc(ArcID(NodeID("A", ev[0]), NodeID("A", ev[1])))
		if w.Capacity != tc.want {
			t.Fatalf("%s: capacity=%d want %d", tc.in, w.Capacity, tc.want)
		}
	}
	if _, err := ParseWaitCapacity("-3"); err == nil {
		t.Fatalf("expected error for negative capacity")
	}
}

func TestBuildSkipsUnknownAirportsAndIsIdempotent(t *testing.T) {
	airports := []Airport{{Code: "A"}, {Code: "B"}}
	flights := []FlightLeg{
		{Origin: "A", Destination: "ZZZZ", Departure: clock(t, "08:00"), Arrival: clock(t, "09:00"), Capacity: 10},
		{Origin: "A", Destination: "B", Departure: clock(t, "08:00"), Arrival: clock(t, "09:00"), Capacity: 10},
		{Origin: "A", Destination: "B", Departure: clock(t, "08:00"), Arrival: clock(t, "09:00"), Capacity: 99},
	}
	g1, err := Build(airports, flights, Options{Start: day0, Days: 3})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	g2, _ := Build(airports, flights, Options{Start: day0, Days: 3})
	if st := g1.Stats(); st.SkippedLegs != 1 || st.DuplicateArcs != 3 || st.FlightArcs != 3 {
		t.Fatalf("unexpected stats %+v", st)
	}
	a1, a2 := g1.ArcIDs(), g2.ArcIDs()
	if len(a1) != len(a2) {
		t.Fatalf("non-deterministic arc set")
	}
	for i := range a1 {
		if a1[i] != a2[i] {
			t.Fatalf("arc %d differs: %s vs %s", i, a1[i], a2[i])
		}
	}
	for _, id := range g1.NodeIDs() {
		o1, o2 := g1.Out(id), g2.Out(id)
		if len(o1) != len(o2) {
			t.Fatalf("adjacency differs at %s", id)
		}
		for i := range o1 {
			if o1[i] != o2[i] {
				t.Fatalf("adjacency order differs at %s", id)
			}
		}
	}
	a, _ := g1.Arc(ArcID(NodeID("A", day0.Add(8*time.Hour)), NodeID("B", day0.Add(9*time.Hour))))
	if a.Capacity != 10 {
		t.Fatalf("first arc should win, capacity=%d", a.Capacity)
	}
}

func TestBuildRejectsBadInput(t *testing.T) {
	if _, err := Build([]Airport{{Code: "A"}, {Code: "A"}}, nil, Options{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := Build(nil, nil, Options{Days: -1}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestFirstEventAtOrAfter(t *testing.T) {
	airports := []Airport{{Code: "A"}, {Code: "B"}}
	flights := []FlightLeg{{Origin: "A", Destination: "B", Departure: clock(t, "08:00"), Arrival: clock(t, "09:00"), Capacity: 10}}
	g, _ := Build(airports, flights, Options{Start: day0, Days: 2})
	got, ok := g.FirstEventAtOrAfter("A", day0.Add(8*time.Hour))
	if !ok || !got.Equal(day0.Add(8*time.Hour)) {
		t.Fatalf("exact match expected, got %v", got)
	}
	got, ok = g.FirstEventAtOrAfter("A", day0.Add(9*time.Hour))
	if !ok || !got.Equal(day0.Add(32*time.Hour)) {
		t.Fatalf("next day expected, got %v", got)
	}
	if _, ok := g.FirstEventAtOrAfter("A", day0.Add(72*time.Hour)); ok {
		t.Fatalf("no event expected past horizon")
	}
	if o := g.Origins(); len(o) != 1 || o[0] != "A" {
		t.Fatalf("origins=%v", o)
	}
}

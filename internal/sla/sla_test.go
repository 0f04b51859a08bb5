package sla

import (
	"testing"
	"time"

	"cargoplan/internal/cargo"
	"cargoplan/internal/network"
)

func TestWindowByContinent(t *testing.T) {
	p := Default()
	lim := network.Airport{Code: "SPIM", Continent: "America del Sur"}
	bog := network.Airport{Code: "SKBO", Continent: "america del sur "}
	bru := network.Airport{Code: "EBCI", Continent: "Europa"}
	if p.Window(lim, bog) != 48*time.Hour {
		t.Fatalf("same continent should be intra")
	}
	if p.Window(lim, bru) != 72*time.Hour {
		t.Fatalf("different continents should be inter")
	}
	ready := time.Date(2025, 9, 7, 8, 0, 0, 0, time.UTC)
	dl := p.Deadline(ready, p.Window(lim, bog))
	if !dl.Equal(ready.Add(48 * time.Hour)) {
		t.Fatalf("deadline=%v", dl)
	}
	if la := p.LatestArrival(dl); !la.Equal(ready.Add(46 * time.Hour)) {
		t.Fatalf("latest arrival=%v", la)
	}
}

func TestWithDefaults(t *testing.T) {
	p := Policy{Intra: 24 * time.Hour}.WithDefaults()
	if p.Intra != 24*time.Hour || p.Inter != 72*time.Hour || p.Pickup != 0 {
		t.Fatalf("unexpected %+v", p)
	}
}

func TestEvaluator(t *testing.T) {
	day := time.Date(2025, 9, 7, 0, 0, 0, 0, time.UTC)
	g, err := network.Build(
		[]network.Airport{{Code: "SPIM", Continent: "SA"}, {Code: "EBCI", Continent: "EU"}},
		[]network.FlightLeg{{Origin: "SPIM", Destination: "EBCI", Departure: 10 * time.Hour, Arrival: 22 * time.Hour, Capacity: 50}},
		network.Options{Start: day, Days: 4},
	)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ev := Evaluator{Policy: Default(), Graph: g}
	o := cargo.Order{ID: "o1", Destination: "EBCI", ReadyAt: day.Add(9 * time.Hour), Quantity: 5}
	mk := func(d int) cargo.CandidateRoute {
		dep := day.Add(time.Duration(d)*24*time.Hour + 10*time.Hour)
		arr := dep.Add(12 * time.Hour)
		id := network.ArcID(network.NodeID("SPIM", dep), network.NodeID("EBCI", arr))
		return cargo.CandidateRoute{OrderID: "o1", Origin: "SPIM", ArcIDs: []string{id}, Departure: dep, Arrival: arr, Hops: 1}
	}
	r := mk(0)
	if !ev.RespectsReadyTime(r, o) || !ev.MeetsSLA(r, o) {
		t.Fatalf("day-0 route should be on time")
	}
	// day 2 arrives at +61h, pickup ends at +63h, within the 72h window
	if !ev.MeetsSLA(mk(2), o) {
		t.Fatalf("day-2 route should be on time")
	}
	// day 3 arrives at +85h
	if ev.MeetsSLA(mk(3), o) {
		t.Fatalf("day-3 route should miss the deadline")
	}
	early := o
	early.ReadyAt = day.Add(11 * time.Hour)
	if ev.RespectsReadyTime(r, early) {
		t.Fatalf("departure before ready time must be rejected")
	}
}

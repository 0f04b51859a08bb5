// Package network builds the time-expanded flight network: every departure
// and arrival instant is a node, flights and ground waits are arcs.
package network

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type NodeRole string

const (
	RoleDeparture NodeRole = "departure"
	RoleArrival   NodeRole = "arrival"
	RoleWait      NodeRole = "wait"
)

type ArcKind string

const (
	KindFlight ArcKind = "flight"
	KindWait   ArcKind = "wait"
)

const idTimeLayout = "2006-01-02T15:04Z"

// Airport is a node of the physical network.
type Airport struct {
	Code           string
	Name           string
	City           string
	Country        string
	Continent      string
	UTCOffset      time.Duration
	GroundCapacity int
	Lat, Lng       float64
}

// FlightLeg is a daily scheduled flight. Departure and Arrival are local
// times of day at the origin and destination airport respectively.
type FlightLeg struct {
	Origin      string
	Destination string
	Departure   time.Duration
	Arrival     time.Duration
	Capacity    int
}

type Node struct {
	ID      string
	Airport string
	Time    time.Time
	Role    NodeRole
}

type Arc struct {
	ID       string
	From     string
	To       string
	Kind     ArcKind
	Capacity int
	Dep      time.Time
	Arr      time.Time
	Flight   *FlightLeg // nil for wait arcs
}

// WaitCapacityFunc decides the capacity of ground wait arcs at an airport.
type WaitCapacityFunc func(Airport) int

// GroundCapacity uses the airport's declared storage capacity, at least 1.
func GroundCapacity(a Airport) int {
	if a.GroundCapacity < 1 {
		return 1
	}
	return a.GroundCapacity
}

// UnlimitedWait makes ground waiting never the bottleneck.
func UnlimitedWait(Airport) int { return math.MaxInt32 }

// FixedWait gives every wait arc the same capacity.
func FixedWait(n int) WaitCapacityFunc {
	return func(Airport) int { return n }
}

// ParseWaitCapacity maps a config value (ground, unlimited or an integer) to a policy.
func ParseWaitCapacity(v string) (WaitCapacityFunc, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "ground", "airport":
		return GroundCapacity, nil
	case "unlimited", "inf":
		return UnlimitedWait, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("network: invalid wait capacity %q", v)
	}
	return FixedWait(n), nil
}

// ParseClock parses a local "HH:MM" time of day.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("network: bad clock %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

type Options struct {
	Start        time.Time // UTC midnight of horizon day 0
	Days         int       // repeated schedule days, default 1
	WaitCapacity WaitCapacityFunc
}

type BuildStats struct {
	Airports      int `json:"airports"`
	Nodes         int `json:"nodes"`
	FlightArcs    int `json:"flightArcs"`
	WaitArcs      int `json:"waitArcs"`
	SkippedLegs   int `json:"skippedLegs"`
	DuplicateArcs int `json:"duplicateArcs"`
}

// Graph is an id-keyed arena of nodes and arcs. It is immutable after Build.
type Graph struct {
	airports map[string]Airport
	nodes    map[string]*Node
	arcs     map[string]*Arc
	out      map[string][]string
	events   map[string][]time.Time
	stats    BuildStats
}

var ErrInvalidInput = errors.New("network: invalid input")

func NodeID(code string, t time.Time) string { return code + "@" + t.UTC().Format(idTimeLayout) }

func ArcID(from, to string) string { return from + "→" + to }

// Build expands the daily schedule over the horizon. Legs that reference
// unknown airports are skipped, not rejected.
func Build(airports []Airport, flights []FlightLeg, opts Options) (*Graph, error) {
	if opts.Days < 0 {
		return nil, fmt.Errorf("%w: negative horizon %d", ErrInvalidInput, opts.Days)
	}
	if opts.Days == 0 {
		opts.Days = 1
	}
	if opts.WaitCapacity == nil {
		opts.WaitCapacity = GroundCapacity
	}
	start := opts.Start.UTC()
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)

	g := &Graph{
		airports: make(map[string]Airport, len(airports)),
		nodes:    map[string]*Node{},
		arcs:     map[string]*Arc{},
		out:      map[string][]string{},
		events:   map[string][]time.Time{},
	}
	for _, a := range airports {
		if a.Code == "" {
			return nil, fmt.Errorf("%w: airport without code", ErrInvalidInput)
		}
		if _, dup := g.airports[a.Code]; dup {
			return nil, fmt.Errorf("%w: duplicate airport %s", ErrInvalidInput, a.Code)
		}
		g.airports[a.Code] = a
	}
	g.stats.Airports = len(g.airports)

	seen := map[string]map[int64]bool{}
	mark := func(code string, t time.Time) {
		if seen[code] == nil {
			seen[code] = map[int64]bool{}
		}
		if !seen[code][t.Unix()] {
			seen[code][t.Unix()] = true
			g.events[code] = append(g.events[code], t)
		}
	}

	for i := range flights {
		f := flights[i]
		orig, ok1 := g.airports[f.Origin]
		dest, ok2 := g.airports[f.Destination]
		if !ok1 || !ok2 || f.Origin == f.Destination || f.Capacity <= 0 {
			g.stats.SkippedLegs++
			continue
		}
		depTOD := utcTimeOfDay(f.Departure, orig.UTCOffset)
		arrTOD := utcTimeOfDay(f.Arrival, dest.UTCOffset)
		for d := 0; d < opts.Days; d++ {
			day := start.AddDate(0, 0, d)
			dep := day.Add(depTOD)
			arr := day.Add(arrTOD)
			if arr.Before(dep) {
				arr = arr.AddDate(0, 0, 1)
			}
			from := g.node(f.Origin, dep, RoleDeparture)
			to := g.node(f.Destination, arr, RoleArrival)
			leg := f
			if g.arc(from, to, KindFlight, f.Capacity, &leg) {
				g.stats.FlightArcs++
			} else {
				g.stats.DuplicateArcs++
			}
			mark(f.Origin, dep)
			mark(f.Destination, arr)
		}
	}

	codes := make([]string, 0, len(g.events))
	for code := range g.events {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		ts := g.events[code]
		sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
		if len(ts) < 2 {
			continue
		}
		capacity := opts.WaitCapacity(g.airports[code])
		for i := 0; i+1 < len(ts); i++ {
			from := g.node(code, ts[i], RoleWait)
			to := g.node(code, ts[i+1], RoleWait)
			if g.arc(from, to, KindWait, capacity, nil) {
				g.stats.WaitArcs++
			}
		}
	}
	g.stats.Nodes = len(g.nodes)
	return g, nil
}

// utcTimeOfDay converts a local time of day into a UTC time of day in [0,24h).
func utcTimeOfDay(local, offset time.Duration) time.Duration {
	t := (local - offset) % (24 * time.Hour)
	if t < 0 {
		t += 24 * time.Hour
	}
	return t
}

func (g *Graph) node(code string, t time.Time, role NodeRole) *Node {
	id := NodeID(code, t)
	if n, ok := g.nodes[id]; ok {
		return n
	}
	n := &Node{ID: id, Airport: code, Time: t, Role: role}
	g.nodes[id] = n
	return n
}

// arc inserts an arc unless its id already exists; it reports whether it did.
func (g *Graph) arc(from, to *Node, kind ArcKind, capacity int, leg *FlightLeg) bool {
	id := ArcID(from.ID, to.ID)
	if _, ok := g.arcs[id]; ok {
		return false
	}
	g.arcs[id] = &Arc{ID: id, From: from.ID, To: to.ID, Kind: kind, Capacity: capacity, Dep: from.Time, Arr: to.Time, Flight: leg}
	g.out[from.ID] = append(g.out[from.ID], id)
	return true
}

func (g *Graph) Airport(code string) (Airport, bool) {
	a, ok := g.airports[code]
	return a, ok
}

func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

func (g *Graph) Arc(id string) (Arc, bool) {
	a, ok := g.arcs[id]
	if !ok {
		return Arc{}, false
	}
	return *a, true
}

// Out returns the ids of arcs leaving nodeID in insertion order.
func (g *Graph) Out(nodeID string) []string { return g.out[nodeID] }

// Events returns the sorted distinct event instants at an airport.
func (g *Graph) Events(code string) []time.Time { return g.events[code] }

// FirstEventAtOrAfter returns the earliest event at code that is not before t.
func (g *Graph) FirstEventAtOrAfter(code string, t time.Time) (time.Time, bool) {
	ts := g.events[code]
	i := sort.Search(len(ts), func(i int) bool { return !ts[i].Before(t) })
	if i == len(ts) {
		return time.Time{}, false
	}
	return ts[i], true
}

// AirportCodes returns every airport code, sorted.
func (g *Graph) AirportCodes() []string {
	out := make([]string, 0, len(g.airports))
	for c := range g.airports {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Origins returns the airports with at least one outgoing flight, sorted.
func (g *Graph) Origins() []string {
	set := map[string]bool{}
	for _, a := range g.arcs {
		if a.Kind == KindFlight {
			set[a.Flight.Origin] = true
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (g *Graph) NodeIDs() []string {
	out := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (g *Graph) ArcIDs() []string {
	out := make([]string, 0, len(g.arcs))
	for id := range g.arcs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (g *Graph) Stats() BuildStats { return g.stats }

package ingest

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"cargoplan/internal/cargo"
	"cargoplan/internal/network"
)

// Scenario is a self-contained planning input: network, schedule, orders
// and the hubs cargo leaves from.
type Scenario struct {
	Start    string        `yaml:"start" json:"start,omitempty"`
	Days     int           `yaml:"days" json:"days,omitempty"`
	Hubs     []string      `yaml:"hubs" json:"hubs,omitempty"`
	Airports []AirportSpec `yaml:"airports" json:"airports"`
	Flights  []string      `yaml:"flights" json:"flights"`
	Orders   []OrderSpec   `yaml:"orders" json:"orders"`
}

type AirportSpec struct {
	Code      string  `yaml:"code" json:"code"`
	Name      string  `yaml:"name" json:"name,omitempty"`
	City      string  `yaml:"city" json:"city,omitempty"`
	Country   string  `yaml:"country" json:"country,omitempty"`
	Continent string  `yaml:"continent" json:"continent"`
	GMT       float64 `yaml:"gmt" json:"gmt"`
	Capacity  int     `yaml:"capacity" json:"capacity"`
	Lat       float64 `yaml:"lat" json:"lat,omitempty"`
	Lng       float64 `yaml:"lng" json:"lng,omitempty"`
}

type OrderSpec struct {
	ID       string `yaml:"id" json:"id"`
	Client   string `yaml:"client" json:"client,omitempty"`
	Dest     string `yaml:"dest" json:"dest"`
	Ready    string `yaml:"ready" json:"ready"`
	Quantity int    `yaml:"qty" json:"qty"`
}

func LoadScenario(path string) (Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("ingest: open scenario: %w", err)
	}
	defer f.Close()
	return DecodeScenario(f)
}

func DecodeScenario(r io.Reader) (Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return Scenario{}, fmt.Errorf("ingest: decode scenario: %w", err)
	}
	return s, nil
}

func (a AirportSpec) Airport() network.Airport {
	return network.Airport{
		Code:           a.Code,
		Name:           a.Name,
		City:           a.City,
		Country:        a.Country,
		Continent:      a.Continent,
		UTCOffset:      time.Duration(a.GMT * float64(time.Hour)),
		GroundCapacity: a.Capacity,
		Lat:            a.Lat,
		Lng:            a.Lng,
	}
}

func (o OrderSpec) Order() (cargo.Order, error) {
	ready, err := ParseReady(o.Ready, time.UTC)
	if err != nil {
		return cargo.Order{}, fmt.Errorf("order %s: %w", o.ID, err)
	}
	if o.ID == "" || o.Dest == "" || o.Quantity <= 0 {
		return cargo.Order{}, fmt.Errorf("%w: order %q needs id, dest and a positive qty", ErrMalformed, o.ID)
	}
	return cargo.Order{ID: o.ID, ClientID: o.Client, Destination: o.Dest, ReadyAt: ready, Quantity: o.Quantity}, nil
}

// Resolve converts the scenario into planner inputs.
func (s Scenario) Resolve() ([]network.Airport, []network.FlightLeg, []cargo.Order, time.Time, error) {
	var start time.Time
	if s.Start != "" {
		t, err := time.Parse("2006-01-02", s.Start)
		if err != nil {
			return nil, nil, nil, time.Time{}, fmt.Errorf("%w: start %q", ErrMalformed, s.Start)
		}
		start = t
	}
	airports := make([]network.Airport, 0, len(s.Airports))
	for _, a := range s.Airports {
		airports = append(airports, a.Airport())
	}
	flights := make([]network.FlightLeg, 0, len(s.Flights))
	for i, line := range s.Flights {
		f, err := ParseFlight(line)
		if err != nil {
			return nil, nil, nil, time.Time{}, fmt.Errorf("flight %d: %w", i, err)
		}
		flights = append(flights, f)
	}
	orders := make([]cargo.Order, 0, len(s.Orders))
	for _, spec := range s.Orders {
		o, err := spec.Order()
		if err != nil {
			return nil, nil, nil, time.Time{}, err
		}
		orders = append(orders, o)
	}
	return airports, flights, orders, start, nil
}

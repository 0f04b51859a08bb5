// Package ingest reads airports, flight schedules and orders from the plain
// text layouts used by the operations team, and from YAML scenario files.
package ingest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cargoplan/internal/cargo"
	"cargoplan/internal/network"
)

var ErrMalformed = errors.New("ingest: malformed record")

var airportRow = regexp.MustCompile(`^(\d+)\s+(\w+)\s+(.+?)\s{2,}(.+?)\s+(\w+)\s+([+-]?\d+)\s+(\d+)\s+Latitude:\s+(.+?)\s+Longitude:\s+(.+)$`)

// ParseAirports reads the airport list. Rows are grouped under continent
// header lines such as "America del Sur.   GMT   CAPACIDAD".
func ParseAirports(r io.Reader) ([]network.Airport, error) {
	sc := bufio.NewScanner(r)
	var out []network.Airport
	continent := ""
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if s == "" {
			continue
		}
		if s[0] < '0' || s[0] > '9' {
			continent = cleanContinent(s)
			continue
		}
		m := airportRow.FindStringSubmatch(s)
		if m == nil {
			return nil, fmt.Errorf("%w: airports line %d: %q", ErrMalformed, line, s)
		}
		gmt, _ := strconv.Atoi(m[6])
		capacity, _ := strconv.Atoi(m[7])
		out = append(out, network.Airport{
			Code:           m[2],
			City:           strings.TrimSpace(m[3]),
			Country:        strings.TrimSpace(m[4]),
			Continent:      continent,
			UTCOffset:      time.Duration(gmt) * time.Hour,
			GroundCapacity: capacity,
			Lat:            parseCoord(m[8]),
			Lng:            parseCoord(m[9]),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ingest: read airports: %w", err)
	}
	return out, nil
}

var multiSpace = regexp.MustCompile(`\s{2,}`)

func cleanContinent(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "*", ""))
	if i := strings.Index(s, "GMT"); i > 0 {
		s = strings.TrimSpace(s[:i])
	}
	s = strings.TrimRight(s, ".")
	return strings.TrimSpace(multiSpace.ReplaceAllString(s, " "))
}

var dms = regexp.MustCompile(`(\d+)°\s*(\d+)'\s*(\d+(?:\.\d+)?)"?\s*([NSEWnsew])`)

// parseCoord accepts decimal degrees or 12° 01' 19" S. Unreadable values are 0.
func parseCoord(s string) float64 {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	m := dms.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	d, _ := strconv.ParseFloat(m[1], 64)
	mi, _ := strconv.ParseFloat(m[2], 64)
	se, _ := strconv.ParseFloat(m[3], 64)
	v := d + mi/60 + se/3600
	if strings.ContainsAny(m[4], "SWsw") {
		v = -v
	}
	return v
}

// ParseFlights reads one ORIG-DEST-HH:MM-HH:MM-CAP leg per line.
func ParseFlights(r io.Reader) ([]network.FlightLeg, error) {
	sc := bufio.NewScanner(r)
	var out []network.FlightLeg
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		f, err := ParseFlight(s)
		if err != nil {
			return nil, fmt.Errorf("flights line %d: %w", line, err)
		}
		out = append(out, f)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ingest: read flights: %w", err)
	}
	return out, nil
}

func ParseFlight(s string) (network.FlightLeg, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 5 {
		return network.FlightLeg{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	dep, err1 := network.ParseClock(parts[2])
	arr, err2 := network.ParseClock(parts[3])
	capacity, err3 := strconv.Atoi(strings.TrimSpace(parts[4]))
	if err := errors.Join(err1, err2, err3); err != nil {
		return network.FlightLeg{}, fmt.Errorf("%w: %q: %v", ErrMalformed, s, err)
	}
	return network.FlightLeg{Origin: parts[0], Destination: parts[1], Departure: dep, Arrival: arr, Capacity: capacity}, nil
}

var readyLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05"}

// ParseReady reads an order timestamp. Values without a zone are in loc.
func ParseReady(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	for _, layout := range readyLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrMalformed, s)
}

// ParseOrders reads id,client,destination,ready,quantity rows.
func ParseOrders(r io.Reader, loc *time.Location) ([]cargo.Order, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 5
	cr.TrimLeadingSpace = true
	var out []cargo.Order
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: orders: %v", ErrMalformed, err)
		}
		line, _ := cr.FieldPos(0)
		ready, err := ParseReady(rec[3], loc)
		if err != nil {
			return nil, fmt.Errorf("orders line %d: %w", line, err)
		}
		qty, err := strconv.Atoi(strings.TrimSpace(rec[4]))
		if err != nil || qty <= 0 {
			return nil, fmt.Errorf("%w: orders line %d: quantity %q", ErrMalformed, line, rec[4])
		}
		out = append(out, cargo.Order{ID: strings.TrimSpace(rec[0]), ClientID: strings.TrimSpace(rec[1]), Destination: strings.TrimSpace(rec[2]), ReadyAt: ready, Quantity: qty})
	}
	return out, nil
}

// WriteOrders writes orders in the layout ParseOrders reads.
func WriteOrders(w io.Writer, orders []cargo.Order) error {
	cw := csv.NewWriter(w)
	for _, o := range orders {
		rec := []string{o.ID, o.ClientID, o.Destination, o.ReadyAt.UTC().Format("2006-01-02T15:04:05"), strconv.Itoa(o.Quantity)}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("ingest: write orders: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

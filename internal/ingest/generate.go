package ingest

import (
	"math/rand"
	"strconv"
	"time"

	"cargoplan/internal/cargo"
)

// DefaultDestinations are the ICAO codes synthetic orders are spread over.
var DefaultDestinations = []string{
	"SKBO", "SEQM", "SVMI", "SBBR", "SPIM", "SLLP", "SCEL", "SABE", "SGAS", "SUAA",
	"LATI", "EDDI", "LOWW", "EBCI", "UMMS", "LBSF", "LKPR", "LDZA", "EKCH", "EHAM",
	"VIDP", "OSDI", "OERK", "OMDB", "OAKB", "OOMS", "OYSN", "OPKC", "UBBB", "OJAI",
}

// GenerateOrders makes n synthetic orders: clients 100-149, ready within 72h
// of start, quantity 10-159.
func GenerateOrders(rng *rand.Rand, n int, dests []string, start time.Time) []cargo.Order {
	if len(dests) == 0 {
		dests = DefaultDestinations
	}
	out := make([]cargo.Order, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, cargo.Order{
			ID:          strconv.Itoa(i),
			ClientID:    strconv.Itoa(100 + rng.Intn(50)),
			Destination: dests[rng.Intn(len(dests))],
			ReadyAt:     start.UTC().Add(time.Duration(rng.Intn(72)) * time.Hour).Truncate(time.Second),
			Quantity:    10 + rng.Intn(150),
		})
	}
	return out
}

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"cargoplan/internal/buildinfo"
)

// run executes the root command with fresh flag state and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

const scenarioYAML = `start: "2025-09-07"
days: 2
hubs: [SPIM]
airports:
  - {code: SPIM, continent: America del Sur, gmt: -5, capacity: 400}
  - {code: SKBO, continent: America del Sur, gmt: -5, capacity: 300}
  - {code: EHAM, continent: Europa, gmt: 2, capacity: 300}
flights:
  - SPIM-SKBO-06:00-09:00-40
orders:
  - {id: a1, client: "100", dest: SKBO, ready: "2025-09-07T01:00:00", qty: 12}
  - {id: a2, client: "101", dest: EHAM, ready: "2025-09-07T02:00:00", qty: 5}
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestPlanScenarioJSON(t *testing.T) {
	path := writeFile(t, "scenario.yaml", scenarioYAML)
	out, err := run(t, "plan", "--scenario", path, "--seed", "3", "--json")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	var got struct {
		Summary struct {
			TotalOrders int      `json:"totalOrders"`
			Assigned    int      `json:"assigned"`
			Unassigned  []string `json:"unassigned"`
		} `json:"summary"`
		Assignments []struct {
			OrderID  string `json:"orderId"`
			Assigned bool   `json:"assigned"`
		} `json:"assignments"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if got.Summary.TotalOrders != 2 || got.Summary.Assigned != 1 {
		t.Fatalf("unexpected summary %+v", got.Summary)
	}
	if len(got.Summary.Unassigned) != 1 || got.Summary.Unassigned[0] != "a2" {
		t.Fatalf("EHAM order should be unassigned: %+v", got.Summary.Unassigned)
	}
	if len(got.Assignments) != 2 {
		t.Fatalf("assignments: %+v", got.Assignments)
	}
}

const airportsTxt = `America del Sur.   GMT   CAPACIDAD
01   SPIM   Lima                Peru            lima    -5     440     Latitude: 12° 01' 19" S   Longitude: 77° 06' 52" W
02   SKBO   Bogota              Colombia        bogo    -5     430     Latitude: 04° 42' 05" N   Longitude: 74° 08' 49" W
`

func TestGenerateThenPlanFromFiles(t *testing.T) {
	dir := t.TempDir()
	orders := filepath.Join(dir, "orders.csv")
	if _, err := run(t, "generate-orders", "--count", "4", "--seed", "9", "--start", "2025-09-07", "--dest", "SKBO", "--out", orders); err != nil {
		t.Fatalf("generate: %v", err)
	}
	data, err := os.ReadFile(orders)
	if err != nil {
		t.Fatalf("read orders: %v", err)
	}
	if n := strings.Count(string(data), "\n"); n != 4 {
		t.Fatalf("expected 4 rows, got %d:\n%s", n, data)
	}

	airports := writeFile(t, "airports.txt", airportsTxt)
	flights := writeFile(t, "flights.txt", "SPIM-SKBO-06:00-09:00-1000\n")
	out, err := run(t, "plan", "--airports", airports, "--flights", flights, "--orders", orders, "--hubs", "SPIM", "--k", "2", "--seed", "1")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !strings.Contains(out, "Orders:     4 (4 assigned") {
		t.Fatalf("summary missing from output:\n%s", out)
	}
	if !strings.Contains(out, "ORDER") || !strings.Contains(out, "SPIM") {
		t.Fatalf("assignment table missing:\n%s", out)
	}
}

func TestPlanNeedsInput(t *testing.T) {
	if _, err := run(t, "plan"); err == nil {
		t.Fatalf("plan without inputs should fail")
	}
	if _, err := run(t, "plan", "--airports", "a.txt"); err == nil {
		t.Fatalf("--airports alone should fail")
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out) != buildinfo.String() {
		t.Fatalf("version output %q", out)
	}
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"cargoplan/internal/cargo"
	"cargoplan/internal/config"
	"cargoplan/internal/ingest"
	"cargoplan/internal/model"
	"cargoplan/internal/network"
	"cargoplan/internal/planner"
)

var planFlags struct {
	airports, flights, orders string
	scenario, configFile      string
	hubs                      []string
	days, k                   int
	seed                      int64
	budget                    time.Duration
	waitCapacity              string
	diagnostics               bool
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Assign orders to routes and print the plan",
	Example: `  cargoplan plan --airports aeropuertos.txt --flights vuelos.txt --orders pedidos.csv --hubs SPIM,EBCI,UBBB
  cargoplan plan --scenario scenario.yaml --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, cfg, err := loadPlanInput(cmd)
		if err != nil {
			return err
		}
		res, err := planner.Run(cmd.Context(), in, cfg)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writePlanJSON(cmd.OutOrStdout(), res)
		}
		return writePlanText(cmd.OutOrStdout(), res)
	},
}

func init() {
	f := planCmd.Flags()
	f.StringVar(&planFlags.airports, "airports", "", "airport list file")
	f.StringVar(&planFlags.flights, "flights", "", "flight schedule file (ORIG-DEST-HH:MM-HH:MM-CAP per line)")
	f.StringVar(&planFlags.orders, "orders", "", "orders CSV (id,client,dest,ready,qty)")
	f.StringVar(&planFlags.scenario, "scenario", "", "YAML scenario with airports, flights and orders")
	f.StringVar(&planFlags.configFile, "config", os.Getenv("CARGOPLAN_CONFIG"), "planner tuning TOML file")
	f.StringSliceVar(&planFlags.hubs, "hubs", nil, "origin hubs (default: every airport with departures)")
	f.IntVar(&planFlags.days, "days", 0, "schedule days to expand (default: derived from order deadlines)")
	f.IntVar(&planFlags.k, "k", 0, "candidate routes per order")
	f.Int64Var(&planFlags.seed, "seed", 0, "random seed (0 picks one)")
	f.DurationVar(&planFlags.budget, "budget", 0, "optimizer time budget (0 means generations only)")
	f.StringVar(&planFlags.waitCapacity, "wait-capacity", "", "ground wait capacity: ground, unlimited or a number")
	f.BoolVar(&planFlags.diagnostics, "diagnostics", false, "include per-arc diagnostics in JSON output")
	planCmd.MarkFlagsMutuallyExclusive("scenario", "airports")
	planCmd.MarkFlagsMutuallyExclusive("scenario", "flights")
	planCmd.MarkFlagsMutuallyExclusive("scenario", "orders")
	planCmd.MarkFlagsRequiredTogether("airports", "flights", "orders")
}

func loadPlanInput(cmd *cobra.Command) (planner.Input, planner.Config, error) {
	var in planner.Input
	cfg := planner.DefaultConfig()
	if planFlags.configFile != "" {
		f, err := config.ReadPlannerFile(planFlags.configFile)
		if err != nil {
			return in, cfg, err
		}
		if cfg, err = f.Apply(cfg); err != nil {
			return in, cfg, err
		}
	}
	switch {
	case planFlags.scenario != "":
		sc, err := ingest.LoadScenario(planFlags.scenario)
		if err != nil {
			return in, cfg, err
		}
		var start time.Time
		in.Airports, in.Flights, in.Orders, start, err = sc.Resolve()
		if err != nil {
			return in, cfg, err
		}
		cfg.Start = start
		if len(sc.Hubs) > 0 {
			cfg.Hubs = sc.Hubs
		}
		if sc.Days > 0 {
			cfg.Days = sc.Days
		}
	case planFlags.airports != "":
		var err error
		if in.Airports, err = readWith(planFlags.airports, ingest.ParseAirports); err != nil {
			return in, cfg, err
		}
		if in.Flights, err = readWith(planFlags.flights, ingest.ParseFlights); err != nil {
			return in, cfg, err
		}
		parseOrders := func(r io.Reader) ([]cargo.Order, error) { return ingest.ParseOrders(r, time.UTC) }
		if in.Orders, err = readWith(planFlags.orders, parseOrders); err != nil {
			return in, cfg, err
		}
	default:
		return in, cfg, errors.New("either --scenario or --airports, --flights and --orders is required")
	}

	fl := cmd.Flags()
	if fl.Changed("hubs") {
		cfg.Hubs = planFlags.hubs
	}
	if planFlags.days > 0 {
		cfg.Days = planFlags.days
	}
	if planFlags.k > 0 {
		cfg.Candidates = planFlags.k
	}
	if planFlags.seed != 0 {
		cfg.Seed = planFlags.seed
	}
	if planFlags.budget > 0 {
		cfg.TimeBudget = planFlags.budget
	}
	if planFlags.waitCapacity != "" {
		wc, err := network.ParseWaitCapacity(planFlags.waitCapacity)
		if err != nil {
			return in, cfg, err
		}
		cfg.WaitCapacity = wc
	}
	cfg.Diagnostics = cfg.Diagnostics || planFlags.diagnostics
	return in, cfg, nil
}

func readWith[T any](path string, parse func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	out, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

func writePlanJSON(w io.Writer, res *planner.Result) error {
	p := model.NewPlan("", "", res, time.Now())
	out := map[string]any{
		"hubs":        p.Hubs,
		"summary":     p.Summary,
		"metrics":     p.Metrics,
		"assignments": p.Assignments,
		"checks":      p.Checks,
	}
	if res.Diagnostics != nil {
		out["diagnostics"] = res.Diagnostics
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writePlanText(w io.Writer, res *planner.Result) error {
	s := res.Summary
	fmt.Fprintf(w, "Orders:     %d (%d assigned, %.1f%%)\n", s.TotalOrders, s.Assigned, s.AssignedPct)
	fmt.Fprintf(w, "Quantity:   %d of %d\n", s.AssignedQuantity, s.TotalQuantity)
	fmt.Fprintf(w, "Transit:    %.1f h avg, %.2f hops avg\n", s.AvgTransitHours, s.AvgHops)
	fmt.Fprintf(w, "Network:    %d nodes, %d flight arcs, %d wait arcs\n", s.Network.Nodes, s.Network.FlightArcs, s.Network.WaitArcs)
	fmt.Fprintf(w, "Optimizer:  %d generations, best %.2f (%s)\n\n", res.Metrics.Generations, res.Metrics.BestScore, res.Metrics.StopReason)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tDEST\tQTY\tORIGIN\tDEPARTS\tARRIVES\tHOPS")
	for _, a := range res.Solution.Assignments {
		if !a.Assigned() {
			fmt.Fprintf(tw, "%s\t%s\t%d\t-\t-\t-\t-\n", a.Order.ID, a.Order.Destination, a.Order.Quantity)
			continue
		}
		r := a.Route
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%d\n", a.Order.ID, a.Order.Destination, a.Order.Quantity, r.Origin,
			r.Departure.Format("2006-01-02 15:04"), r.Arrival.Format("2006-01-02 15:04"), r.Hops)
	}
	return tw.Flush()
}

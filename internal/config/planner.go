package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"cargoplan/internal/network"
	"cargoplan/internal/opt"
	"cargoplan/internal/planner"
)

// PlannerFile is the TOML layout of the planner tuning file:
//
//	hubs = ["SPIM", "EBCI"]
//	candidates = 5
//	wait_capacity = "ground"
//	time_budget = "30s"
//
//	[sla]
//	intra_hours = 48
//
//	[optimizer]
//	population_size = 100
type PlannerFile struct {
	Hubs         []string   `toml:"hubs"`
	Days         int        `toml:"days"`
	Candidates   int        `toml:"candidates"`
	WaitCapacity string     `toml:"wait_capacity"`
	Seed         int64      `toml:"seed"`
	TimeBudget   string     `toml:"time_budget"`
	Diagnostics  bool       `toml:"diagnostics"`
	SLA          SLAFile    `toml:"sla"`
	Search       SearchFile `toml:"search"`
	Optimizer    opt.Params `toml:"optimizer"`
}

type SLAFile struct {
	IntraHours  float64  `toml:"intra_hours"`
	InterHours  float64  `toml:"inter_hours"`
	PickupHours *float64 `toml:"pickup_hours"`
}

type SearchFile struct {
	MaxHops    int    `toml:"max_hops"`
	MaxLabels  int    `toml:"max_labels"`
	MinLayover string `toml:"min_layover"`
}

// ReadPlannerFile decodes path and rejects keys it does not know.
func ReadPlannerFile(path string) (PlannerFile, error) {
	var f PlannerFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return PlannerFile{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return PlannerFile{}, fmt.Errorf("config: %s: unknown key %q", path, undec[0].String())
	}
	return f, nil
}

// Apply overlays the non-zero settings of f onto cfg.
func (f PlannerFile) Apply(cfg planner.Config) (planner.Config, error) {
	if len(f.Hubs) > 0 {
		cfg.Hubs = f.Hubs
	}
	if f.Days > 0 {
		cfg.Days = f.Days
	}
	if f.Candidates > 0 {
		cfg.Candidates = f.Candidates
	}
	if f.WaitCapacity != "" {
		wc, err := network.ParseWaitCapacity(f.WaitCapacity)
		if err != nil {
			return cfg, err
		}
		cfg.WaitCapacity = wc
	}
	if f.Seed != 0 {
		cfg.Seed = f.Seed
	}
	if f.TimeBudget != "" {
		d, err := time.ParseDuration(f.TimeBudget)
		if err != nil {
			return cfg, fmt.Errorf("config: time_budget: %w", err)
		}
		cfg.TimeBudget = d
	}
	cfg.Diagnostics = cfg.Diagnostics || f.Diagnostics
	if f.SLA.IntraHours > 0 {
		cfg.SLA.Intra = hours(f.SLA.IntraHours)
	}
	if f.SLA.InterHours > 0 {
		cfg.SLA.Inter = hours(f.SLA.InterHours)
	}
	if f.SLA.PickupHours != nil {
		cfg.SLA.Pickup = hours(*f.SLA.PickupHours)
	}
	if f.Search.MaxHops > 0 {
		cfg.Search.MaxHops = f.Search.MaxHops
	}
	if f.Search.MaxLabels > 0 {
		cfg.Search.MaxLabels = f.Search.MaxLabels
	}
	if f.Search.MinLayover != "" {
		d, err := time.ParseDuration(f.Search.MinLayover)
		if err != nil {
			return cfg, fmt.Errorf("config: min_layover: %w", err)
		}
		cfg.Search.MinLayover = d
	}
	cfg.Optimizer = cfg.Optimizer.Overlay(f.Optimizer)
	return cfg, nil
}

// Planner builds the planner configuration from the environment and, when
// CARGOPLAN_CONFIG is set, the tuning file.
func (c *Config) Planner() (planner.Config, error) {
	cfg := planner.DefaultConfig()
	cfg.Hubs = c.PlanHubs
	cfg.TimeBudget = c.PlanTimeBudget
	if c.PlannerFile == "" {
		return cfg, nil
	}
	f, err := ReadPlannerFile(c.PlannerFile)
	if err != nil {
		return cfg, err
	}
	return f.Apply(cfg)
}

func hours(h float64) time.Duration { return time.Duration(h * float64(time.Hour)) }

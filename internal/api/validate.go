package api

import (
	"fmt"

	"cargoplan/internal/model"
	"cargoplan/internal/network"
)

func validatePlanRequest(req *model.PlanRequest) error {
	if len(req.Airports) == 0 {
		return fmt.Errorf("airports must not be empty")
	}
	if len(req.Flights) == 0 {
		return fmt.Errorf("flights must not be empty")
	}
	if len(req.Orders) == 0 {
		return fmt.Errorf("orders must not be empty")
	}
	seen := make(map[string]struct{}, len(req.Orders))
	for _, o := range req.Orders {
		if o.ID == "" {
			return fmt.Errorf("order id must not be empty")
		}
		if _, dup := seen[o.ID]; dup {
			return fmt.Errorf("duplicate order id %s", o.ID)
		}
		seen[o.ID] = struct{}{}
		if o.Quantity <= 0 {
			return fmt.Errorf("order %s: qty must be > 0", o.ID)
		}
	}
	if req.Candidates < 0 {
		return fmt.Errorf("candidates must be >= 0")
	}
	if req.TimeBudgetMs < 0 {
		return fmt.Errorf("timeBudgetMs must be >= 0")
	}
	if req.Days < 0 {
		return fmt.Errorf("days must be >= 0")
	}
	if req.WaitCapacity != "" {
		if _, err := network.ParseWaitCapacity(req.WaitCapacity); err != nil {
			return fmt.Errorf("waitCapacity: %v", err)
		}
	}
	if p := req.Optimizer; p != nil {
		if p.CrossoverRate < 0 || p.CrossoverRate > 1 || p.MutationRate < 0 || p.MutationRate > 1 {
			return fmt.Errorf("optimizer rates must be in [0,1]")
		}
		if p.PopulationSize < 0 || p.Generations < 0 || p.TournamentSize < 0 {
			return fmt.Errorf("optimizer sizes must be >= 0")
		}
	}
	return nil
}

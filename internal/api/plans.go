package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"cargoplan/internal/archive"
	"cargoplan/internal/events"
	"cargoplan/internal/idgen"
	"cargoplan/internal/metrics"
	"cargoplan/internal/model"
	"cargoplan/internal/network"
	"cargoplan/internal/obs"
	"cargoplan/internal/opt"
	"cargoplan/internal/planner"
	"cargoplan/internal/webhooks"
)

// Plan event types seen on the broker, SSE and WebSocket streams.
const (
	EventPlanStarted   = "plan.started"
	EventPlanCommitted = "plan.committed"
	EventPlanFailed    = "plan.failed"
)

// tenantOverrides is the tenant optimizer config stored by the admin endpoint.
type tenantOverrides struct {
	opt.Params
	Candidates   int      `json:"candidates,omitempty"`
	TimeBudgetMs int      `json:"timeBudgetMs,omitempty"`
	Hubs         []string `json:"hubs,omitempty"`
}

func decodeOverrides(m map[string]any) (tenantOverrides, error) {
	var o tenantOverrides
	if len(m) == 0 {
		return o, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return o, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&o); err != nil {
		return o, fmt.Errorf("optimizer config: %w", err)
	}
	return o, nil
}

// plannerConfig layers server defaults, tenant overrides and the request.
func (s *Server) plannerConfig(ctx context.Context, tenant string, req *model.PlanRequest) (planner.Config, error) {
	cfg := s.Planner
	stored, err := s.Store.GetOptimizerConfig(ctx, tenant)
	if err != nil {
		return cfg, err
	}
	o, err := decodeOverrides(stored)
	if err != nil {
		return cfg, err
	}
	cfg.Optimizer = cfg.Optimizer.Overlay(o.Params)
	if o.Candidates > 0 {
		cfg.Candidates = o.Candidates
	}
	if o.TimeBudgetMs > 0 {
		cfg.TimeBudget = time.Duration(o.TimeBudgetMs) * time.Millisecond
	}
	if len(o.Hubs) > 0 {
		cfg.Hubs = o.Hubs
	}

	if len(req.Hubs) > 0 {
		cfg.Hubs = req.Hubs
	}
	if req.Days > 0 {
		cfg.Days = req.Days
	}
	if req.Candidates > 0 {
		cfg.Candidates = req.Candidates
	}
	if req.TimeBudgetMs > 0 {
		cfg.TimeBudget = time.Duration(req.TimeBudgetMs) * time.Millisecond
	}
	if req.Seed != 0 {
		cfg.Seed = req.Seed
	}
	if req.WaitCapacity != "" {
		wc, err := network.ParseWaitCapacity(req.WaitCapacity)
		if err != nil {
			return cfg, err
		}
		cfg.WaitCapacity = wc
	}
	if req.Optimizer != nil {
		cfg.Optimizer = cfg.Optimizer.Overlay(*req.Optimizer)
	}
	cfg.Diagnostics = cfg.Diagnostics || req.Diagnostics
	return cfg, nil
}

// PlansHandler handles POST/GET /v1/plans
func (s *Server) PlansHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		p, ok := s.authorize(w, r, Principal.CanPlan, "planner or admin")
		if !ok {
			return
		}
		var req model.PlanRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validatePlanRequest(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid plan request", err.Error(), r.URL.Path)
			return
		}
		req.TenantID = p.Tenant
		planID, err := idgen.Plan()
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Plan id failed", err.Error(), r.URL.Path)
			return
		}
		if async := r.URL.Query().Get("async"); async == "true" || async == "1" {
			running := model.Plan{ID: planID, TenantID: p.Tenant, Status: model.PlanRunning, CreatedAt: time.Now().UTC(), Reserved: map[string]int{}}
			if err := s.Store.SavePlan(r.Context(), running); err != nil {
				writeProblem(w, http.StatusInternalServerError, "Save plan failed", err.Error(), r.URL.Path)
				return
			}
			go func() {
				if _, err := s.runPlan(context.Background(), planID, &req, true); err != nil {
					log.Printf("plan %s: %v", planID, err)
				}
			}()
			w.Header().Set("Location", "/v1/plans/"+planID)
			writeJSON(w, http.StatusAccepted, map[string]string{"planId": planID, "status": "running"})
			return
		}
		plan, err := s.runPlan(r.Context(), planID, &req, false)
		if err != nil {
			writeProblem(w, statusFor(err), "Planning failed", err.Error(), r.URL.Path)
			return
		}
		w.Header().Set("Location", "/v1/plans/"+plan.ID)
		writeJSON(w, http.StatusCreated, plan)
	case http.MethodGet:
		p, ok := s.authorize(w, r, nil, "")
		if !ok {
			return
		}
		items, next, err := s.Store.ListPlans(r.Context(), p.Tenant, r.URL.Query().Get("cursor"), queryLimit(r))
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List plans failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// runPlan plans, persists and announces one request under the tenant lock.
// A background run also records its failure so GET /v1/plans/{id} can report it.
func (s *Server) runPlan(ctx context.Context, planID string, req *model.PlanRequest, background bool) (plan model.Plan, err error) {
	ctx = obs.WithRequestID(ctx, planID)
	defer obs.Time(ctx, "api.plan")(&err)
	tenant := req.TenantID
	start := time.Now()
	outcome := "error"
	var res *planner.Result
	defer func() {
		var assigned, unassigned, gens int
		var stop string
		if res != nil {
			assigned, unassigned = res.Summary.Assigned, len(res.Summary.Unassigned)
			gens, stop = res.Metrics.Generations, res.Metrics.StopReason
		}
		metrics.ObservePlan(outcome, time.Since(start).Seconds(), assigned, unassigned, gens, stop)
		if err != nil {
			if background {
				failed := model.Plan{ID: planID, TenantID: tenant, Status: model.PlanFailed, CreatedAt: start.UTC(), Error: err.Error(), Reserved: map[string]int{}}
				if serr := s.Store.SavePlan(context.WithoutCancel(ctx), failed); serr != nil {
					log.Printf("plan %s: save failure: %v", planID, serr)
				}
			}
			s.announce(tenant, planID, EventPlanFailed, map[string]any{"planId": planID, "error": err.Error()})
			if perr := s.Events.Publish(ctx, events.TopicPlanFailed, events.PlanFailed{Tenant: tenant, Error: err.Error()}); perr != nil {
				log.Printf("plan %s: publish failure event: %v", planID, perr)
			}
		}
	}()

	airports, flights, orders, day0, err := req.Scenario.Resolve()
	if err != nil {
		outcome = "invalid"
		return plan, err
	}
	cfg, err := s.plannerConfig(ctx, tenant, req)
	if err != nil {
		outcome = "invalid"
		return plan, err
	}
	cfg.Start = day0

	unlock := s.lockTenant(tenant)
	defer unlock()
	in := planner.Input{Airports: airports, Flights: flights, Orders: orders}
	if !req.FreshLedger {
		if in.Ledger, err = s.Store.TenantLedger(ctx, tenant); err != nil {
			return plan, err
		}
	}
	s.announce(tenant, planID, EventPlanStarted, map[string]any{"planId": planID, "orders": len(orders)})
	res, err = planner.Run(ctx, in, cfg)
	if err != nil {
		if errors.Is(err, opt.ErrNoFeasibleAssignment) {
			outcome = "infeasible"
		}
		return plan, err
	}
	plan = model.NewPlan(planID, tenant, res, time.Now())
	if err := s.Store.SavePlan(ctx, plan); err != nil {
		return plan, fmt.Errorf("save plan: %w", err)
	}
	if err := s.Store.SavePlanMetrics(ctx, tenant, planID, res.Metrics); err != nil {
		log.Printf("plan %s: save metrics: %v", planID, err)
	}
	opt.RecordMetrics(tenant, planID, res.Metrics)
	outcome = "committed"
	s.afterCommit(ctx, plan)
	return plan, nil
}

// afterCommit fans a committed plan out to streams, NATS, webhooks and the archive.
// Failures here are logged; the plan is already durable.
func (s *Server) afterCommit(ctx context.Context, plan model.Plan) {
	data := map[string]any{
		"planId":   plan.ID,
		"orders":   plan.Summary.TotalOrders,
		"assigned": plan.Summary.Assigned,
		"score":    plan.Metrics.BestScore,
	}
	s.announce(plan.TenantID, plan.ID, EventPlanCommitted, data)
	evt := events.PlanCommitted{
		PlanID:      plan.ID,
		Tenant:      plan.TenantID,
		Orders:      plan.Summary.TotalOrders,
		Assigned:    plan.Summary.Assigned,
		Quantity:    plan.Summary.AssignedQuantity,
		Score:       plan.Metrics.BestScore,
		StopReason:  plan.Metrics.StopReason,
		CommittedAt: plan.CreatedAt,
	}
	if err := s.Events.Publish(ctx, events.TopicPlanCommitted, evt); err != nil {
		log.Printf("plan %s: publish: %v", plan.ID, err)
	}
	if _, err := s.Pub.Emit(ctx, plan.TenantID, webhooks.EventPlanCommitted, evt); err != nil {
		log.Printf("plan %s: webhooks: %v", plan.ID, err)
	}
	doc, err := json.Marshal(plan)
	if err == nil {
		err = s.Archive.Put(ctx, archive.PlanKey(plan.TenantID, plan.ID), doc)
	}
	if err != nil {
		log.Printf("plan %s: archive: %v", plan.ID, err)
	}
}

// finishedEvent is the terminal event of a stored plan; done is false while
// the plan is still running.
func finishedEvent(plan model.Plan) (SSEEvent, bool) {
	switch plan.Status {
	case model.PlanCommitted:
		return SSEEvent{Type: EventPlanCommitted, Data: map[string]any{"planId": plan.ID, "orders": plan.Summary.TotalOrders, "assigned": plan.Summary.Assigned, "score": plan.Metrics.BestScore}}, true
	case model.PlanFailed:
		return SSEEvent{Type: EventPlanFailed, Data: map[string]any{"planId": plan.ID, "error": plan.Error}}, true
	}
	return SSEEvent{}, false
}

func (s *Server) announce(tenant, planID, typ string, data map[string]any) {
	evt := SSEEvent{Type: typ, Data: data}
	s.Broker.Publish(planID, evt)
	s.Broker.Publish(TenantTopic(tenant), evt)
}

// PlanByIDHandler handles GET /v1/plans/{id}, /v1/plans/{id}/ledger and /v1/plans/{id}/events/stream
func (s *Server) PlanByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/plans/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, ok := s.authorize(w, r, nil, "")
	if !ok {
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	switch {
	case len(parts) == 1:
		plan, err := s.Store.GetPlan(r.Context(), p.Tenant, id)
		if err != nil {
			writeProblem(w, statusFor(err), "Plan not found", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, plan)
	case len(parts) == 2 && parts[1] == "ledger":
		plan, err := s.Store.GetPlan(r.Context(), p.Tenant, id)
		if err != nil {
			writeProblem(w, statusFor(err), "Plan not found", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"planId": plan.ID, "reserved": plan.Reserved, "arcs": plan.Summary.ArcUtilization})
	case len(parts) == 3 && parts[1] == "events" && parts[2] == "stream":
		s.streamPlanEvents(w, r, p.Tenant, id)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	}
}

// PlanEventsHandler handles GET /v1/plans/events/stream: every plan event of the tenant.
func (s *Server) PlanEventsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, ok := s.authorize(w, r, nil, "")
	if !ok {
		return
	}
	s.streamPlanEvents(w, r, p.Tenant, "")
}

// streamPlanEvents writes SSE until the client goes away. A plan that is
// already committed is replayed as the first event.
func (s *Server) streamPlanEvents(w http.ResponseWriter, r *http.Request, tenant, planID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	topic := planID
	if topic == "" {
		topic = TenantTopic(tenant)
	}
	ch := s.Broker.Subscribe(topic)
	defer s.Broker.Unsubscribe(topic, ch)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	send := func(typ string, data any) {
		b, _ := json.Marshal(data)
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", typ, b)
		flusher.Flush()
	}
	if planID != "" {
		if plan, err := s.Store.GetPlan(r.Context(), tenant, planID); err == nil {
			if evt, done := finishedEvent(plan); done {
				send(evt.Type, evt.Data)
			}
		}
	}
	send("heartbeat", map[string]string{"planId": planID, "ts": time.Now().UTC().Format(time.RFC3339)})
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			send(evt.Type, evt.Data)
		case <-heartbeat.C:
			send("heartbeat", map[string]string{"planId": planID, "ts": time.Now().UTC().Format(time.RFC3339)})
		}
	}
}

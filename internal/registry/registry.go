// Package registry holds the engine's agents, indexed by id and by
// capability. The set of agents is fixed at construction; only status
// changes at runtime. Reconfiguration is a full rebuild.
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/ident"
	"github.com/maestro-ai/maestro/internal/logging"
)

// record pairs an immutable agent definition with its mutable status cell.
type record struct {
	agent  core.Agent // Status field unused; status lives below
	mu     sync.RWMutex
	status core.AgentStatus
}

// Registry is a thread-safe agent directory.
type Registry struct {
	byID         map[ident.AgentID]*record
	byCapability map[core.Capability][]ident.AgentID
	order        []ident.AgentID // construction order, for stable iteration
	logger       *logging.Logger
}

// New builds a registry from the given agents. Duplicate ids keep the first
// definition.
func New(agents []core.Agent, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Registry{
		byID:         make(map[ident.AgentID]*record, len(agents)),
		byCapability: make(map[core.Capability][]ident.AgentID),
		logger:       logger.WithComponent("registry"),
	}
	for _, a := range agents {
		if _, dup := r.byID[a.ID]; dup {
			r.logger.Warn("duplicate agent id ignored", "agent_id", string(a.ID))
			continue
		}
		status := a.Status
		if status == "" {
			status = core.AgentStatusOnline
		}
		rec := &record{agent: a, status: status}
		r.byID[a.ID] = rec
		r.order = append(r.order, a.ID)
		for _, cap := range a.Capabilities {
			r.byCapability[cap] = append(r.byCapability[cap], a.ID)
		}
	}
	return r
}

// Get returns a snapshot of the agent, including its current status.
func (r *Registry) Get(id ident.AgentID) (*core.Agent, bool) {
	rec, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return rec.snapshot(), true
}

// All returns snapshots of every agent in construction order.
func (r *Registry) All() []*core.Agent {
	out := make([]*core.Agent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].snapshot())
	}
	return out
}

// IDs returns all agent ids in construction order.
func (r *Registry) IDs() []ident.AgentID {
	out := make([]ident.AgentID, len(r.order))
	copy(out, r.order)
	return out
}

// ByCapability returns snapshots of the agents advertising cap, sorted by
// id for determinism.
func (r *Registry) ByCapability(cap core.Capability) []*core.Agent {
	ids := r.byCapability[cap]
	out := make([]*core.Agent, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.byID[id].snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetStatus atomically replaces an agent's status. Unknown ids are ignored.
func (r *Registry) SetStatus(id ident.AgentID, status core.AgentStatus) {
	rec, ok := r.byID[id]
	if !ok {
		return
	}
	rec.mu.Lock()
	rec.status = status
	rec.mu.Unlock()
}

// Status returns the agent's current status, offline for unknown ids.
func (r *Registry) Status(id ident.AgentID) core.AgentStatus {
	rec, ok := r.byID[id]
	if !ok {
		return core.AgentStatusOffline
	}
	rec.mu.RLock()
	defer rec.mu.RUnlock()
	return rec.status
}

// RunHealthChecks probes every agent over a stable snapshot of the roster.
// A checker error collapses the agent to offline.
func (r *Registry) RunHealthChecks(ctx context.Context, checker core.HealthChecker) {
	for _, id := range r.IDs() {
		rec := r.byID[id]
		agent := rec.snapshot()
		status, err := checker.Check(ctx, agent)
		if err != nil {
			r.logger.Warn("health check failed", "agent_id", string(id), "error", err)
			status = core.AgentStatusOffline
		}
		r.SetStatus(id, status)
	}
}

func (rec *record) snapshot() *core.Agent {
	rec.mu.RLock()
	status := rec.status
	rec.mu.RUnlock()

	a := rec.agent // copy
	a.Status = status
	caps := make([]core.Capability, len(rec.agent.Capabilities))
	copy(caps, rec.agent.Capabilities)
	a.Capabilities = caps
	return &a
}

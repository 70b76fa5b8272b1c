package routing

import (
	"sort"

	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/ident"
	"github.com/maestro-ai/maestro/internal/logging"
	"github.com/maestro-ai/maestro/internal/registry"
)

// SuccessRates exposes per-agent historical success rates for tie
// breaking. The second return is false when no history exists.
type SuccessRates interface {
	SuccessRate(agentID ident.AgentID) (float64, bool)
}

// Selector assigns agents to a routed task.
type Selector struct {
	registry *registry.Registry
	rates    SuccessRates // may be nil
	defaultK int
	logger   *logging.Logger
}

// NewSelector builds an agent selector. k below 2 falls back to 3.
func NewSelector(reg *registry.Registry, rates SuccessRates, k int, logger *logging.Logger) *Selector {
	if k < 2 {
		k = 3
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Selector{registry: reg, rates: rates, defaultK: k, logger: logger.WithComponent("selector")}
}

// Select resolves the participants for a task under the given
// strategy. Solo yields exactly one agent; every other strategy yields
// a top-K participant set. NoEligibleAgent when nothing matches the
// task's required capability.
func (s *Selector) Select(task *core.Task, directive *core.UserDirective, strategy core.RoutingStrategy) (core.RoutingDecision, error) {
	capability := core.CapabilityForTaskType(task.Type)
	candidates := s.registry.ByCapability(capability)
	if len(candidates) == 0 {
		return core.RoutingDecision{}, core.ErrNoEligibleAgent("no agent offers capability " + string(capability)).
			WithDetail("task_id", string(task.ID))
	}

	decision := core.RoutingDecision{Strategy: strategy, Metadata: map[string]string{}}
	switch strategy {
	case core.StrategySolo:
		primary := s.pickSolo(candidates, directive)
		decision.PrimaryAgent = primary
		decision.Participants = []ident.AgentID{primary}
	default:
		participants := s.pickTopK(candidates, directive)
		decision.PrimaryAgent = participants[0]
		decision.Participants = participants
	}
	return decision, nil
}

// pickSolo honors an explicit assignment iff that agent is online and
// capable, otherwise takes the best-status candidate, ties broken by
// success rate, then id.
func (s *Selector) pickSolo(candidates []*core.Agent, directive *core.UserDirective) ident.AgentID {
	if directive != nil && directive.AssignToAgent != "" {
		for _, a := range candidates {
			if a.ID == directive.AssignToAgent && a.Status == core.AgentStatusOnline {
				return a.ID
			}
		}
		s.logger.Info("explicit assignment not honored",
			"agent_id", string(directive.AssignToAgent))
	}

	best := candidates[0]
	for _, a := range candidates[1:] {
		if s.better(a, best) {
			best = a
		}
	}
	return best.ID
}

func (s *Selector) better(a, b *core.Agent) bool {
	if ra, rb := a.Status.Rank(), b.Status.Rank(); ra != rb {
		return ra > rb
	}
	if sa, sb := s.rateOf(a.ID), s.rateOf(b.ID); sa != sb {
		return sa > sb
	}
	return a.ID < b.ID
}

func (s *Selector) rateOf(id ident.AgentID) float64 {
	if s.rates == nil {
		return 0
	}
	rate, ok := s.rates.SuccessRate(id)
	if !ok {
		return 0
	}
	return rate
}

// pickTopK returns up to defaultK unique capability-matched agents
// across all statuses, best first, always including any
// directive-named agents that match the capability.
func (s *Selector) pickTopK(candidates []*core.Agent, directive *core.UserDirective) []ident.AgentID {
	ranked := append([]*core.Agent(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool { return s.better(ranked[i], ranked[j]) })

	seen := make(map[ident.AgentID]struct{})
	var out []ident.AgentID
	add := func(id ident.AgentID) {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}

	if directive != nil {
		byID := make(map[ident.AgentID]struct{}, len(candidates))
		for _, a := range candidates {
			byID[a.ID] = struct{}{}
		}
		for _, id := range directive.AssignedAgents {
			if _, ok := byID[id]; ok {
				add(id)
			}
		}
	}
	for _, a := range ranked {
		if len(out) >= s.defaultK && len(out) >= 2 {
			break
		}
		add(a.ID)
	}
	return out
}

package core

import "github.com/maestro-ai/maestro/internal/ident"

// AgentType identifies the backing implementation of an agent.
type AgentType string

const (
	AgentTypeLLM      AgentType = "llm"
	AgentTypeTool     AgentType = "tool"
	AgentTypeExternal AgentType = "external"
)

// AgentStatus is the availability state of an agent.
type AgentStatus string

const (
	AgentStatusOnline  AgentStatus = "online"
	AgentStatusBusy    AgentStatus = "busy"
	AgentStatusOffline AgentStatus = "offline"
)

// statusRank orders statuses for selection: online beats busy beats offline.
func (s AgentStatus) Rank() int {
	switch s {
	case AgentStatusOnline:
		return 2
	case AgentStatusBusy:
		return 1
	default:
		return 0
	}
}

// Capability names a skill an agent offers.
type Capability string

const (
	CapCodeGeneration Capability = "code-generation"
	CapReview         Capability = "review"
	CapTesting        Capability = "testing"
	CapArchitecture   Capability = "architecture"
	CapDocumentation  Capability = "documentation"
	CapDebugging      Capability = "debugging"
	CapPlanning       Capability = "planning"
)

// CapabilityForTaskType maps a task type to the capability it requires.
// The mapping is static; agents advertise capability sets at construction.
func CapabilityForTaskType(t TaskType) Capability {
	switch t {
	case TaskTypeImplementation:
		return CapCodeGeneration
	case TaskTypeBugfix:
		return CapDebugging
	case TaskTypeReview:
		return CapReview
	case TaskTypeTesting:
		return CapTesting
	case TaskTypeDocumentation:
		return CapDocumentation
	case TaskTypeArchitecture:
		return CapArchitecture
	case TaskTypeResearch:
		return CapPlanning
	default:
		return CapCodeGeneration
	}
}

// Agent describes a registered agent.
type Agent struct {
	ID           ident.AgentID
	Type         AgentType
	DisplayName  string
	Status       AgentStatus
	Capabilities []Capability
	Strengths    []string
	Config       map[string]string
}

// HasCapability reports whether the agent advertises cap.
func (a *Agent) HasCapability(cap Capability) bool {
	for _, c := range a.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// AgentResult is the outcome of one agent invocation.
type AgentResult struct {
	Output     string
	Confidence float64
	Usage      TokenUsage
	Err        error
}

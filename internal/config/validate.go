package config

import (
	"fmt"

	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/ident"
)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
var validLogFormats = map[string]bool{"auto": true, "text": true, "json": true}

var validCapabilities = map[string]bool{
	string(core.CapCodeGeneration): true,
	string(core.CapReview):         true,
	string(core.CapTesting):        true,
	string(core.CapArchitecture):   true,
	string(core.CapDocumentation):  true,
	string(core.CapDebugging):      true,
	string(core.CapPlanning):       true,
}

var validAgentTypes = map[string]bool{
	string(core.AgentTypeLLM):      true,
	string(core.AgentTypeTool):     true,
	string(core.AgentTypeExternal): true,
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("log.level %q: must be one of debug, info, warn, error", c.Log.Level)
	}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("log.format %q: must be one of auto, text, json", c.Log.Format)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}

	if c.Routing.DirectiveConfidence < 0 || c.Routing.DirectiveConfidence > 1 {
		return fmt.Errorf("routing.directive_confidence %g: must be in [0,1]", c.Routing.DirectiveConfidence)
	}
	if c.Routing.HighRisk < 1 || c.Routing.HighRisk > 10 {
		return fmt.Errorf("routing.high_risk %d: must be in [1,10]", c.Routing.HighRisk)
	}
	if c.Routing.ArchComplexity < 1 || c.Routing.ArchComplexity > 10 {
		return fmt.Errorf("routing.arch_complexity %d: must be in [1,10]", c.Routing.ArchComplexity)
	}
	if c.Consensus.Timeout <= 0 {
		return fmt.Errorf("consensus.timeout must be positive")
	}
	if c.Index.MaxChunkTokens < 32 {
		return fmt.Errorf("index.max_chunk_tokens %d: must be at least 32", c.Index.MaxChunkTokens)
	}
	if c.Index.Parallelism < 1 {
		return fmt.Errorf("index.parallelism must be at least 1")
	}

	seen := make(map[string]bool, len(c.Agents))
	for i, a := range c.Agents {
		if a.ID == "" {
			return fmt.Errorf("agents[%d]: id must not be empty", i)
		}
		if seen[a.ID] {
			return fmt.Errorf("agents[%d]: duplicate id %q", i, a.ID)
		}
		seen[a.ID] = true
		if a.Type != "" && !validAgentTypes[a.Type] {
			return fmt.Errorf("agent %q: unknown type %q", a.ID, a.Type)
		}
		if len(a.Capabilities) == 0 {
			return fmt.Errorf("agent %q: at least one capability required", a.ID)
		}
		for _, cap := range a.Capabilities {
			if !validCapabilities[cap] {
				return fmt.Errorf("agent %q: unknown capability %q", a.ID, cap)
			}
		}
	}
	return nil
}

// Roster converts the configured agents into registry entries. Agents
// start online; health checks adjust status afterwards.
func (c *Config) Roster() []core.Agent {
	agents := make([]core.Agent, len(c.Agents))
	for i, a := range c.Agents {
		agentType := core.AgentType(a.Type)
		if agentType == "" {
			agentType = core.AgentTypeLLM
		}
		caps := make([]core.Capability, len(a.Capabilities))
		for j, cap := range a.Capabilities {
			caps[j] = core.Capability(cap)
		}
		agents[i] = core.Agent{
			ID:           ident.AgentID(a.ID),
			Type:         agentType,
			DisplayName:  a.DisplayName,
			Status:       core.AgentStatusOnline,
			Capabilities: caps,
			Strengths:    a.Strengths,
			Config:       a.Config,
		}
	}
	return agents
}

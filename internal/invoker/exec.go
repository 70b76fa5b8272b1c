// Package invoker binds agents to their backing processes. The exec
// invoker runs a configured command per agent, feeding the task prompt
// on stdin and reading the result from stdout.
package invoker

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/ident"
	"github.com/maestro-ai/maestro/internal/logging"
	"github.com/maestro-ai/maestro/internal/registry"
)

const defaultTimeout = 10 * time.Minute

// ExecInvoker runs agents as subprocesses. Each agent's config names
// its command ("command", "args"), an optional per-agent "timeout",
// and an optional fixed "confidence".
type ExecInvoker struct {
	registry *registry.Registry
	workDir  string
	timeout  time.Duration
	logger   *logging.Logger
}

// NewExecInvoker creates an invoker resolving agents from reg.
func NewExecInvoker(reg *registry.Registry, workDir string, timeout time.Duration, logger *logging.Logger) *ExecInvoker {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ExecInvoker{
		registry: reg,
		workDir:  workDir,
		timeout:  timeout,
		logger:   logger.WithComponent("invoker"),
	}
}

// Invoke runs one agent against a task.
func (i *ExecInvoker) Invoke(ctx context.Context, agentID ident.AgentID, task *core.Task, inputs map[string]string) (core.AgentResult, error) {
	agent, ok := i.registry.Get(agentID)
	if !ok {
		return core.AgentResult{}, core.ErrNotFound("AGENT", "agent not registered").
			WithDetail("agent_id", string(agentID))
	}
	command := agent.Config["command"]
	if command == "" {
		return core.AgentResult{}, core.ErrInvalidInput("AGENT_COMMAND",
			"agent has no command configured").WithDetail("agent_id", string(agentID))
	}

	timeout := i.timeout
	if raw := agent.Config["timeout"]; raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			timeout = d
		}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt := BuildPrompt(task, inputs)
	cmd := exec.CommandContext(ctx, command, strings.Fields(agent.Config["args"])...)
	cmd.Dir = i.workDir
	cmd.Stdin = strings.NewReader(prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	err := cmd.Run()
	i.logger.Debug("agent process finished",
		"agent_id", string(agentID),
		"task_id", string(task.ID),
		"duration_ms", time.Since(started).Milliseconds(),
		"stdout_bytes", stdout.Len())

	usage := core.TokenUsage{
		Input:  estimateTokens(prompt),
		Output: estimateTokens(stdout.String()),
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return core.AgentResult{Usage: usage,
				Err: core.ErrTimeout("agent process exceeded " + timeout.String())}, nil
		}
		if ctx.Err() == context.Canceled {
			return core.AgentResult{}, ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return core.AgentResult{Usage: usage,
			Err: fmt.Errorf("agent process failed: %s", detail)}, nil
	}

	confidence := 0.7
	if raw := agent.Config["confidence"]; raw != "" {
		if f, perr := strconv.ParseFloat(raw, 64); perr == nil && f >= 0 && f <= 1 {
			confidence = f
		}
	}
	return core.AgentResult{
		Output:     strings.TrimSpace(stdout.String()),
		Confidence: confidence,
		Usage:      usage,
	}, nil
}

// BuildPrompt renders the task and stage inputs for the agent process.
func BuildPrompt(task *core.Task, inputs map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Task: %s\n", task.Title)
	if task.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", task.Description)
	}
	fmt.Fprintf(&b, "\nType: %s\n", task.Type)
	if prev := inputs["previous_output"]; prev != "" {
		fmt.Fprintf(&b, "\n## Previous stage output\n\n%s\n", prev)
	}
	return b.String()
}

func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}

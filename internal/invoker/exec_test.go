package invoker

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/registry"
)

func testRegistry(config map[string]string) *registry.Registry {
	return registry.New([]core.Agent{{
		ID:           "echoer",
		Type:         core.AgentTypeTool,
		Status:       core.AgentStatusOnline,
		Capabilities: []core.Capability{core.CapCodeGeneration},
		Config:       config,
	}}, nil)
}

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test depends on unix tools")
	}
}

func TestInvoke_CapturesStdout(t *testing.T) {
	skipWithoutShell(t)
	inv := NewExecInvoker(testRegistry(map[string]string{"command": "cat"}), "", time.Minute, nil)

	task := core.NewTask(core.TaskDraft{Title: "say hi", Description: "greet the user"})
	result, err := inv.Invoke(context.Background(), "echoer", task, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result.Err != nil {
		t.Fatalf("result error: %v", result.Err)
	}
	if !strings.Contains(result.Output, "say hi") {
		t.Fatalf("output = %q, want the prompt echoed back", result.Output)
	}
	if result.Usage.Input == 0 || result.Usage.Output == 0 {
		t.Fatalf("usage = %+v", result.Usage)
	}
}

func TestInvoke_FailureBecomesResultError(t *testing.T) {
	skipWithoutShell(t)
	inv := NewExecInvoker(testRegistry(map[string]string{"command": "false"}), "", time.Minute, nil)

	task := core.NewTask(core.TaskDraft{Title: "doomed"})
	result, err := inv.Invoke(context.Background(), "echoer", task, nil)
	if err != nil {
		t.Fatalf("Invoke must not fail outright: %v", err)
	}
	if result.Err == nil {
		t.Fatal("a non-zero exit must surface as a result error")
	}
}

func TestInvoke_TimeoutBecomesResultError(t *testing.T) {
	skipWithoutShell(t)
	inv := NewExecInvoker(testRegistry(map[string]string{
		"command": "sleep", "args": "5", "timeout": "100ms",
	}), "", time.Minute, nil)

	task := core.NewTask(core.TaskDraft{Title: "slow"})
	result, err := inv.Invoke(context.Background(), "echoer", task, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	var de *core.DomainError
	if result.Err == nil || !errors.As(result.Err, &de) || de.Category != core.ErrCatTimeout {
		t.Fatalf("result error = %v, want timeout", result.Err)
	}
}

func TestInvoke_UnknownAgent(t *testing.T) {
	inv := NewExecInvoker(testRegistry(map[string]string{"command": "cat"}), "", time.Minute, nil)
	task := core.NewTask(core.TaskDraft{Title: "x"})
	_, err := inv.Invoke(context.Background(), "ghost", task, nil)
	if err == nil {
		t.Fatal("unknown agent must error")
	}
}

func TestInvoke_MissingCommand(t *testing.T) {
	inv := NewExecInvoker(testRegistry(nil), "", time.Minute, nil)
	task := core.NewTask(core.TaskDraft{Title: "x"})
	_, err := inv.Invoke(context.Background(), "echoer", task, nil)
	if err == nil {
		t.Fatal("missing command must error")
	}
}

func TestBuildPrompt_IncludesPreviousOutput(t *testing.T) {
	task := core.NewTask(core.TaskDraft{Title: "stage two"})
	prompt := BuildPrompt(task, map[string]string{"previous_output": "stage one result"})
	if !strings.Contains(prompt, "stage one result") {
		t.Fatalf("prompt = %q", prompt)
	}
}

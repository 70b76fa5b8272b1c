package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/ident"
	"github.com/maestro-ai/maestro/internal/workflow"
)

var (
	submitDescription string
	submitType        string
	submitDirective   string
	submitComplexity  int
	submitRisk        int

	resumeCheckpoint string
)

var submitCmd = &cobra.Command{
	Use:   "submit <title>",
	Short: "Submit a task for routing and execution",
	Long: `submit creates a task from the given title, routes it through
the strategy picker, and runs it to completion. A directive in plain
language ("we need consensus on this") steers the routing.`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

var resumeCmd = &cobra.Command{
	Use:   "resume <task-id>",
	Short: "Resume a task waiting on external input",
	Args:  cobra.ExactArgs(1),
	RunE:  runResume,
}

func init() {
	submitCmd.Flags().StringVarP(&submitDescription, "description", "d", "",
		"task description")
	submitCmd.Flags().StringVarP(&submitType, "type", "t", "",
		"task type (implementation, bugfix, review, testing, documentation, architecture, research)")
	submitCmd.Flags().StringVar(&submitDirective, "directive", "",
		"routing directive in plain language")
	submitCmd.Flags().IntVar(&submitComplexity, "complexity", 0,
		"complexity 1-10 (0 classifies automatically)")
	submitCmd.Flags().IntVar(&submitRisk, "risk", 0,
		"risk 1-10 (0 classifies automatically)")
	rootCmd.AddCommand(submitCmd)

	resumeCmd.Flags().StringVar(&resumeCheckpoint, "checkpoint", "",
		"checkpoint to resume from (default: latest)")
	rootCmd.AddCommand(resumeCmd)
}

func parseTaskType(raw string) (core.TaskType, error) {
	if raw == "" {
		return core.TaskTypeOther, nil
	}
	switch t := core.TaskType(strings.ToLower(raw)); t {
	case core.TaskTypeImplementation, core.TaskTypeBugfix, core.TaskTypeReview,
		core.TaskTypeTesting, core.TaskTypeDocumentation,
		core.TaskTypeArchitecture, core.TaskTypeResearch, core.TaskTypeOther:
		return t, nil
	default:
		return "", fmt.Errorf("unknown task type %q", raw)
	}
}

func runSubmit(cmd *cobra.Command, args []string) error {
	taskType, err := parseTaskType(submitType)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	s, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	eng, err := buildEngine(cfg, s, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	result, err := eng.Submit(cmd.Context(), core.TaskDraft{
		Title:       args[0],
		Description: submitDescription,
		Type:        taskType,
		Complexity:  submitComplexity,
		Risk:        submitRisk,
	}, submitDirective)
	if err != nil {
		return err
	}
	return printResult(cmd, result)
}

func runResume(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	s, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	eng, err := buildEngine(cfg, s, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	result, err := eng.Resume(cmd.Context(), ident.TaskID(args[0]), resumeCheckpoint)
	if err != nil {
		return err
	}
	return printResult(cmd, result)
}

type resultView struct {
	TaskID     string `json:"task_id"`
	Status     string `json:"status"`
	Strategy   string `json:"strategy"`
	Output     string `json:"output,omitempty"`
	AgentsUsed int    `json:"agents_used"`
	Tokens     int    `json:"tokens"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

func printResult(cmd *cobra.Command, r *workflow.Result) error {
	view := resultView{
		TaskID:     string(r.TaskID),
		Status:     string(r.Status),
		Strategy:   string(r.Strategy),
		Output:     r.Output,
		AgentsUsed: r.AgentsUsed,
		Tokens:     r.Usage.Total(),
		DurationMs: r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		view.Error = r.Err.Error()
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

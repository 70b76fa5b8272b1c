package events

// Event type constants.
const (
	TypeTaskCreated       = "task_created"
	TypeTaskUpdated       = "task_updated"
	TypeTaskRouted        = "task_routed"
	TypeWorkflowStarted   = "workflow_started"
	TypeWorkflowCompleted = "workflow_completed"
	TypeWorkflowFailed    = "workflow_failed"
	TypeStateTransition   = "state_transition"
	TypeIndexingProgress  = "indexing_progress"
)

// TaskCreatedEvent is emitted after a task is first persisted.
type TaskCreatedEvent struct {
	BaseEvent
	Title    string `json:"title"`
	TaskType string `json:"task_type"`
}

// NewTaskCreatedEvent creates a task created event.
func NewTaskCreatedEvent(taskID, title, taskType string) TaskCreatedEvent {
	return TaskCreatedEvent{
		BaseEvent: NewBaseEvent(TypeTaskCreated, taskID),
		Title:     title,
		TaskType:  taskType,
	}
}

// TaskUpdatedEvent is emitted after a task mutation is persisted.
type TaskUpdatedEvent struct {
	BaseEvent
	Status string `json:"status"`
}

// NewTaskUpdatedEvent creates a task updated event.
func NewTaskUpdatedEvent(taskID, status string) TaskUpdatedEvent {
	return TaskUpdatedEvent{
		BaseEvent: NewBaseEvent(TypeTaskUpdated, taskID),
		Status:    status,
	}
}

// TaskRoutedEvent is emitted once routing has been decided and persisted.
type TaskRoutedEvent struct {
	BaseEvent
	Strategy     string   `json:"strategy"`
	PrimaryAgent string   `json:"primary_agent"`
	Participants []string `json:"participants"`
	Rule         string   `json:"rule"`
}

// NewTaskRoutedEvent creates a task routed event.
func NewTaskRoutedEvent(taskID, strategy, primaryAgent, rule string, participants []string) TaskRoutedEvent {
	return TaskRoutedEvent{
		BaseEvent:    NewBaseEvent(TypeTaskRouted, taskID),
		Strategy:     strategy,
		PrimaryAgent: primaryAgent,
		Participants: participants,
		Rule:         rule,
	}
}

// WorkflowStartedEvent is emitted when an executor begins.
type WorkflowStartedEvent struct {
	BaseEvent
	Strategy string `json:"strategy"`
}

// NewWorkflowStartedEvent creates a workflow started event.
func NewWorkflowStartedEvent(taskID, strategy string) WorkflowStartedEvent {
	return WorkflowStartedEvent{
		BaseEvent: NewBaseEvent(TypeWorkflowStarted, taskID),
		Strategy:  strategy,
	}
}

// WorkflowCompletedEvent is emitted after a successful terminal transition.
type WorkflowCompletedEvent struct {
	BaseEvent
	Strategy   string `json:"strategy"`
	TokensIn   int    `json:"tokens_in"`
	TokensOut  int    `json:"tokens_out"`
	DurationMs int64  `json:"duration_ms"`
	AgentsUsed int    `json:"agents_used"`
}

// NewWorkflowCompletedEvent creates a workflow completed event.
func NewWorkflowCompletedEvent(taskID, strategy string, tokensIn, tokensOut int, durationMs int64, agentsUsed int) WorkflowCompletedEvent {
	return WorkflowCompletedEvent{
		BaseEvent:  NewBaseEvent(TypeWorkflowCompleted, taskID),
		Strategy:   strategy,
		TokensIn:   tokensIn,
		TokensOut:  tokensOut,
		DurationMs: durationMs,
		AgentsUsed: agentsUsed,
	}
}

// WorkflowFailedEvent is emitted after a failed terminal transition.
type WorkflowFailedEvent struct {
	BaseEvent
	Strategy string `json:"strategy"`
	Reason   string `json:"reason"`
}

// NewWorkflowFailedEvent creates a workflow failed event.
func NewWorkflowFailedEvent(taskID, strategy, reason string) WorkflowFailedEvent {
	return WorkflowFailedEvent{
		BaseEvent: NewBaseEvent(TypeWorkflowFailed, taskID),
		Strategy:  strategy,
		Reason:    reason,
	}
}

// StateTransitionEvent mirrors a committed lifecycle transition. It is
// always published after the transition and its history record are durable.
type StateTransitionEvent struct {
	BaseEvent
	From string `json:"from"`
	To   string `json:"to"`
}

// NewStateTransitionEvent creates a state transition event.
func NewStateTransitionEvent(taskID, from, to string) StateTransitionEvent {
	return StateTransitionEvent{
		BaseEvent: NewBaseEvent(TypeStateTransition, taskID),
		From:      from,
		To:        to,
	}
}

// IndexingProgressEvent reports batch indexing progress after each file.
type IndexingProgressEvent struct {
	BaseEvent
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	LastError string `json:"last_error,omitempty"`
	Path      string `json:"path,omitempty"`
}

// NewIndexingProgressEvent creates an indexing progress event.
func NewIndexingProgressEvent(total, processed, succeeded, failed int, path, lastError string) IndexingProgressEvent {
	return IndexingProgressEvent{
		BaseEvent: NewBaseEvent(TypeIndexingProgress, ""),
		Total:     total,
		Processed: processed,
		Succeeded: succeeded,
		Failed:    failed,
		Path:      path,
		LastError: lastError,
	}
}

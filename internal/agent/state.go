// Package agent coordinates a clinical encounter from consent through
// finalized note. The state manager tracks agent status, decisions, and
// actions; the orchestrator drives the encounter workflow through it.
package agent

import (
	"fmt"
	"sync"
	"time"

	"github.com/meridian-care/platform/internal/shared/errors"
	"github.com/meridian-care/platform/internal/shared/metrics"
	"github.com/meridian-care/platform/internal/shared/types"
)

// Status represents the agent lifecycle state.
type Status string

const (
	StatusIdle             Status = "IDLE"
	StatusRunning          Status = "RUNNING"
	StatusEvaluating       Status = "EVALUATING"
	StatusCompleted        Status = "COMPLETED"
	StatusError            Status = "ERROR"
	StatusRequiresApproval Status = "REQUIRES_APPROVAL"
)

// DecisionOutcome classifies what the agent decided to do next.
type DecisionOutcome string

const (
	OutcomeProceed         DecisionOutcome = "PROCEED"
	OutcomeRequireApproval DecisionOutcome = "REQUIRE_APPROVAL"
	OutcomeAbort           DecisionOutcome = "ABORT"
)

// Action status values.
const (
	ActionPending    = "pending"
	ActionInProgress = "in_progress"
	ActionCompleted  = "completed"
	ActionFailed     = "failed"
)

// Action is a unit of agent work moving through pending, in_progress,
// and a terminal completed or failed state.
type Action struct {
	ID               types.ID       `json:"id"`
	ActionType       string         `json:"action_type"`
	Description      string         `json:"description"`
	Parameters       map[string]any `json:"parameters"`
	RequiresApproval bool           `json:"requires_approval"`
	Status           string         `json:"status"`
	Priority         int            `json:"priority"`
	Result           map[string]any `json:"result,omitempty"`
	Error            string         `json:"error,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
}

// Decision is one entry in the append-only decision log. The log
// records the agent's reasoning; it never gates execution.
type Decision struct {
	DecisionType string          `json:"decision_type"`
	Outcome      DecisionOutcome `json:"outcome"`
	Rationale    string          `json:"rationale"`
	Metadata     map[string]any  `json:"metadata"`
	Timestamp    time.Time       `json:"timestamp"`
}

// Metrics holds the state manager's monotonic counters.
type Metrics struct {
	ActionsExecuted int                     `json:"actions_executed"`
	ActionsFailed   int                     `json:"actions_failed"`
	Decisions       map[DecisionOutcome]int `json:"decisions"`
}

// Summary is a read-only snapshot of agent state.
type Summary struct {
	AgentID      string  `json:"agent_id"`
	Status       Status  `json:"status"`
	TotalActions int     `json:"total_actions"`
	Metrics      Metrics `json:"metrics"`
	ErrorCount   int     `json:"error_count"`
}

// History is the full exported decision log and action history.
type History struct {
	Decisions []Decision `json:"decisions"`
	Actions   []Action   `json:"actions"`
}

// StateManager tracks one agent's status, in-flight action, histories,
// and counters. One action may be in flight at a time; queueing a
// second before the first reaches a terminal state is a caller bug.
type StateManager struct {
	mu sync.Mutex

	agentID   string
	status    Status
	current   *Action
	actions   []Action
	decisions []Decision
	errors    []string
	metrics   Metrics
}

// NewStateManager creates an idle state manager.
func NewStateManager(agentID string) *StateManager {
	return &StateManager{
		agentID: agentID,
		status:  StatusIdle,
		metrics: Metrics{Decisions: make(map[DecisionOutcome]int)},
	}
}

// NewAction creates a pending action. Pure; nothing is queued.
func NewAction(actionType, description string, parameters map[string]any, requiresApproval bool, priority int) *Action {
	if parameters == nil {
		parameters = map[string]any{}
	}
	return &Action{
		ID:               types.NewID(),
		ActionType:       actionType,
		Description:      description,
		Parameters:       parameters,
		RequiresApproval: requiresApproval,
		Status:           ActionPending,
		Priority:         priority,
		CreatedAt:        time.Now().UTC(),
	}
}

// QueueAction marks the action in progress and the agent RUNNING.
// Queueing while another action is in flight is rejected.
func (m *StateManager) QueueAction(action *Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return errors.Conflict(fmt.Sprintf(
			"action %s is already in flight; complete or fail it first", m.current.ID))
	}

	action.Status = ActionInProgress
	m.current = action
	m.status = StatusRunning
	return nil
}

// CompleteAction finishes the in-flight action with a result and moves
// it to history. A call with nothing in flight is a no-op.
func (m *StateManager) CompleteAction(result map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return
	}

	now := time.Now().UTC()
	m.current.Status = ActionCompleted
	m.current.Result = result
	m.current.CompletedAt = &now

	m.actions = append(m.actions, *m.current)
	m.metrics.ActionsExecuted++
	metrics.RecordAgentAction(m.current.ActionType, ActionCompleted)
	m.current = nil
}

// FailAction fails the in-flight action, records the error, and moves
// it to history. A call with nothing in flight is a no-op.
func (m *StateManager) FailAction(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return
	}

	now := time.Now().UTC()
	m.current.Status = ActionFailed
	m.current.Error = message
	m.current.CompletedAt = &now

	m.actions = append(m.actions, *m.current)
	m.metrics.ActionsFailed++
	m.errors = append(m.errors, fmt.Sprintf("action %s: %s", m.current.ActionType, message))
	metrics.RecordAgentAction(m.current.ActionType, ActionFailed)
	m.current = nil
}

// LogDecision appends to the decision log. Logging always succeeds.
func (m *StateManager) LogDecision(decisionType string, outcome DecisionOutcome, rationale string, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}

	m.mu.Lock()
	m.decisions = append(m.decisions, Decision{
		DecisionType: decisionType,
		Outcome:      outcome,
		Rationale:    rationale,
		Metadata:     metadata,
		Timestamp:    time.Now().UTC(),
	})
	m.metrics.Decisions[outcome]++
	m.mu.Unlock()

	metrics.RecordAgentDecision(decisionType, string(outcome))
}

// SetStatus sets the agent status unconditionally.
func (m *StateManager) SetStatus(status Status) {
	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

// Status returns the current agent status.
func (m *StateManager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// StateSummary returns a read-only snapshot of agent state.
func (m *StateManager) StateSummary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	decisions := make(map[DecisionOutcome]int, len(m.metrics.Decisions))
	for k, v := range m.metrics.Decisions {
		decisions[k] = v
	}

	total := len(m.actions)
	if m.current != nil {
		total++
	}

	return Summary{
		AgentID:      m.agentID,
		Status:       m.status,
		TotalActions: total,
		Metrics: Metrics{
			ActionsExecuted: m.metrics.ActionsExecuted,
			ActionsFailed:   m.metrics.ActionsFailed,
			Decisions:       decisions,
		},
		ErrorCount: len(m.errors),
	}
}

// ExportHistory returns copies of the decision log and action history.
func (m *StateManager) ExportHistory() History {
	m.mu.Lock()
	defer m.mu.Unlock()

	decisions := make([]Decision, len(m.decisions))
	copy(decisions, m.decisions)
	actions := make([]Action, len(m.actions))
	copy(actions, m.actions)

	return History{Decisions: decisions, Actions: actions}
}

// Errors returns the ordered error messages recorded so far.
func (m *StateManager) Errors() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.errors))
	copy(out, m.errors)
	return out
}

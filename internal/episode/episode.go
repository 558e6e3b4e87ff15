package episode

import (
	"fmt"
)

// ApprovalState gates whether the pending action may run.
type ApprovalState string

const (
	ApprovalNone      ApprovalState = "NONE"
	ApprovalRequested ApprovalState = "REQUESTED"
	ApprovalGranted   ApprovalState = "GRANTED"
	ApprovalDenied    ApprovalState = "DENIED"
)

// Valid transitions: NONE->REQUESTED (policy flags risk),
// REQUESTED->GRANTED|DENIED (operator), GRANTED|DENIED->NONE (consumed).
var approvalTransitions = map[ApprovalState][]ApprovalState{
	ApprovalNone:      {ApprovalRequested},
	ApprovalRequested: {ApprovalGranted, ApprovalDenied},
	ApprovalGranted:   {ApprovalNone},
	ApprovalDenied:    {ApprovalNone},
}

// ActionKind is the set of actions the reasoning oracle may choose.
type ActionKind string

const (
	ActionCommand    ActionKind = "command"
	ActionWeb        ActionKind = "web"
	ActionScreenshot ActionKind = "screenshot"
	ActionFinish     ActionKind = "finish"
)

// Action is the single next step chosen by the last reasoning call.
type Action struct {
	Kind      ActionKind `json:"action"`
	Argument  string     `json:"argument"`
	Rationale string     `json:"thought"`
}

// Task describes the challenge to solve. Immutable for the life of the episode.
type Task struct {
	Name        string
	Description string
	Hints       string
	Files       []string
	// FlagFormat is a literal prefix like "CTF{", or "unknown" when the
	// format was not given.
	FlagFormat string
}

// LogBudget is the hard ceiling on episode log entries. Exceeding it halts the
// loop, reported as stalled.
const LogBudget = 20

// Episode is the mutable context threaded through the controller stages.
// Single writer: whichever stage is currently running, or the operator while
// the controller is suspended.
type Episode struct {
	ID   string
	Task Task

	// Log is append-only and never truncated. It is both the operator-facing
	// audit trail and the budget counter.
	Log []string

	// LastOutput holds the most recent tool output, overwritten each cycle.
	LastOutput string

	Pending  Action
	Approval ApprovalState

	// Flag is the extracted success signal. Empty means not found yet. It is
	// set only by the verify stage and cleared only by RejectSignal.
	Flag string

	// Synthesis caches the one-time consensus output.
	Synthesis string

	// Stage idempotency markers. The controller replays from observe on every
	// invocation; these make completed stages pass through.
	Observed    bool
	Synthesized bool
}

func New(id string, task Task) *Episode {
	return &Episode{
		ID:       id,
		Task:     task,
		Approval: ApprovalNone,
	}
}

// Append records a log entry. The log only ever grows.
func (e *Episode) Append(entry string) {
	e.Log = append(e.Log, entry)
}

// LastEntries returns up to n trailing log entries for prompt context.
func (e *Episode) LastEntries(n int) []string {
	if len(e.Log) <= n {
		return e.Log
	}
	return e.Log[len(e.Log)-n:]
}

func (e *Episode) setApproval(next ApprovalState) error {
	for _, allowed := range approvalTransitions[e.Approval] {
		if allowed == next {
			e.Approval = next
			return nil
		}
	}
	return fmt.Errorf("invalid approval transition %s -> %s", e.Approval, next)
}

// RequestApproval suspends the episode pending an operator decision on the
// current pending action.
func (e *Episode) RequestApproval() error {
	return e.setApproval(ApprovalRequested)
}

// Grant is the operator's approval. Must only be called while the controller
// is not running.
func (e *Episode) Grant() error {
	return e.setApproval(ApprovalGranted)
}

// Deny is the operator's refusal. Must only be called while the controller
// is not running.
func (e *Episode) Deny() error {
	return e.setApproval(ApprovalDenied)
}

// ConsumeApproval resets a GRANTED or DENIED decision back to NONE once the
// acting or reasoning stage has taken it into account.
func (e *Episode) ConsumeApproval() error {
	return e.setApproval(ApprovalNone)
}

// RejectSignal is the external "this flag is wrong" feedback. It is the only
// path that clears the success signal, and it always records the rejection in
// the log so the budget still counts the rejected attempt.
func (e *Episode) RejectSignal(note string) {
	e.Append(note)
	e.Flag = ""
}

// HaltReason explains why the controller returned.
type HaltReason string

const (
	HaltNone            HaltReason = ""
	HaltPendingApproval HaltReason = "pending_approval"
	HaltSuccess         HaltReason = "success"
	HaltStalled         HaltReason = "stalled"
	HaltFinished        HaltReason = "finished"
)

// Halted reports whether the episode must stop automatic stage execution,
// and why. Checked by the controller after the verify stage.
func (e *Episode) Halted() HaltReason {
	if e.Approval == ApprovalRequested {
		return HaltPendingApproval
	}
	if e.Flag != "" {
		return HaltSuccess
	}
	if len(e.Log) > LogBudget {
		return HaltStalled
	}
	return HaltNone
}

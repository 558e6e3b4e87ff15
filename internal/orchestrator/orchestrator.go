// Package orchestrator drives the fixed five-stage episode graph:
// observe -> synthesize -> reason -> act -> verify, looping from verify back
// to reason until a halt condition. Suspension for operator approval is a
// plain return with the episode intact; resuming is calling Run again, and
// the stage idempotency markers take the flow straight back to act.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"pwnloop/internal/episode"
	"pwnloop/internal/logger"
	"pwnloop/internal/metrics"
	"pwnloop/internal/oracle"
	"pwnloop/internal/policy"
	"pwnloop/internal/verify"
	"pwnloop/internal/webtool"
)

// Executor runs approved commands and previews workspace files. Failures are
// tool-output text, never errors.
type Executor interface {
	Run(ctx context.Context, command string) string
	Inspect(file string) string
}

// WebTool fetches pages and captures screenshots.
type WebTool interface {
	Scrape(ctx context.Context, url string) string
	Screenshot(ctx context.Context, url string) string
}

// Retriever surfaces knowledge-base snippets for the reasoning prompt.
type Retriever interface {
	Search(query string) string
}

// Decider chooses the next action. Implemented by oracle.Oracle.
type Decider interface {
	Decide(ctx context.Context, req oracle.Request) episode.Action
}

// Synthesizer is the one-time consensus stage. Implemented by
// consensus.Coordinator; must be idempotent per episode.
type Synthesizer interface {
	Run(ctx context.Context, ep *episode.Episode)
}

type Controller struct {
	Oracle    Decider
	Consensus Synthesizer
	Exec      Executor
	Web       WebTool
	Knowledge Retriever
}

// Run executes stages starting at observe until the episode halts. The
// returned reason tells the caller whether to surface a pending approval,
// report success, or report a stall.
func (c *Controller) Run(ctx context.Context, ep *episode.Episode) (episode.HaltReason, *metrics.EpisodeMetrics) {
	em := &metrics.EpisodeMetrics{EpisodeID: ep.ID, Start: time.Now()}
	defer func() {
		em.End = time.Now()
		em.Finalize()
	}()

	c.stage(em, "observe", func() { c.observe(ep) })
	c.stage(em, "synthesize", func() { c.synthesize(ctx, ep) })

	for {
		c.stage(em, "reason", func() { c.reason(ctx, ep) })

		var finished bool
		c.stage(em, "act", func() { finished = c.act(ctx, ep) })
		c.stage(em, "verify", func() { c.verifyStage(ep) })

		if halt := ep.Halted(); halt != episode.HaltNone {
			em.Halt = string(halt)
			c.logf("episode %s halted: %s", ep.ID, halt)
			return halt, em
		}
		if finished {
			em.Halt = string(episode.HaltFinished)
			c.logf("episode %s halted: agent finished without a flag", ep.ID)
			return episode.HaltFinished, em
		}
	}
}

func (c *Controller) stage(em *metrics.EpisodeMetrics, name string, fn func()) {
	sm := metrics.StageMetrics{Stage: name, Start: time.Now()}
	fn()
	sm.End = time.Now()
	sm.Finalize()
	em.Stages = append(em.Stages, sm)
}

// observe records the initial look at the task. Pass-through on replay and
// while resuming an approved action.
func (c *Controller) observe(ep *episode.Episode) {
	if ep.Observed || ep.Approval == episode.ApprovalGranted {
		return
	}
	ep.Append(fmt.Sprintf("Observing challenge: %s", ep.Task.Name))

	if len(ep.Task.Files) > 0 {
		names := make([]string, len(ep.Task.Files))
		for i, f := range ep.Task.Files {
			names[i] = filepath.Base(f)
		}
		preview := c.Exec.Inspect(names[0])
		ep.LastOutput = fmt.Sprintf("Files available: %v\nPreview of %s:\n%s", names, names[0], preview)
	} else {
		ep.LastOutput = "No files provided. Relying on description."
	}
	ep.Observed = true
}

func (c *Controller) synthesize(ctx context.Context, ep *episode.Episode) {
	if ep.Synthesized || ep.Approval == episode.ApprovalGranted {
		return
	}
	c.Consensus.Run(ctx, ep)
}

// reason asks the oracle for the next action. While resuming a granted
// approval it passes through so act executes the unchanged pending action.
// A standing DENIED decision is consumed here: the denial was recorded and
// the cycle replans from scratch.
func (c *Controller) reason(ctx context.Context, ep *episode.Episode) {
	if ep.Approval == episode.ApprovalGranted {
		ep.Append("Permission granted. Resuming execution.")
		return
	}
	if ep.Approval == episode.ApprovalDenied {
		ep.Append(fmt.Sprintf("Previous command was denied and not executed: %s", ep.Pending.Argument))
		if err := ep.ConsumeApproval(); err != nil {
			c.logf("episode %s: %v", ep.ID, err)
		}
	}

	tail := ep.LastOutput
	if len(tail) > 200 {
		tail = tail[len(tail)-200:]
	}
	snippets := c.Knowledge.Search(fmt.Sprintf("%s %s %s", ep.Task.Name, ep.Task.Description, tail))

	req := oracle.Request{
		Task:       ep.Task,
		Knowledge:  snippets,
		LastOutput: ep.LastOutput,
		History:    ep.LastEntries(3),
	}
	if strings.HasPrefix(ep.LastOutput, webtool.ScreenshotMarker) {
		req.ScreenshotPath = strings.TrimSpace(strings.TrimPrefix(ep.LastOutput, webtool.ScreenshotMarker))
	}

	decision := c.Oracle.Decide(ctx, req)
	ep.Pending = decision
	ep.Append(fmt.Sprintf("Thought: %s", decision.Rationale))
}

// act dispatches the pending action. Returns true when the oracle chose to
// finish, which the loop treats as the agent's own stop signal.
func (c *Controller) act(ctx context.Context, ep *episode.Episode) bool {
	action := ep.Pending

	switch action.Kind {
	case episode.ActionCommand:
		c.actCommand(ctx, ep, action.Argument)

	case episode.ActionWeb:
		ep.LastOutput = fmt.Sprintf("Web scrape '%s' Output:\n%s", action.Argument, c.Web.Scrape(ctx, action.Argument))
		ep.Append(fmt.Sprintf("Scraped URL: %s", action.Argument))

	case episode.ActionScreenshot:
		out := c.Web.Screenshot(ctx, action.Argument)
		ep.LastOutput = out
		if strings.HasPrefix(out, webtool.ScreenshotMarker) {
			ep.Append(fmt.Sprintf("Screenshot taken: %s", action.Argument))
		} else {
			ep.Append(fmt.Sprintf("Screenshot error: %s", out))
		}

	case episode.ActionFinish:
		ep.LastOutput = "Agent decided to finish."
		ep.Append("Agent signaling completion.")
		return true

	default:
		ep.LastOutput = fmt.Sprintf("Unknown action: %s", action.Kind)
		ep.Append(fmt.Sprintf("Skipping unknown action: %s", action.Kind))
	}
	return false
}

// actCommand applies the risk policy before anything touches the executor.
// Blocked commands never reach the approval gate; high-risk ones suspend the
// episode until the operator decides.
func (c *Controller) actCommand(ctx context.Context, ep *episode.Episode, command string) {
	if ep.Approval != episode.ApprovalGranted {
		switch policy.Classify(command) {
		case policy.Blocked:
			ep.LastOutput = "SECURITY VIOLATION: command blocked by policy."
			ep.Append(fmt.Sprintf("Blocked dangerous command: %s", command))
			return
		case policy.HighRisk:
			if err := ep.RequestApproval(); err != nil {
				c.logf("episode %s: %v", ep.ID, err)
				return
			}
			ep.Append(fmt.Sprintf("Requesting approval for high-risk command: %s", command))
			return
		}
	}

	out := c.Exec.Run(ctx, command)
	ep.LastOutput = fmt.Sprintf("Command '%s' Output:\n%s", command, out)
	ep.Append(fmt.Sprintf("Ran command: %s", command))

	if ep.Approval == episode.ApprovalGranted {
		if err := ep.ConsumeApproval(); err != nil {
			c.logf("episode %s: %v", ep.ID, err)
		}
	}
}

// verifyStage inspects the freshest output for the success signal. Skipped
// while an approval is pending; nothing ran, so there is nothing to check.
func (c *Controller) verifyStage(ep *episode.Episode) {
	if ep.Approval == episode.ApprovalRequested {
		return
	}

	output := ep.LastOutput
	// Drop the "Command '...' Output:" header added by act.
	if _, rest, found := strings.Cut(output, "Output:\n"); found {
		output = rest
	}

	if flag, ok := verify.Extract(output, ep.Task.FlagFormat); ok {
		ep.Flag = flag
		ep.Append(fmt.Sprintf("SUCCESS: flag found -> %s", flag))
	}
}

func (c *Controller) logf(format string, args ...any) {
	logger.Printf(format, args...)
}

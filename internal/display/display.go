package display

import (
	"fmt"
	"strings"

	"pwnloop/internal/episode"
	"pwnloop/internal/metrics"
)

const maxEntryLength = 200

// FormatEpisode renders the audit trail for the operator console.
func FormatEpisode(ep *episode.Episode) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Episode %s: %s\n", ep.ID, ep.Task.Name))
	sb.WriteString("--------------------------------------------------\n")
	for i, entry := range ep.Log {
		sb.WriteString(fmt.Sprintf("%2d. %s\n", i+1, truncate(entry)))
	}
	sb.WriteString("--------------------------------------------------")
	return sb.String()
}

// FormatPendingAction presents the suspended action awaiting an operator
// decision.
func FormatPendingAction(ep *episode.Episode) string {
	var sb strings.Builder
	sb.WriteString("HIGH RISK ACTION - approval required:\n")
	sb.WriteString(fmt.Sprintf("  Kind:     %s\n", ep.Pending.Kind))
	sb.WriteString(fmt.Sprintf("  Argument: %s\n", ep.Pending.Argument))
	if ep.Pending.Rationale != "" {
		sb.WriteString(fmt.Sprintf("  Thought:  %s\n", truncate(ep.Pending.Rationale)))
	}
	return sb.String()
}

// FormatHalt summarizes why the controller returned.
func FormatHalt(reason episode.HaltReason, ep *episode.Episode) string {
	switch reason {
	case episode.HaltSuccess:
		return fmt.Sprintf("POTENTIAL FLAG DETECTED: %s", ep.Flag)
	case episode.HaltPendingApproval:
		return FormatPendingAction(ep)
	case episode.HaltStalled:
		return fmt.Sprintf("Episode stalled: step budget exhausted after %d log entries.", len(ep.Log))
	case episode.HaltFinished:
		return "Agent finished without detecting a flag."
	default:
		return fmt.Sprintf("Episode halted: %s", reason)
	}
}

func FormatEpisodeMetrics(em *metrics.EpisodeMetrics) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Episode %s took %dms (%s)\n", em.EpisodeID, em.DurationMs, em.Halt))
	for _, s := range em.Stages {
		sb.WriteString(fmt.Sprintf("  %-10s %4dms\n", s.Stage, s.DurationMs))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func truncate(s string) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	if len(s) > maxEntryLength {
		return s[:maxEntryLength] + "..."
	}
	return s
}

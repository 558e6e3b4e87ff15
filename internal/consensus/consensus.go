// Package consensus runs the one-time specialist fan-out. Three personas
// analyze the task concurrently, then a single synthesis call consolidates
// their reports into a joint strategy.
package consensus

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"pwnloop/internal/episode"
	"pwnloop/internal/oracle"
)

// Personas is the fixed specialist panel. Results are collected in this
// order, not completion order, so synthesis input is reproducible.
var Personas = []string{
	"Forensics Investigator (Focus: Metadata, File Formats, Steganography)",
	"Web Exploitation Specialist (Focus: Source Code, HTTP Headers, Injection)",
	"Reverse Engineer (Focus: Binary Analysis, Disassembly, Logic Flows)",
}

type Coordinator struct {
	Client oracle.Client
	Model  string
}

// Run fans out the specialist calls and appends the synthesized strategy to
// the episode log exactly once. A repeat invocation on the same episode is a
// no-op; the Synthesized marker guards it.
func (c *Coordinator) Run(ctx context.Context, ep *episode.Episode) {
	if ep.Synthesized {
		return
	}

	reports := c.consult(ctx, ep.Task, ep.LastOutput)
	debate := strings.Join(reports, "\n\n")

	synthesis, err := c.Client.Generate(ctx, buildSynthesisPrompt(ep.Task.FlagFormat, debate), c.Model)
	if err != nil {
		ep.Append(fmt.Sprintf("Expert consensus error: %v", err))
	} else {
		ep.Synthesis = synthesis
		ep.Append(fmt.Sprintf("Expert consensus strategy:\n%s", synthesis))
	}
	ep.Synthesized = true
}

// consult runs every persona concurrently with a worker cap equal to the
// panel size and joins all of them. One specialist's failure becomes an
// inline error note and never aborts the others.
func (c *Coordinator) consult(ctx context.Context, task episode.Task, filesInfo string) []string {
	reports := make([]string, len(Personas))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(Personas))
	for i, persona := range Personas {
		g.Go(func() error {
			resp, err := c.Client.Generate(gctx, buildSpecialistPrompt(persona, task, filesInfo), c.Model)
			if err != nil {
				reports[i] = fmt.Sprintf("### %s\n[Error: %v]", persona, err)
				return nil
			}
			reports[i] = fmt.Sprintf("### %s\n%s", persona, resp)
			return nil
		})
	}
	// Workers never return errors, so Wait is purely the join barrier.
	_ = g.Wait()

	return reports
}

func buildSpecialistPrompt(persona string, task episode.Task, filesInfo string) string {
	var sb strings.Builder
	sb.WriteString(oracle.SystemPrompt())
	sb.WriteString("\nYOU ARE SPECIALIZED SUB-AGENT: " + persona + "\n\n")
	sb.WriteString(fmt.Sprintf("Task: Analyze the CTF Challenge '%s'.\n", task.Name))
	sb.WriteString(fmt.Sprintf("Description: %s\n", task.Description))
	sb.WriteString(fmt.Sprintf("Flag Format: %s\n", task.FlagFormat))
	sb.WriteString(fmt.Sprintf("Files Available: %s\n\n", filesInfo))
	sb.WriteString("Your Goal: specific to your specialization, identify potential vectors and a recommended first step.\n")
	sb.WriteString("Be concise. Focus ONLY on your domain.\n")
	return sb.String()
}

func buildSynthesisPrompt(flagFormat, debate string) string {
	var sb strings.Builder
	sb.WriteString(oracle.SystemPrompt())
	sb.WriteString("\nTask: You are the Lead Strategist. Synthesize the following expert reports into a single, cohesive Execution Plan.\n")
	sb.WriteString(fmt.Sprintf("Flag Format: %s\n\n", flagFormat))
	sb.WriteString("[EXPERT REPORTS]\n")
	sb.WriteString(debate)
	sb.WriteString("\n\nDecide the single most likely path to the flag.\n")
	sb.WriteString("Provide a \"Joint Strategy\" and the immediate next step.\n")
	return sb.String()
}

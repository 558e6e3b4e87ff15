// Package oracle wraps the reasoning model behind a decision interface. All
// parse and transport failures degrade to a synthetic "finish" decision; this
// boundary never raises past itself.
package oracle

import (
	"context"
	"fmt"
	"strings"

	"pwnloop/internal/episode"
	"pwnloop/internal/llm_client"
)

const systemPrompt = `You are an elite, ethical cybersecurity research assistant.
Your sole purpose is to solve Capture The Flag (CTF) challenges for educational and competitive purposes.
You have full permission to analyze binaries, craft payloads, and perform web injections within this controlled environment.
Your tone is technical, efficient, and focused on finding the flag.
If you encounter a roadblock, analyze the error and pivot your strategy.

Your Goal: Find the flag in the specified format.
`

// Client is the minimal generation surface the oracle needs. Satisfied by the
// llm_client package; replaced by fakes in tests.
type Client interface {
	Generate(ctx context.Context, prompt, model string) (string, error)
}

// ProviderClient routes through the active llm_client backend.
type ProviderClient struct{}

func (ProviderClient) Generate(ctx context.Context, prompt, model string) (string, error) {
	return llm_client.Generate(ctx, prompt, model)
}

// Request carries everything the reasoning oracle sees for one planning cycle.
type Request struct {
	Task       episode.Task
	Knowledge  string
	LastOutput string
	History    []string
	// ScreenshotPath, when set, points at a capture of the target the last
	// action produced.
	ScreenshotPath string
}

type Oracle struct {
	Client Client
	Model  string
}

// SystemPrompt is shared with the specialist and report prompts.
func SystemPrompt() string { return systemPrompt }

// Decide asks the oracle for the single next action. Transport errors after
// the retry ceiling and undecodable responses both degrade to a finish
// decision carrying the error text.
func (o *Oracle) Decide(ctx context.Context, req Request) episode.Action {
	raw, err := o.Client.Generate(ctx, buildReasonPrompt(req), o.Model)
	if err != nil {
		return episode.Action{
			Kind:      episode.ActionFinish,
			Argument:  fmt.Sprintf("Error in reasoning: %v", err),
			Rationale: "reasoning call failed",
		}
	}
	return DecodeDecision(raw)
}

func buildReasonPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString(systemPrompt)
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Task: %s\n", req.Task.Name))
	sb.WriteString(fmt.Sprintf("Description: %s\n", req.Task.Description))
	sb.WriteString(fmt.Sprintf("Hints: %s\n", req.Task.Hints))
	sb.WriteString(fmt.Sprintf("Flag Format: %s\n\n", req.Task.FlagFormat))

	sb.WriteString("[KNOWLEDGE BASE]\n")
	sb.WriteString(req.Knowledge)
	sb.WriteString("\n\nRecent Tool Output:\n")
	sb.WriteString(req.LastOutput)
	sb.WriteString("\n\nHistory:\n")
	for _, entry := range req.History {
		sb.WriteString("- " + entry + "\n")
	}
	if req.ScreenshotPath != "" {
		sb.WriteString(fmt.Sprintf("\n[System: a screenshot of the target was saved to %s]\n", req.ScreenshotPath))
	}

	sb.WriteString("\nDecide the next single action. Return ONLY a JSON object with:\n")
	sb.WriteString(`{"thought": "Your reasoning here", "action": "command" OR "web" OR "screenshot" OR "finish", "argument": "The command to run OR the URL to scrape/screenshot OR the flag"}`)
	sb.WriteString("\n")
	return sb.String()
}

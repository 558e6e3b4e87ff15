// Package report turns a concluded episode into a markdown write-up.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pwnloop/internal/episode"
	"pwnloop/internal/oracle"
)

type Writer struct {
	Client oracle.Client
	Model  string
}

// Generate asks the oracle for a write-up of the solved episode.
func (w *Writer) Generate(ctx context.Context, ep *episode.Episode) (string, error) {
	out, err := w.Client.Generate(ctx, buildWriteupPrompt(ep), w.Model)
	if err != nil {
		return "", fmt.Errorf("generate write-up: %w", err)
	}
	return out, nil
}

func buildWriteupPrompt(ep *episode.Episode) string {
	var sb strings.Builder
	sb.WriteString(oracle.SystemPrompt())
	sb.WriteString(fmt.Sprintf("\nTask: Generate a professional CTF write-up for the challenge '%s'.\n\n", ep.Task.Name))
	sb.WriteString(fmt.Sprintf("Challenge Description: %s\n", ep.Task.Description))
	flag := ep.Flag
	if flag == "" {
		flag = "N/A"
	}
	sb.WriteString(fmt.Sprintf("Flag Found: %s\n\n", flag))
	sb.WriteString("Execution History:\n")
	for _, entry := range ep.Log {
		sb.WriteString("- " + entry + "\n")
	}
	sb.WriteString("\nOutput Format: Markdown. Include 'Challenge Overview', 'Reconnaissance', 'Exploitation/Solution', and 'The Flag'.\n")
	return sb.String()
}

// Save persists the write-up atomically: write to a temp file in the target
// directory, then rename over the destination.
func Save(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".report-*")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("finalize report: %w", err)
	}
	return nil
}

package consensus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pwnloop/internal/episode"
)

// scriptedClient answers specialist prompts per persona and records the
// synthesis prompt. Specialist calls finish in reverse spawn order to prove
// collection is persona-stable, not completion-ordered.
type scriptedClient struct {
	mu              sync.Mutex
	specialistCalls int32
	synthesisCalls  int32
	synthesisPrompt string
	failPersona     string
	failSynthesis   bool
}

func (s *scriptedClient) Generate(_ context.Context, prompt, _ string) (string, error) {
	if strings.Contains(prompt, "Lead Strategist") {
		atomic.AddInt32(&s.synthesisCalls, 1)
		s.mu.Lock()
		s.synthesisPrompt = prompt
		s.mu.Unlock()
		if s.failSynthesis {
			return "", errors.New("synthesis backend down")
		}
		return "joint strategy: inspect the binary first", nil
	}

	n := atomic.AddInt32(&s.specialistCalls, 1)
	// Later spawns answer sooner.
	time.Sleep(time.Duration(30-10*n) * time.Millisecond)

	for i, persona := range Personas {
		if strings.Contains(prompt, persona) {
			if persona == s.failPersona {
				return "", errors.New("specialist unavailable")
			}
			return fmt.Sprintf("analysis %d", i), nil
		}
	}
	return "", errors.New("unknown persona prompt")
}

func newEpisode() *episode.Episode {
	return episode.New("test", episode.Task{Name: "chal", Description: "desc", FlagFormat: "CTF{"})
}

func TestRunCollectsReportsInPersonaOrder(t *testing.T) {
	client := &scriptedClient{}
	c := &Coordinator{Client: client}
	ep := newEpisode()

	c.Run(context.Background(), ep)

	if !ep.Synthesized {
		t.Fatal("episode not marked synthesized")
	}
	prompt := client.synthesisPrompt
	idx0 := strings.Index(prompt, "analysis 0")
	idx1 := strings.Index(prompt, "analysis 1")
	idx2 := strings.Index(prompt, "analysis 2")
	if idx0 < 0 || idx1 < 0 || idx2 < 0 {
		t.Fatalf("synthesis prompt missing specialist reports:\n%s", prompt)
	}
	if !(idx0 < idx1 && idx1 < idx2) {
		t.Errorf("reports not in persona order: positions %d %d %d", idx0, idx1, idx2)
	}
}

func TestRunSpecialistFailureBecomesInlineNote(t *testing.T) {
	client := &scriptedClient{failPersona: Personas[1]}
	c := &Coordinator{Client: client}
	ep := newEpisode()

	c.Run(context.Background(), ep)

	if client.synthesisCalls != 1 {
		t.Fatalf("synthesis calls = %d, want 1 despite specialist failure", client.synthesisCalls)
	}
	if !strings.Contains(client.synthesisPrompt, "[Error: specialist unavailable]") {
		t.Errorf("synthesis prompt missing the inline error note:\n%s", client.synthesisPrompt)
	}
	// The surviving specialists still contribute.
	if !strings.Contains(client.synthesisPrompt, "analysis 0") || !strings.Contains(client.synthesisPrompt, "analysis 2") {
		t.Errorf("synthesis prompt missing surviving reports")
	}
}

func TestRunIsIdempotentPerEpisode(t *testing.T) {
	client := &scriptedClient{}
	c := &Coordinator{Client: client}
	ep := newEpisode()

	c.Run(context.Background(), ep)
	logLen := len(ep.Log)
	c.Run(context.Background(), ep)
	c.Run(context.Background(), ep)

	if client.synthesisCalls != 1 {
		t.Errorf("synthesis calls = %d, want exactly 1 per episode", client.synthesisCalls)
	}
	if client.specialistCalls != int32(len(Personas)) {
		t.Errorf("specialist calls = %d, want %d", client.specialistCalls, len(Personas))
	}
	if len(ep.Log) != logLen {
		t.Errorf("log grew on repeat invocation")
	}
}

func TestRunSynthesisFailureLogsErrorNote(t *testing.T) {
	client := &scriptedClient{failSynthesis: true}
	c := &Coordinator{Client: client}
	ep := newEpisode()

	c.Run(context.Background(), ep)

	if !ep.Synthesized {
		t.Fatal("episode must be marked synthesized even on synthesis failure")
	}
	if ep.Synthesis != "" {
		t.Errorf("synthesis cached despite failure: %q", ep.Synthesis)
	}
	found := false
	for _, entry := range ep.Log {
		if strings.Contains(entry, "Expert consensus error") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an error note in the log, got %v", ep.Log)
	}
}

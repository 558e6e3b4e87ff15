package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pwnloop/internal/episode"
)

type stubClient struct {
	prompt string
}

func (s *stubClient) Generate(_ context.Context, prompt, _ string) (string, error) {
	s.prompt = prompt
	return "# Write-up\nSolved it.", nil
}

func TestGeneratePromptIncludesHistoryAndFlag(t *testing.T) {
	ep := episode.New("ep", episode.Task{Name: "Crypto 200", Description: "break the cipher"})
	ep.Append("Observing challenge: Crypto 200")
	ep.Append("Ran command: openssl enc -d ...")
	ep.Flag = "CTF{rot13}"

	client := &stubClient{}
	w := &Writer{Client: client}

	out, err := w.Generate(context.Background(), ep)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Write-up") {
		t.Errorf("unexpected write-up: %q", out)
	}
	for _, want := range []string{"Crypto 200", "break the cipher", "CTF{rot13}", "Ran command: openssl"} {
		if !strings.Contains(client.prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestSaveAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reports", "writeup.md")

	if err := Save(path, "content v1"); err != nil {
		t.Fatal(err)
	}
	if err := Save(path, "content v2"); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "content v2" {
		t.Errorf("file content = %q, want latest write", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("leftover temp files: %v", entries)
	}
}

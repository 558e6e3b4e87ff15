// Package knowledge is a naive keyword-overlap retriever over a local notes
// directory. Good enough to surface prior write-ups to the reasoning prompt.
package knowledge

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// EmptyResult is the explicit sentinel for a search with no hits.
const EmptyResult = "No relevant knowledge found in reference library."

const (
	snippetLen = 500
	topK       = 3
)

type Base struct {
	Dir string
}

func New(dir string) (*Base, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Base{Dir: dir}, nil
}

// Search scores every .txt/.md file by query-token overlap and returns the
// top snippets, or EmptyResult.
func (b *Base) Search(query string) string {
	type hit struct {
		score   int
		snippet string
	}

	tokens := strings.Fields(strings.ToLower(query))
	var hits []hit

	_ = filepath.WalkDir(b.Dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		ext := filepath.Ext(d.Name())
		if ext != ".txt" && ext != ".md" {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		content := string(raw)
		lower := strings.ToLower(content)

		score := 0
		for _, tok := range tokens {
			if strings.Contains(lower, tok) {
				score++
			}
		}
		if score == 0 {
			return nil
		}

		snippet := content
		if len(snippet) > snippetLen {
			snippet = snippet[:snippetLen]
		}
		snippet = strings.ReplaceAll(snippet, "\n", " ")
		hits = append(hits, hit{score: score, snippet: "[" + d.Name() + "]: " + snippet + "..."})
		return nil
	})

	if len(hits) == 0 {
		return EmptyResult
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.snippet
	}
	return strings.Join(out, "\n\n")
}

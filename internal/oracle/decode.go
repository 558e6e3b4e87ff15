package oracle

import (
	"encoding/json"
	"strings"

	"pwnloop/internal/episode"
)

// DecodeDecision parses the oracle's free-text response into an action.
// Code-fence markers are stripped, then a strict parse is attempted, then an
// escape-repair pass; when everything fails the result is a finish decision
// flagged as a parse error. It never returns an error.
func DecodeDecision(raw string) episode.Action {
	text := stripFences(raw)

	var decision episode.Action
	if err := json.Unmarshal([]byte(text), &decision); err == nil {
		return normalize(decision)
	}

	// Models occasionally emit lone backslashes inside JSON strings. Double
	// every backslash, then collapse the quadruples that doubling created in
	// already-valid escapes.
	repaired := strings.ReplaceAll(text, `\`, `\\`)
	repaired = strings.ReplaceAll(repaired, `\\\\`, `\\`)
	if err := json.Unmarshal([]byte(repaired), &decision); err == nil {
		return normalize(decision)
	}

	return episode.Action{
		Kind:      episode.ActionFinish,
		Argument:  "JSON Error",
		Rationale: "JSON parse error in oracle response",
	}
}

func stripFences(raw string) string {
	text := strings.ReplaceAll(raw, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

func normalize(a episode.Action) episode.Action {
	a.Kind = episode.ActionKind(strings.ToLower(strings.TrimSpace(string(a.Kind))))
	return a
}

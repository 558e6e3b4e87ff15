package policy

import "strings"

// Risk is the classifier's verdict on a candidate shell command.
type Risk string

const (
	Safe     Risk = "SAFE"
	HighRisk Risk = "HIGH_RISK"
	Blocked  Risk = "BLOCKED"
)

// Destructive commands that are never executed, approval or not.
// Matched against the lowercased command.
var blockedPatterns = []string{
	"rm -rf /",
	":(){",
}

// Sensitive host paths. Checked case-sensitive, raw substring.
var forbiddenPaths = []string{
	"/etc", "/var", "/usr", "/bin", "/sbin", "~/.ssh", "~/.aws", ".env",
}

// Network egress, reverse shells, privilege and mode changes.
// Checked case-insensitive.
var highRiskKeywords = []string{
	"rm -rf", "mkfs", "dd if=/dev", ":(){ :|:& };:",
	"wget", "curl", "nc ", "ncat", "bash -i", "/dev/tcp",
	"chmod +x", "chown", "mv /",
}

// Classify returns the risk tier for a shell command. First match wins:
// blocked patterns and forbidden paths, then high-risk keywords, then
// relative-path execution / direct interpreter invocation, else SAFE.
// It is total: any input maps to exactly one tier.
func Classify(command string) Risk {
	lower := strings.ToLower(command)

	for _, pat := range blockedPatterns {
		if strings.Contains(lower, pat) {
			return Blocked
		}
	}
	for _, path := range forbiddenPaths {
		if strings.Contains(command, path) {
			return Blocked
		}
	}

	for _, kw := range highRiskKeywords {
		if strings.Contains(lower, kw) {
			return HighRisk
		}
	}

	if strings.Contains(command, "./") || strings.Contains(command, "python") || strings.Contains(command, "sh ") {
		return HighRisk
	}

	return Safe
}

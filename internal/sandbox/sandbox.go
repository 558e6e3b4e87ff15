// Package sandbox executes shell commands inside a persistent container.
// Isolation is the container runtime's job; this package only drives it and
// converts every failure into ordinary tool-output text so the control loop
// never sees an executor error.
package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultImage   = "kalilinux/kali-rolling"
	containerName  = "pwnloop-session"
	defaultTimeout = 30 * time.Second

	// TimeoutSentinel is returned as recoverable tool output when a command
	// exceeds its deadline.
	TimeoutSentinel = "Error: command timed out in sandbox."
)

type Runner struct {
	Image         string
	Container     string
	HostWorkspace string
	Timeout       time.Duration

	// docker invokes the container CLI; swapped out in tests.
	docker func(ctx context.Context, args ...string) ([]byte, error)
}

// New prepares a runner backed by a persistent container with the host
// workspace mounted at /workspace. Fails only when the container runtime
// itself is unavailable.
func New(workspaceDir string) (*Runner, error) {
	abs, err := filepath.Abs(workspaceDir)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	r := &Runner{
		Image:         defaultImage,
		Container:     containerName,
		HostWorkspace: abs,
		Timeout:       defaultTimeout,
		docker:        runDockerCLI,
	}
	if _, err := r.docker(context.Background(), "--version"); err != nil {
		return nil, fmt.Errorf("container runtime unavailable: %w", err)
	}
	if err := r.ensureRunning(context.Background()); err != nil {
		return nil, err
	}
	return r, nil
}

func runDockerCLI(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, "docker", args...).CombinedOutput()
}

func (r *Runner) ensureRunning(ctx context.Context) error {
	out, err := r.docker(ctx, "inspect", "-f", "{{.State.Running}}", r.Container)
	if err == nil && strings.Contains(strings.TrimSpace(string(out)), "true") {
		return nil
	}

	// Stopped or stale container gets replaced.
	_, _ = r.docker(ctx, "rm", "-f", r.Container)

	_, err = r.docker(ctx,
		"run", "-d",
		"--name", r.Container,
		"--memory=2g",
		"--cpus=1.0",
		"--read-only",
		"--tmpfs", "/tmp",
		"--tmpfs", "/run",
		"-v", r.HostWorkspace+":/workspace",
		"-w", "/workspace",
		r.Image,
		"tail", "-f", "/dev/null",
	)
	if err != nil {
		return fmt.Errorf("start sandbox container: %w", err)
	}
	return nil
}

// Run executes command through the container shell and returns the combined
// output. Timeouts and exec failures come back as sentinel text, not errors.
func (r *Runner) Run(ctx context.Context, command string) string {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := r.docker(execCtx, "exec", r.Container, "/bin/sh", "-c", command)
	if execCtx.Err() == context.DeadlineExceeded {
		return TimeoutSentinel
	}
	if err != nil {
		// Non-zero exit still carries useful combined output.
		if len(out) > 0 {
			return string(out)
		}
		return fmt.Sprintf("Error executing command in sandbox: %v", err)
	}
	return string(out)
}

// Inspect previews a workspace file from the host side, for the observe
// stage. Paths resolving outside the workspace are refused.
func (r *Runner) Inspect(file string) string {
	target := filepath.Join(r.HostWorkspace, file)
	abs, err := filepath.Abs(target)
	if err != nil || !strings.HasPrefix(abs, r.HostWorkspace+string(filepath.Separator)) {
		return "Security violation: access denied to path outside workspace."
	}

	f, err := os.Open(abs)
	if err != nil {
		return fmt.Sprintf("Error: file %s not found.", file)
	}
	defer f.Close()

	buf := make([]byte, 2000)
	n, _ := f.Read(buf)
	return fmt.Sprintf("File content preview:\n%s", strings.ToValidUTF8(string(buf[:n]), "."))
}

// Reset removes the session container so the next episode starts clean.
func (r *Runner) Reset(ctx context.Context) error {
	if _, err := r.docker(ctx, "rm", "-f", r.Container); err != nil {
		return fmt.Errorf("remove sandbox container: %w", err)
	}
	return nil
}

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"pwnloop/internal/consensus"
	"pwnloop/internal/display"
	"pwnloop/internal/episode"
	"pwnloop/internal/knowledge"
	"pwnloop/internal/listener"
	"pwnloop/internal/logger"
	"pwnloop/internal/oracle"
	"pwnloop/internal/orchestrator"
	"pwnloop/internal/report"
	"pwnloop/internal/sandbox"
	"pwnloop/internal/webtool"
)

var (
	workspaceDir string
	knowledgeDir string
	modelName    string
)

var rootCmd = &cobra.Command{
	Use:   "pwnloop",
	Short: "Autonomous CTF-solving loop with a human approval gate",
	Long: `pwnloop runs an autonomous problem-solving episode: it observes a challenge,
consults a specialist panel once, then loops plan -> act -> verify through a
sandboxed executor until it finds a flag, needs your approval for a risky
command, or runs out of budget.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := listener.Init(); err != nil {
			return fmt.Errorf("init terminal input: %w", err)
		}
		defer listener.Close()

		runner, err := sandbox.New(workspaceDir)
		if err != nil {
			return err
		}
		kb, err := knowledge.New(knowledgeDir)
		if err != nil {
			return err
		}

		client := oracle.ProviderClient{}
		ctrl := &orchestrator.Controller{
			Oracle:    &oracle.Oracle{Client: client, Model: modelName},
			Consensus: &consensus.Coordinator{Client: client, Model: modelName},
			Exec:      runner,
			Web:       webtool.New(runner.HostWorkspace),
			Knowledge: kb,
		}
		writer := &report.Writer{Client: client, Model: modelName}

		// Graceful shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-c
			fmt.Println("\nGoodbye!")
			listener.Close()
			os.Exit(0)
		}()

		listener.Println("Commands: solve, reset, exit")
		for {
			input := strings.ToLower(listener.GetInput())
			switch input {
			case "exit":
				fmt.Println("Goodbye!")
				return nil
			case "reset":
				if err := runner.Reset(cmd.Context()); err != nil {
					listener.Println(fmt.Sprintf("[Reset FAILED] %v", err))
					continue
				}
				listener.Println("Sandbox container removed. It restarts with the next episode.")
			case "solve":
				runEpisode(cmd.Context(), ctrl, writer, promptTask())
			case "":
				continue
			default:
				listener.Println("Unknown command. Available: solve, reset, exit")
			}
		}
	},
}

// promptTask collects the challenge briefing from the operator.
func promptTask() episode.Task {
	task := episode.Task{
		Name:        listener.Prompt("Challenge name > "),
		Description: listener.Prompt("Description > "),
		Hints:       listener.Prompt("Hints (optional) > "),
		FlagFormat:  listener.Prompt("Flag format (prefix like CTF{ or 'unknown') > "),
	}
	if task.FlagFormat == "" {
		task.FlagFormat = "CTF{"
	}
	if files := listener.Prompt("Challenge files in workspace, comma-separated (optional) > "); files != "" {
		for _, f := range strings.Split(files, ",") {
			if f = strings.TrimSpace(f); f != "" {
				task.Files = append(task.Files, f)
			}
		}
	}
	return task
}

// runEpisode drives one episode to its end, re-invoking the controller after
// every operator decision. The episode context survives each suspension; the
// controller's stage markers make re-entry cheap.
func runEpisode(ctx context.Context, ctrl *orchestrator.Controller, writer *report.Writer, task episode.Task) {
	ep := episode.New(uuid.New().String()[:8], task)
	listener.Println(fmt.Sprintf("[Episode %s] started for %q", ep.ID, task.Name))

	for {
		halt, em := ctrl.Run(ctx, ep)
		listener.Println(display.FormatEpisode(ep))
		listener.Println(display.FormatEpisodeMetrics(em))
		logger.Printf("episode %s halt=%s", ep.ID, halt)

		switch halt {
		case episode.HaltPendingApproval:
			listener.Println(display.FormatPendingAction(ep))
			if listener.AskYesNo("Approve this action?") {
				if err := ep.Grant(); err != nil {
					listener.Println(fmt.Sprintf("[Approval FAILED] %v", err))
					return
				}
			} else {
				if err := ep.Deny(); err != nil {
					listener.Println(fmt.Sprintf("[Denial FAILED] %v", err))
					return
				}
			}
			// Loop re-invokes the controller with the decision applied.

		case episode.HaltSuccess:
			listener.Println(display.FormatHalt(halt, ep))
			if listener.AskYesNo("Is this flag correct?") {
				saveWriteup(ctx, writer, ep)
				return
			}
			ep.RejectSignal(fmt.Sprintf(
				"Operator feedback: the flag '%s' is incorrect. Disregard it and continue searching.", ep.Flag))

		default:
			listener.Println(display.FormatHalt(halt, ep))
			return
		}
	}
}

func saveWriteup(ctx context.Context, writer *report.Writer, ep *episode.Episode) {
	text, err := writer.Generate(ctx, ep)
	if err != nil {
		listener.Println(fmt.Sprintf("[Write-up FAILED] %v", err))
		return
	}
	path := filepath.Join(workspaceDir, fmt.Sprintf("writeup_%s.md", ep.ID))
	if err := report.Save(path, text); err != nil {
		listener.Println(fmt.Sprintf("[Write-up FAILED] %v", err))
		return
	}
	listener.Println("Write-up saved to " + path)
}

func init() {
	rootCmd.Flags().StringVar(&workspaceDir, "workspace", "sandbox_workspace", "host directory mounted into the sandbox")
	rootCmd.Flags().StringVar(&knowledgeDir, "knowledge", "knowledge", "directory of .txt/.md notes for retrieval")
	rootCmd.Flags().StringVar(&modelName, "model", "", "model override for the active backend")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

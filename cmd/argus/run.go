package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kadirpekel/argus/pkg/agent"
	"github.com/kadirpekel/argus/pkg/config"
)

// RunCmd runs a single goal to completion and reports the outcome. The
// process exit code mirrors the terminal reason: 0 done, 1 fatal error,
// 2 step budget, 130 cancelled.
type RunCmd struct {
	Goal string `arg:"" help:"Goal to accomplish, in plain language."`

	MaxSteps int           `name:"max-steps" help:"Step budget override." placeholder:"N"`
	Headless *bool         `negatable:"" help:"Run the browser headless (--no-headless opens a window)."`
	NoLLM    bool          `name:"no-llm" help:"Use the deterministic fallback planner instead of an LLM."`
	Verbose  bool          `short:"v" help:"Debug logging plus a metrics dump after the run."`
	Timeout  time.Duration `help:"Abort the run after this duration (0 = no limit)."`

	exitCode int
}

func (c *RunCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Interrupt received, cancelling run")
		cancel()
	}()

	cfg, loader, err := loadConfig(ctx, cli.Config, config.ZeroConfigOptions{
		Headless: c.Headless,
		MaxSteps: c.MaxSteps,
	})
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}
	c.applyOverrides(cfg)

	ag, release, err := buildAgent(ctx, cfg, c.NoLLM)
	if err != nil {
		return err
	}
	defer release()

	runCtx := ctx
	if c.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(ctx, c.Timeout)
		defer cancelTimeout()
	}

	res, err := ag.Run(runCtx, c.Goal)
	if err != nil {
		return err
	}

	c.printResult(res, ag)
	c.exitCode = exitCodeFor(res.Reason)
	return nil
}

// applyOverrides forces CLI flags over whatever the config file said.
func (c *RunCmd) applyOverrides(cfg *config.Config) {
	if c.MaxSteps > 0 {
		cfg.Agent.MaxSteps = c.MaxSteps
	}
	if c.Headless != nil {
		cfg.Browser.Headless = c.Headless
	}
}

func (c *RunCmd) printResult(res *agent.Result, ag *agent.Agent) {
	status := "failed"
	if res.Success {
		status = "succeeded"
	}
	fmt.Printf("\nRun %s (%s)\n", status, res.Reason)
	fmt.Printf("  Run ID:   %s\n", res.RunID)
	fmt.Printf("  Goal:     %s\n", res.Goal)
	fmt.Printf("  Steps:    %d\n", res.Steps)
	fmt.Printf("  Duration: %s\n", res.Duration.Round(time.Millisecond))
	if res.FinalObservation != "" {
		fmt.Printf("  Final:    %s\n", res.FinalObservation)
	}

	if c.Verbose {
		if dump, err := json.MarshalIndent(ag.Metrics(), "", "  "); err == nil {
			fmt.Printf("\nMetrics:\n%s\n", dump)
		}
	}
}

// exitCodeFor maps a terminal reason to the process exit code.
func exitCodeFor(reason agent.Reason) int {
	switch reason {
	case agent.ReasonDone:
		return 0
	case agent.ReasonFatalError:
		return 1
	case agent.ReasonStepBudget:
		return 2
	case agent.ReasonCancelled:
		return 130
	default:
		return 1
	}
}

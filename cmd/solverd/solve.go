package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"solverd/internal/config"
	"solverd/internal/orchestrator"
	"solverd/pkg/types"
)

func buildSolveCmd(cfg *config.Config) *cobra.Command {
	var (
		asJSON bool
		stream bool
	)
	cmd := &cobra.Command{
		Use:     "solve <problem>",
		Short:   "Solve a problem once and print the result",
		Example: "  solverd solve \"Solve 2x + 3 = 7\"",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			problem := strings.Join(args, " ")
			return runSolve(cfg, problem, asJSON, stream)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit NDJSON lines instead of plain text")
	cmd.Flags().BoolVar(&stream, "stream", true, "Stream tokens as they arrive")
	return cmd
}

func runSolve(cfg *config.Config, problem string, asJSON, stream bool) error {
	logger := newLogger(cfg.LogLevel)
	orch := buildOrchestrator(cfg, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	orch.Start(ctx)

	req := types.SolveRequest{Problem: problem, Stream: stream}
	if asJSON {
		return orch.SolveStream(ctx, req, os.Stdout, nil)
	}

	opts := orchestrator.Options{}
	if stream {
		opts.OnToken = func(tok string) { fmt.Print(tok) }
	}
	res, err := orch.Solve(ctx, problem, opts)
	if err != nil {
		return err
	}
	if stream {
		// Token stream already printed the full output.
		fmt.Println()
	} else {
		for _, st := range res.Steps {
			fmt.Printf("Step %d: %s\n%s\n", st.Index, st.Title, st.Body)
		}
	}
	path := "heuristic"
	if res.WasNativeExecution {
		path = "native"
	}
	fmt.Printf("Answer: %s\n(%s, %d tokens, %.1f tok/s)\n", res.Text, path, res.TokenCount, res.TokensPerSecond)
	return nil
}

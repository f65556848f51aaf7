package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

type batchOptions struct {
	workers int
	at      string
	output  string
	timeout time.Duration
}

func newBatchCmd(a *app) *cobra.Command {
	o := &batchOptions{}
	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Classify many TLEs from a file in parallel",
		Long: `Batch classifies every element set in a file concurrently.

The file is either TLE text (2-line or 3-line entries, as served by CelesTrak)
or JSON (an array of requests, or {"items": [...]}). Use "-" for stdin.
Every entry is evaluated at the same instant.

Example:
  ssa-classifier batch active.tle
  ssa-classifier batch requests.json --workers 8 --output json
  curl -s 'https://celestrak.org/NORAD/elements/gp.php?GROUP=stations&FORMAT=tle' | ssa-classifier batch -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBatch(cmd, args[0], o)
		},
	}

	f := cmd.Flags()
	f.IntVar(&o.workers, "workers", 0, "number of concurrent workers (default from config)")
	f.StringVar(&o.at, "at", "", "evaluation time, RFC3339 (default: now)")
	f.StringVarP(&o.output, "output", "o", outputText, "output format (text, json, yaml)")
	f.DurationVar(&o.timeout, "timeout", 10*time.Minute, "total timeout for the batch")
	return cmd
}

func (a *app) runBatch(cmd *cobra.Command, path string, o *batchOptions) error {
	if err := validOutput(o.output); err != nil {
		return err
	}
	now, err := evalTime(o.at)
	if err != nil {
		return err
	}

	rc, err := openInput(path, cmd.InOrStdin())
	if err != nil {
		return err
	}
	reqs, err := readRequests(rc)
	rc.Close()
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		return fmt.Errorf("%s holds no element sets", path)
	}

	workers := o.workers
	if workers <= 0 {
		workers = a.cfg.Server.Workers
	}

	e, err := a.engine(a.logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	items, err := e.ClassifyBatch(ctx, reqs, now, workers)
	if err != nil {
		return fmt.Errorf("batch interrupted: %w", err)
	}

	out := cmd.OutOrStdout()
	if o.output == outputText {
		renderBatch(out, items, reqs)
		return nil
	}
	return writeStructured(out, o.output, map[string]any{
		"items":         items,
		"model_version": e.Version(),
		"evaluated_at":  now,
	})
}

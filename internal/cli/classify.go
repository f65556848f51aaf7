package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/totoccar/SpaceSituationalAwareness/internal/engine"
)

type classifyOptions struct {
	line1     string
	line2     string
	file      string
	name      string
	id        string
	threshold float64
	at        string
	output    string
}

func newClassifyCmd(a *app) *cobra.Command {
	o := &classifyOptions{}
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a single TLE",
		Long: `Classify one Two-Line Element set, given either as --line1/--line2 or
as a file (2 or 3 lines, "-" for stdin).

Example:
  ssa-classifier classify --line1 "1 25544U ..." --line2 "2 25544 ..." --name "ISS (ZARYA)"
  ssa-classifier classify --file iss.tle --output json
  ssa-classifier classify --file iss.tle --at 2024-02-04T13:09:00Z --threshold 0.8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runClassify(cmd, o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.line1, "line1", "", "TLE line 1")
	f.StringVar(&o.line2, "line2", "", "TLE line 2")
	f.StringVarP(&o.file, "file", "f", "", `TLE file ("-" for stdin)`)
	f.StringVar(&o.name, "name", "", "satellite name hint")
	f.StringVar(&o.id, "id", "", "object ID echoed in the result")
	f.Float64Var(&o.threshold, "threshold", 0, "confidence threshold in [0,1] (default from config)")
	f.StringVar(&o.at, "at", "", "evaluation time, RFC3339 (default: now)")
	f.StringVarP(&o.output, "output", "o", outputText, "output format (text, json, yaml)")
	cmd.MarkFlagsMutuallyExclusive("file", "line1")
	cmd.MarkFlagsMutuallyExclusive("file", "line2")
	return cmd
}

func evalTime(at string) (time.Time, error) {
	if at == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, at)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q, must be RFC3339: %w", at, err)
	}
	return t.UTC(), nil
}

func (a *app) runClassify(cmd *cobra.Command, o *classifyOptions) error {
	if err := validOutput(o.output); err != nil {
		return err
	}
	now, err := evalTime(o.at)
	if err != nil {
		return err
	}

	req := engine.Request{Line1: o.line1, Line2: o.line2}
	if o.file != "" {
		if req, err = requestFromFile(o.file, cmd.InOrStdin()); err != nil {
			return err
		}
	}
	if o.name != "" {
		req.SatelliteName = o.name
	}
	if o.id != "" {
		req.ID = o.id
	}
	if cmd.Flags().Changed("threshold") {
		req.Threshold = &o.threshold
	}

	e, err := a.engine(a.logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	resp, err := e.Classify(req, now)
	if err != nil {
		var ee *engine.Error
		if errors.As(err, &ee) && o.output != outputText {
			if werr := writeStructured(out, o.output, map[string]any{"error": ee}); werr != nil {
				return werr
			}
		} else if errors.As(err, &ee) {
			renderError(cmd.ErrOrStderr(), ee)
		}
		return err
	}

	if o.output == outputText {
		renderResponse(out, resp)
		return nil
	}
	return writeStructured(out, o.output, resp)
}

func requestFromFile(path string, stdin io.Reader) (engine.Request, error) {
	rc, err := openInput(path, stdin)
	if err != nil {
		return engine.Request{}, err
	}
	defer rc.Close()

	reqs, err := readRequests(rc)
	if err != nil {
		return engine.Request{}, err
	}
	if len(reqs) != 1 {
		return engine.Request{}, fmt.Errorf("%s holds %d element sets, want exactly 1 (use batch for more)", path, len(reqs))
	}
	return reqs[0], nil
}

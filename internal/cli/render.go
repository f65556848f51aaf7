package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/totoccar/SpaceSituationalAwareness/internal/catalog"
	"github.com/totoccar/SpaceSituationalAwareness/internal/classify"
	"github.com/totoccar/SpaceSituationalAwareness/internal/engine"
)

// Output formats accepted by --output.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func validOutput(format string) error {
	switch format {
	case outputText, outputJSON, outputYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Faint(true).Width(12)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	classColors = map[classify.Class]lipgloss.Color{
		classify.Payload:    lipgloss.Color("10"),
		classify.RocketBody: lipgloss.Color("11"),
		classify.Debris:     lipgloss.Color("9"),
		classify.Unknown:    lipgloss.Color("8"),
	}
)

func classLabel(c classify.Class) string {
	return lipgloss.NewStyle().Bold(true).Foreground(classColors[c]).Render(string(c))
}

// writeStructured renders v as JSON or YAML.
func writeStructured(w io.Writer, format string, v any) error {
	if format == outputYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func row(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "  %s %s\n", labelStyle.Render(label), value)
}

func renderResponse(w io.Writer, resp *engine.Response) {
	var b strings.Builder

	title := resp.SatelliteName
	if title == "" {
		title = "object"
	}
	if resp.ObjectID != "" {
		title += " [" + resp.ObjectID + "]"
	}
	b.WriteString(titleStyle.Render(title) + "\n")

	row(&b, "class", fmt.Sprintf("%s (confidence %.2f)", classLabel(resp.PredictedClass), resp.Confidence))
	row(&b, "reason", resp.ClassificationReason)
	row(&b, "region", fmt.Sprintf("%s  altitude %.1f km  velocity %.3f km/s",
		resp.Region, resp.OrbitalStats.AltitudeKm, resp.OrbitalStats.VelocityKms))
	row(&b, "proba", fmt.Sprintf("payload %.3f  rocket_body %.3f  debris %.3f",
		resp.Proba.Payload, resp.Proba.RocketBody, resp.Proba.Debris))
	if info := resp.TLEInfo; info != nil {
		epoch := fmt.Sprintf("%s  age %.2f d", info.Epoch.Format(time.RFC3339), info.AgeDays)
		if info.Warning != "" {
			epoch += "  " + warnStyle.Render(info.Warning)
		}
		row(&b, "tle epoch", epoch)
	}
	row(&b, "model", fmt.Sprintf("%s  %.2f ms", resp.Metadata.ModelVersion, resp.Metadata.ProcessingTimeMs))

	fmt.Fprint(w, b.String())
}

func renderError(w io.Writer, e *engine.Error) {
	fmt.Fprintln(w, errStyle.Render(e.Error()))
	if e.TLEInfo != nil {
		fmt.Fprintf(w, "  TLE epoch %s, age %.2f days\n", e.TLEInfo.Epoch.Format(time.RFC3339), e.TLEInfo.AgeDays)
	}
}

func renderBatch(w io.Writer, items []engine.BatchItem, reqs []engine.Request) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "ID", "NAME", "CLASS", "CONF", "REGION", "ALT KM", "NOTE")

	var ok, failed int
	for _, it := range items {
		req := reqs[it.Index]
		if it.Err != nil {
			failed++
			t.Row(strconv.Itoa(it.Index), req.ID, req.SatelliteName, "-", "-", "-", "-", string(it.Err.Kind)+": "+it.Err.Message)
			continue
		}
		ok++
		r := it.Response
		note := ""
		if r.TLEInfo != nil {
			note = r.TLEInfo.Warning
		}
		t.Row(
			strconv.Itoa(it.Index),
			r.ObjectID,
			r.SatelliteName,
			string(r.PredictedClass),
			strconv.FormatFloat(r.Confidence, 'f', 2, 64),
			string(r.Region),
			strconv.FormatFloat(r.OrbitalStats.AltitudeKm, 'f', 1, 64),
			note,
		)
	}

	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "%d classified, %d failed\n", ok, failed)
}

func renderListing(w io.Writer, l *catalog.Listing) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("NORAD", "NAME", "EPOCH", "AGE D", "STALE")
	for _, s := range l.Satellites {
		t.Row(
			strconv.Itoa(s.NoradID),
			s.Name,
			s.TLEInfo.Epoch.Format(time.RFC3339),
			strconv.FormatFloat(s.TLEInfo.AgeDays, 'f', 2, 64),
			strconv.FormatBool(s.TLEInfo.IsStale),
		)
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "%d of %d entries (source %s, fetched %s)\n",
		len(l.Satellites), l.Total, l.Source, l.FetchedAt.Format(time.RFC3339))
}

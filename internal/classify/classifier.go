// Package classify turns a feature set into a class decision.
//
// The Classifier interface is the seam for alternative models; Heuristic is
// the rule-based implementation shipped with the service.
package classify

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/totoccar/SpaceSituationalAwareness/internal/features"
)

// Class is a predicted object class.
type Class string

const (
	Payload    Class = "payload"
	RocketBody Class = "rocket_body"
	Debris     Class = "debris"
	Unknown    Class = "unknown"
)

// concrete lists the probability-bearing classes in tie-break priority order.
var concrete = [...]Class{Payload, RocketBody, Debris}

const (
	// TieEpsilon is the probability gap under which two classes count as tied.
	TieEpsilon = 0.01
	// DefaultThreshold applies when the caller does not pick one.
	DefaultThreshold = 0.6
)

// Probabilities is the normalised distribution over the concrete classes.
type Probabilities struct {
	Payload    float64 `json:"payload" yaml:"payload"`
	RocketBody float64 `json:"rocket_body" yaml:"rocket_body"`
	Debris     float64 `json:"debris" yaml:"debris"`
}

// Of returns the probability of c, 0 for Unknown.
func (p Probabilities) Of(c Class) float64 {
	switch c {
	case Payload:
		return p.Payload
	case RocketBody:
		return p.RocketBody
	case Debris:
		return p.Debris
	}
	return 0
}

// Sum returns the total mass.
func (p Probabilities) Sum() float64 {
	return p.Payload + p.RocketBody + p.Debris
}

// Result is one classification decision.
type Result struct {
	PredictedClass Class
	Probabilities  Probabilities
	// Confidence is the probability of the chosen concrete class. It is
	// reported unchanged when the label falls back to Unknown. On a tie the
	// priority winner may sit up to the tie epsilon below the maximum.
	Confidence float64
	Reason     string
	Features   features.Set
}

// Classifier maps features and an optional name hint to a Result.
type Classifier interface {
	Classify(fs features.Set, nameHint string, threshold float64) (Result, error)
	Version() string
}

// Error reports a classifier contract violation.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return "classification: " + e.Msg }

// ValidThreshold reports whether t is a usable confidence threshold.
func ValidThreshold(t float64) bool {
	return !math.IsNaN(t) && t >= 0 && t <= 1
}

// Weights scale each signal family before the scores are normalised.
type Weights struct {
	NameHint     float64 `mapstructure:"name_hint" yaml:"name_hint" json:"name_hint"`
	Regime       float64 `mapstructure:"regime" yaml:"regime" json:"regime"`
	Plausibility float64 `mapstructure:"plausibility" yaml:"plausibility" json:"plausibility"`
}

// Default signal weights. A name hint is the strongest evidence available
// without a catalogue lookup, so it outweighs the orbit on its own.
const (
	DefaultNameHintWeight     = 3.0
	DefaultRegimeWeight       = 1.5
	DefaultPlausibilityWeight = 1.0
)

// DefaultWeights returns the shipped weights.
func DefaultWeights() Weights {
	return Weights{
		NameHint:     DefaultNameHintWeight,
		Regime:       DefaultRegimeWeight,
		Plausibility: DefaultPlausibilityWeight,
	}
}

// Validate rejects negative or non-finite weights.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"name_hint":    w.NameHint,
		"regime":       w.Regime,
		"plausibility": w.Plausibility,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("weight %s must be a finite non-negative number, got %v", name, v)
		}
	}
	return nil
}

// HeuristicVersion is reported as the model version of Heuristic.
const HeuristicVersion = "heuristic-v1.0"

// Heuristic is a deterministic weighted-signal classifier. It holds no
// mutable state and is safe for concurrent use.
type Heuristic struct {
	weights Weights
}

// NewHeuristic returns a Heuristic using w.
func NewHeuristic(w Weights) *Heuristic {
	return &Heuristic{weights: w}
}

// Version implements Classifier.
func (h *Heuristic) Version() string { return HeuristicVersion }

// Weights returns the weights in use.
func (h *Heuristic) Weights() Weights { return h.weights }

// contribution is one fired signal after weighting.
type contribution struct {
	label  string
	scores [3]float64 // indexed like concrete
}

// Classify implements Classifier.
func (h *Heuristic) Classify(fs features.Set, nameHint string, threshold float64) (Result, error) {
	if !ValidThreshold(threshold) {
		return Result{}, &Error{Msg: fmt.Sprintf("threshold %v outside [0,1]", threshold)}
	}

	var fired []contribution
	for _, s := range []struct {
		weight float64
		eval   func() (signal, bool)
	}{
		{h.weights.NameHint, func() (signal, bool) { return nameSignal(nameHint) }},
		{h.weights.Regime, func() (signal, bool) { return regimeSignal(fs) }},
		{h.weights.Plausibility, func() (signal, bool) { return plausibilitySignal(fs) }},
	} {
		sig, ok := s.eval()
		if !ok || s.weight == 0 {
			continue
		}
		c := contribution{label: sig.label}
		for i := range c.scores {
			c.scores[i] = s.weight * sig.scores[i]
		}
		fired = append(fired, c)
	}

	var raw [3]float64
	for _, c := range fired {
		for i := range raw {
			raw[i] += c.scores[i]
		}
	}
	proba := normalise(raw)

	chosen, tied := decide(proba)
	confidence := proba.Of(chosen)

	label := chosen
	if confidence < threshold {
		label = Unknown
	}

	return Result{
		PredictedClass: label,
		Probabilities:  proba,
		Confidence:     confidence,
		Reason:         reason(label, chosen, confidence, threshold, tied, fired),
		Features:       fs,
	}, nil
}

// normalise divides by the total, or returns the uniform distribution when
// no signal carried any mass.
func normalise(raw [3]float64) Probabilities {
	sum := raw[0] + raw[1] + raw[2]
	if sum <= 0 {
		return Probabilities{Payload: 1.0 / 3, RocketBody: 1.0 / 3, Debris: 1.0 / 3}
	}
	return Probabilities{Payload: raw[0] / sum, RocketBody: raw[1] / sum, Debris: raw[2] / sum}
}

// decide picks the argmax, preferring the earlier class in concrete order
// among those within TieEpsilon of the maximum. The other tied classes are
// returned so the reason can mention them.
func decide(p Probabilities) (Class, []Class) {
	top := math.Max(p.Payload, math.Max(p.RocketBody, p.Debris))
	var chosen Class
	var tied []Class
	for _, c := range concrete {
		if top-p.Of(c) > TieEpsilon {
			continue
		}
		if chosen == "" {
			chosen = c
			continue
		}
		tied = append(tied, c)
	}
	return chosen, tied
}

// reason names the signals that pushed hardest toward the chosen class.
func reason(label, chosen Class, confidence, threshold float64, tied []Class, fired []contribution) string {
	idx := classIndex(chosen)

	drivers := make([]contribution, 0, len(fired))
	for _, c := range fired {
		if c.scores[idx] > 0 {
			drivers = append(drivers, c)
		}
	}
	sort.SliceStable(drivers, func(i, j int) bool {
		return drivers[i].scores[idx] > drivers[j].scores[idx]
	})
	if len(drivers) > 2 {
		drivers = drivers[:2]
	}

	var why string
	if len(drivers) == 0 {
		why = "no signal fired, uniform prior"
	} else {
		labels := make([]string, len(drivers))
		for i, d := range drivers {
			labels[i] = d.label
		}
		why = strings.Join(labels, " + ")
	}

	var b strings.Builder
	if label == Unknown {
		fmt.Fprintf(&b, "unknown: confidence %.2f below threshold %.2f, leaning %s: %s", confidence, threshold, chosen, why)
	} else {
		fmt.Fprintf(&b, "classified as %s: %s", chosen, why)
	}
	if len(tied) > 0 {
		names := make([]string, len(tied))
		for i, c := range tied {
			names[i] = string(c)
		}
		fmt.Fprintf(&b, " (tie with %s within %.2f, broken by priority payload > rocket_body > debris)",
			strings.Join(names, ", "), TieEpsilon)
	}
	return b.String()
}

func classIndex(c Class) int {
	for i, x := range concrete {
		if x == c {
			return i
		}
	}
	return -1
}

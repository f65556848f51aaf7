// Package engine sequences the classification pipeline: parse, age,
// propagate, extract features, classify. It is the only entry point the
// transport layers use.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/totoccar/SpaceSituationalAwareness/internal/age"
	"github.com/totoccar/SpaceSituationalAwareness/internal/classify"
	"github.com/totoccar/SpaceSituationalAwareness/internal/features"
	"github.com/totoccar/SpaceSituationalAwareness/internal/propagation"
	"github.com/totoccar/SpaceSituationalAwareness/internal/tle"
	"github.com/totoccar/SpaceSituationalAwareness/internal/transform"
)

// Request is one classification request.
type Request struct {
	ID            string   `json:"id,omitempty"`
	Line1         string   `json:"line1"`
	Line2         string   `json:"line2"`
	SatelliteName string   `json:"satellite_name,omitempty"`
	Threshold     *float64 `json:"threshold,omitempty"`
}

// Vector is a JSON-friendly 3-vector.
type Vector struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

func vector(v transform.Vec3) Vector { return Vector{X: v.X, Y: v.Y, Z: v.Z} }

// OrbitalStats summarises the propagated state.
type OrbitalStats struct {
	AltitudeKm  float64 `json:"altitude_km" yaml:"altitude_km"`
	VelocityKms float64 `json:"velocity_kms" yaml:"velocity_kms"`
}

// Propagation reports the TEME state the decision was based on.
type Propagation struct {
	PositionKm   Vector             `json:"position_km" yaml:"position_km"`
	VelocityKms  Vector             `json:"velocity_kms" yaml:"velocity_kms"`
	CalculatedAt time.Time          `json:"calculated_at" yaml:"calculated_at"`
	Branch       propagation.Branch `json:"branch" yaml:"branch"`
}

// Metadata identifies the model and records how long the pipeline took.
type Metadata struct {
	ModelVersion     string  `json:"model_version" yaml:"model_version"`
	ProcessingTimeMs float64 `json:"processing_time_ms" yaml:"processing_time_ms"`
}

// Response is a successful classification.
type Response struct {
	ObjectID             string                 `json:"object_id,omitempty" yaml:"object_id,omitempty"`
	SatelliteName        string                 `json:"satellite_name,omitempty" yaml:"satellite_name,omitempty"`
	PredictedClass       classify.Class         `json:"predicted_class" yaml:"predicted_class"`
	ClassificationReason string                 `json:"classification_reason" yaml:"classification_reason"`
	OrbitalStats         OrbitalStats           `json:"orbital_stats" yaml:"orbital_stats"`
	Confidence           float64                `json:"confidence" yaml:"confidence"`
	Region               features.Region        `json:"region" yaml:"region"`
	Proba                classify.Probabilities `json:"proba" yaml:"proba"`
	TLEInfo              *age.Info              `json:"tle_info,omitempty" yaml:"tle_info,omitempty"`
	Propagation          *Propagation           `json:"propagation,omitempty" yaml:"propagation,omitempty"`
	Features             map[string]float64     `json:"features,omitempty" yaml:"features,omitempty"`
	Metadata             Metadata               `json:"metadata" yaml:"metadata"`
}

// Recorder receives pipeline outcomes. internal/metrics implements it.
type Recorder interface {
	ObserveClassification(class string, region string, d time.Duration)
	ObserveError(kind, detail string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveClassification(string, string, time.Duration) {}
func (nopRecorder) ObserveError(string, string) {}

// Engine runs the pipeline. It holds no per-request state and is safe for
// concurrent use.
type Engine struct {
	classifier       classify.Classifier
	version          string
	defaultThreshold float64
	clock            func() time.Time
	logger           *slog.Logger
	recorder         Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithClassifier replaces the heuristic classifier.
func WithClassifier(c classify.Classifier) Option {
	return func(e *Engine) { e.classifier = c }
}

// WithVersion overrides the reported model version.
func WithVersion(v string) Option {
	return func(e *Engine) { e.version = v }
}

// WithDefaultThreshold sets the threshold used when a request has none.
func WithDefaultThreshold(t float64) Option {
	return func(e *Engine) { e.defaultThreshold = t }
}

// WithClock sets the stopwatch used for processing_time_ms. It never
// influences the evaluation time, which callers pass explicitly.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// New returns an Engine using the default heuristic classifier unless
// overridden.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		classifier:       classify.NewHeuristic(classify.DefaultWeights()),
		defaultThreshold: classify.DefaultThreshold,
		clock:            time.Now,
		logger:           slog.Default(),
		recorder:         nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if !classify.ValidThreshold(e.defaultThreshold) {
		return nil, fmt.Errorf("default threshold %v outside [0,1]", e.defaultThreshold)
	}
	if e.version == "" {
		e.version = e.classifier.Version()
	}
	return e, nil
}

// Version returns the model version stamped on responses.
func (e *Engine) Version() string { return e.version }

// Classify runs the full pipeline for req, evaluating age and position at
// now. Any failure is returned as *Error and no Response is produced.
func (e *Engine) Classify(req Request, now time.Time) (*Response, error) {
	start := e.clock()
	resp, err := e.run(req, now)
	elapsed := e.clock().Sub(start)

	if err != nil {
		var ee *Error
		if errors.As(err, &ee) {
			e.recorder.ObserveError(string(ee.Kind), ee.Detail)
		}
		e.logger.Debug("classification failed",
			"object_id", req.ID,
			"error", err,
		)
		return nil, err
	}

	resp.Metadata = Metadata{
		ModelVersion:     e.version,
		ProcessingTimeMs: float64(elapsed.Microseconds()) / 1000,
	}
	e.recorder.ObserveClassification(string(resp.PredictedClass), string(resp.Region), elapsed)
	e.logger.Debug("classified",
		"object_id", req.ID,
		"class", resp.PredictedClass,
		"confidence", resp.Confidence,
		"region", resp.Region,
	)
	return resp, nil
}

func (e *Engine) run(req Request, now time.Time) (*Response, error) {
	threshold := e.defaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if !classify.ValidThreshold(threshold) {
		return nil, &Error{
			Kind:    ValidationError,
			Detail:  "InvalidThreshold",
			Message: fmt.Sprintf("threshold %v outside [0,1]", threshold),
		}
	}

	es, err := tle.Parse(req.Line1, req.Line2)
	if err != nil {
		return nil, fromParseError(err)
	}

	info := age.Evaluate(es, now)

	sv, err := propagation.Propagate(es, now)
	if err != nil {
		return nil, fromPropagationError(err, &info)
	}

	fs, err := features.Extract(sv, es)
	if err != nil {
		return nil, fromFeatureError(err)
	}
	fs = fs.With(features.TLEAgeDays, info.AgeDays)

	res, err := e.classifier.Classify(fs, req.SatelliteName, threshold)
	if err != nil {
		return nil, &Error{Kind: ClassificationError, Message: err.Error(), Err: err}
	}

	return &Response{
		ObjectID:             req.ID,
		SatelliteName:        req.SatelliteName,
		PredictedClass:       res.PredictedClass,
		ClassificationReason: res.Reason,
		OrbitalStats: OrbitalStats{
			AltitudeKm:  fs.AltitudeKm,
			VelocityKms: fs.SpeedKms,
		},
		Confidence: res.Confidence,
		Region:     fs.Region,
		Proba:      res.Probabilities,
		TLEInfo:    &info,
		Propagation: &Propagation{
			PositionKm:   vector(sv.Position),
			VelocityKms:  vector(sv.Velocity),
			CalculatedAt: sv.At,
			Branch:       sv.Branch,
		},
		Features: fs.Named,
	}, nil
}

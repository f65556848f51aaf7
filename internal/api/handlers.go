package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/totoccar/SpaceSituationalAwareness/internal/catalog"
	"github.com/totoccar/SpaceSituationalAwareness/internal/engine"
)

const tracerName = "github.com/totoccar/SpaceSituationalAwareness/internal/api"

const (
	maxBodyBytes        = 1 << 20
	maxBatchBodyBytes   = 16 << 20
	defaultListLimit    = 100
	maxListLimit        = 10000
	kindNotFound        = "NotFound"
	kindUnavailable     = "CatalogUnavailable"
	detailInvalidJSON   = "InvalidJSON"
	detailInvalidParam  = "InvalidParameter"
	detailBatchTooLarge = "BatchTooLarge"
)

// apiError is the body of every non-2xx JSON response.
type apiError struct {
	Kind    string `json:"kind"`
	Detail  string `json:"detail,omitempty"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, body any) {
	writeJSON(w, code, map[string]any{"error": body})
}

func badRequest(w http.ResponseWriter, detail, format string, args ...any) {
	writeError(w, http.StatusBadRequest, apiError{
		Kind:    string(engine.ValidationError),
		Detail:  detail,
		Message: fmt.Sprintf(format, args...),
	})
}

// statusFor maps a pipeline failure to an HTTP status.
func statusFor(kind engine.ErrorKind) int {
	switch kind {
	case engine.ValidationError, engine.ParseError:
		return http.StatusBadRequest
	case engine.PropagationError, engine.FeatureError:
		return http.StatusUnprocessableEntity
	case engine.Canceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeEngineError(w http.ResponseWriter, err error) {
	var ee *engine.Error
	if !errors.As(err, &ee) {
		ee = &engine.Error{Kind: engine.ClassificationError, Message: err.Error()}
	}
	writeError(w, statusFor(ee.Kind), ee)
}

func (s *Server) writeCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, apiError{Kind: kindNotFound, Message: err.Error()})
	case errors.Is(err, catalog.ErrUnavailable):
		s.logger.Warn("catalog unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, apiError{Kind: kindUnavailable, Message: err.Error()})
	default:
		s.logger.Error("catalog error", "error", err)
		writeError(w, http.StatusInternalServerError, apiError{Kind: kindUnavailable, Message: err.Error()})
	}
}

// decodeBody decodes a JSON body into v. An empty body is accepted when
// optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, optional bool, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// evalTime is the evaluation instant: the optional RFC 3339 "at" query
// parameter, or the server clock.
func (s *Server) evalTime(r *http.Request) (time.Time, error) {
	v := r.URL.Query().Get("at")
	if v == "" {
		return s.now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid at parameter, must be RFC3339: %w", err)
	}
	return t.UTC(), nil
}

// classify runs one request under a span.
func (s *Server) classify(r *http.Request, req engine.Request, now time.Time) (*engine.Response, error) {
	_, span := otel.Tracer(tracerName).Start(r.Context(), "api.classify",
		trace.WithAttributes(
			attribute.String("ssa.object_id", req.ID),
			attribute.String("ssa.satellite_name", req.SatelliteName),
		),
	)
	defer span.End()

	resp, err := s.engine.Classify(req, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("ssa.predicted_class", string(resp.PredictedClass)),
		attribute.String("ssa.region", string(resp.Region)),
		attribute.Float64("ssa.confidence", resp.Confidence),
	)
	return resp, nil
}

// POST /api/v1/classify, POST /predict
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	now, err := s.evalTime(r)
	if err != nil {
		badRequest(w, detailInvalidParam, "%v", err)
		return
	}

	var req engine.Request
	if err := decodeBody(w, r, maxBodyBytes, false, &req); err != nil {
		badRequest(w, detailInvalidJSON, "invalid JSON body: %v", err)
		return
	}

	resp, err := s.classify(r, req, now)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type batchRequest struct {
	Items []engine.Request `json:"items"`
}

type batchResponse struct {
	Items        []engine.BatchItem `json:"items"`
	Succeeded    int                `json:"succeeded"`
	Failed       int                `json:"failed"`
	ModelVersion string             `json:"model_version"`
	EvaluatedAt  time.Time          `json:"evaluated_at"`
}

// POST /api/v1/classify/batch
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	now, err := s.evalTime(r)
	if err != nil {
		badRequest(w, detailInvalidParam, "%v", err)
		return
	}

	var body batchRequest
	if err := decodeBody(w, r, maxBatchBodyBytes, false, &body); err != nil {
		badRequest(w, detailInvalidJSON, "invalid JSON body: %v", err)
		return
	}
	if len(body.Items) == 0 {
		badRequest(w, detailInvalidParam, "items must not be empty")
		return
	}
	if len(body.Items) > s.maxBatch {
		badRequest(w, detailBatchTooLarge, "too many items: %d > %d", len(body.Items), s.maxBatch)
		return
	}

	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "api.classify_batch",
		trace.WithAttributes(attribute.Int("ssa.batch_size", len(body.Items))),
	)
	defer span.End()

	items, err := s.engine.ClassifyBatch(ctx, body.Items, now, s.workers)
	if err != nil {
		// The client went away; nobody is left to read a response.
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("batch aborted", "error", err, "items", len(body.Items))
		return
	}

	resp := batchResponse{
		Items:        items,
		ModelVersion: s.engine.Version(),
		EvaluatedAt:  now,
	}
	for _, it := range items {
		if it.Err != nil {
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}
	span.SetAttributes(attribute.Int("ssa.batch_failed", resp.Failed))
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/v1/satellites?limit=N, GET /satellites
func (s *Server) handleSatellites(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			badRequest(w, detailInvalidParam, "limit must be an integer in [1, %d]", maxListLimit)
			return
		}
		limit = n
	}

	listing, err := s.catalog.List(r.Context(), limit, s.now().UTC())
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func noradID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("norad_id"))
	if err != nil || id < 1 {
		badRequest(w, detailInvalidParam, "invalid NORAD ID %q", r.PathValue("norad_id"))
		return 0, false
	}
	return id, true
}

// GET /api/v1/satellites/{norad_id}
func (s *Server) handleSatellite(w http.ResponseWriter, r *http.Request) {
	id, ok := noradID(w, r)
	if !ok {
		return
	}
	sat, err := s.catalog.Lookup(r.Context(), id, s.now().UTC())
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sat)
}

type satelliteClassifyRequest struct {
	Threshold *float64 `json:"threshold,omitempty"`
}

// POST /api/v1/satellites/{norad_id}/classify
func (s *Server) handleSatelliteClassify(w http.ResponseWriter, r *http.Request) {
	id, ok := noradID(w, r)
	if !ok {
		return
	}
	now, err := s.evalTime(r)
	if err != nil {
		badRequest(w, detailInvalidParam, "%v", err)
		return
	}

	var body satelliteClassifyRequest
	if err := decodeBody(w, r, maxBodyBytes, true, &body); err != nil {
		badRequest(w, detailInvalidJSON, "invalid JSON body: %v", err)
		return
	}

	sat, err := s.catalog.Lookup(r.Context(), id, now)
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}

	resp, err := s.classify(r, engine.Request{
		ID:            strconv.Itoa(sat.NoradID),
		Line1:         sat.Line1,
		Line2:         sat.Line2,
		SatelliteName: sat.Name,
		Threshold:     body.Threshold,
	}, now)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Package stream serves batch classification progress as Server-Sent Events.
// Clients POST a batch to /api/v1/classify/stream and receive one message
// per item as soon as it is classified, instead of waiting for the whole
// batch.
//
// SSE message format:
//
//	data: {"type":"metadata","items":3,"model_version":"heuristic-v1.0","evaluated_at":"..."}\n\n
//	data: {"type":"result","index":1,"result":{...}}\n\n
//	data: {"type":"result","index":0,"error":{"kind":"ParseError",...}}\n\n
//	data: {"type":"done","succeeded":2,"failed":1}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval while
// workers are busy.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/totoccar/SpaceSituationalAwareness/internal/engine"
	"github.com/totoccar/SpaceSituationalAwareness/internal/metrics"
	"github.com/totoccar/SpaceSituationalAwareness/internal/ratelimit"
)

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           `mapstructure:"max_concurrent_per_ip" yaml:"max_concurrent_per_ip"`
	MaxConcurrent      int           `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	KeepaliveInterval  time.Duration `mapstructure:"keepalive_interval" yaml:"keepalive_interval"`
	MaxItems           int           `mapstructure:"max_items" yaml:"max_items"`
	Workers            int           `mapstructure:"workers" yaml:"workers"`
	TrustProxy         bool          `mapstructure:"-" yaml:"-"`
}

// maxBodyBytes caps the request body.
const maxBodyBytes = 8 << 20

// Handler serves batch streams.
type Handler struct {
	engine  *engine.Engine
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
	now     func() time.Time
}

// NewHandler creates a streaming handler.
func NewHandler(e *engine.Engine, config Config, logger *slog.Logger) *Handler {
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 15 * time.Second
	}
	if config.MaxItems <= 0 {
		config.MaxItems = 1000
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	return &Handler{
		engine:  e,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxConcurrent),
		logger:  logger,
		now:     time.Now,
	}
}

type batchBody struct {
	Items []engine.Request `json:"items"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// HandleBatch streams a batch classification.
// POST /api/v1/classify/stream?at=<RFC3339>
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()
	if v := r.URL.Query().Get("at"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid at parameter, must be RFC3339")
			return
		}
		now = t.UTC()
	}

	var body batchBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if len(body.Items) == 0 {
		writeError(w, http.StatusBadRequest, "items must not be empty")
		return
	}
	if len(body.Items) > h.config.MaxItems {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("too many items: %d > %d", len(body.Items), h.config.MaxItems))
		return
	}

	// Rate limiting: enforce concurrent stream limit per IP.
	ip := ratelimit.ClientIP(r, h.config.TrustProxy)
	release, ok := h.limiter.acquire(ip)
	if !ok {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		release()
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()
	startTime := time.Now()

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      http.NewResponseController(w),
		logger:  h.logger,
	}

	defer func() {
		release()
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream finished",
			"remote_ip", ip,
			"items", len(body.Items),
			"messages_sent", c.messagesSent,
			"bytes_sent", c.bytesSent,
			"duration_ms", time.Since(startTime).Milliseconds(),
		)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Large batches may outlive the server's WriteTimeout.
	if err := c.rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	// Jittered retry so reconnecting clients do not arrive in lockstep.
	fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.Intn(4000))
	flusher.Flush()

	if err := c.sendJSON(metadataMessage{
		Type:         "metadata",
		Items:        len(body.Items),
		ModelVersion: h.engine.Version(),
		EvaluatedAt:  now.Format(time.RFC3339Nano),
	}); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}

	ctx := r.Context()
	results := h.engine.ClassifyStream(ctx, body.Items, now, h.config.Workers)

	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	var succeeded, failed int
	for {
		select {
		case <-ctx.Done():
			metrics.IncStreamErrors("client_gone")
			return

		case item, open := <-results:
			if !open {
				if err := c.sendJSON(doneMessage{Type: "done", Succeeded: succeeded, Failed: failed}); err != nil {
					metrics.IncStreamErrors("send_error")
					h.logger.Warn("stream send error (done)", "remote_ip", ip, "error", err)
				}
				return
			}
			if item.Err != nil {
				failed++
			} else {
				succeeded++
			}
			if err := c.sendJSON(resultMessage{Type: "result", BatchItem: item}); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "remote_ip", ip, "index", item.Index, "error", err)
				return
			}
			keepalive.Reset(h.config.KeepaliveInterval)

		case <-keepalive.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// SSE message payload types.

type metadataMessage struct {
	Type         string `json:"type"`
	Items        int    `json:"items"`
	ModelVersion string `json:"model_version"`
	EvaluatedAt  string `json:"evaluated_at"`
}

type resultMessage struct {
	Type string `json:"type"`
	engine.BatchItem
}

type doneMessage struct {
	Type      string `json:"type"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

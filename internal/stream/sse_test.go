package stream

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/totoccar/SpaceSituationalAwareness/internal/classify"
	"github.com/totoccar/SpaceSituationalAwareness/internal/engine"
	"github.com/totoccar/SpaceSituationalAwareness/internal/features"
)

const (
	issLine1 = "1 25544U 98067A   24035.54791667  .00016717  00000-0  30074-3 0  9998"
	issLine2 = "2 25544  51.6426  35.3018 0002080  34.7781 325.3493 15.49856913438562"
	atParam  = "2024-02-04T13:09:00Z"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, opts ...engine.Option) *engine.Engine {
	t.Helper()
	e, err := engine.New(append([]engine.Option{engine.WithLogger(testLogger())}, opts...)...)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return e
}

// gatedClassifier blocks every Classify call until gate is closed.
type gatedClassifier struct {
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
	inner   classify.Classifier
}

func (g *gatedClassifier) Classify(fs features.Set, name string, threshold float64) (classify.Result, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.gate
	return g.inner.Classify(fs, name, threshold)
}

func (g *gatedClassifier) Version() string { return "gated" }

func batchBodyJSON(items ...string) string {
	return `{"items":[` + strings.Join(items, ",") + `]}`
}

func issItem() string {
	return `{"line1":"` + issLine1 + `","line2":"` + issLine2 + `","satellite_name":"ISS (ZARYA)"}`
}

// readMessages parses every "data:" payload from an SSE body.
func readMessages(t *testing.T, body string) []map[string]any {
	t.Helper()
	var msgs []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &m); err != nil {
			t.Fatalf("invalid JSON in SSE message %q: %v", line, err)
		}
		msgs = append(msgs, m)
	}
	return msgs
}

func TestSSEMessageFormat(t *testing.T) {
	h := NewHandler(newTestEngine(t), Config{MaxConcurrentPerIP: 2, Workers: 2}, testLogger())

	body := batchBodyJSON(issItem(), `{"line1":"garbage","line2":"garbage"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/classify/stream?at="+atParam, strings.NewReader(body))
	w := httptest.NewRecorder()

	h.HandleBatch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", cc)
	}
	if !strings.HasPrefix(w.Body.String(), "retry: ") {
		t.Errorf("stream should start with a retry directive, got %q", w.Body.String())
	}

	msgs := readMessages(t, w.Body.String())
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4 (metadata, 2 results, done)", len(msgs))
	}

	meta := msgs[0]
	if meta["type"] != "metadata" {
		t.Errorf("first message type = %v, want metadata", meta["type"])
	}
	if meta["items"] != float64(2) {
		t.Errorf("metadata items = %v, want 2", meta["items"])
	}
	if meta["model_version"] != classify.HeuristicVersion {
		t.Errorf("metadata model_version = %v, want %s", meta["model_version"], classify.HeuristicVersion)
	}

	seen := map[float64]map[string]any{}
	for _, m := range msgs[1:3] {
		if m["type"] != "result" {
			t.Fatalf("message type = %v, want result", m["type"])
		}
		seen[m["index"].(float64)] = m
	}
	if _, ok := seen[0]["result"]; !ok {
		t.Errorf("item 0 should carry a result: %v", seen[0])
	}
	errObj, ok := seen[1]["error"].(map[string]any)
	if !ok {
		t.Fatalf("item 1 should carry an error: %v", seen[1])
	}
	if errObj["kind"] != string(engine.ParseError) {
		t.Errorf("item 1 error kind = %v, want %s", errObj["kind"], engine.ParseError)
	}

	done := msgs[3]
	if done["type"] != "done" || done["succeeded"] != float64(1) || done["failed"] != float64(1) {
		t.Errorf("done message = %v, want succeeded 1 failed 1", done)
	}
}

func TestInvalidRequests(t *testing.T) {
	h := NewHandler(newTestEngine(t), Config{MaxItems: 2}, testLogger())

	tests := []struct {
		name string
		url  string
		body string
	}{
		{"bad at", "/api/v1/classify/stream?at=yesterday", batchBodyJSON(issItem())},
		{"not json", "/api/v1/classify/stream", "{"},
		{"no items", "/api/v1/classify/stream", `{"items":[]}`},
		{"too many items", "/api/v1/classify/stream", batchBodyJSON(issItem(), issItem(), issItem())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.url, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.HandleBatch(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
		})
	}
}

func TestRateLimiting(t *testing.T) {
	l := newStreamLimiter(2, 0)
	ip := "192.168.1.1"

	r1, ok := l.acquire(ip)
	if !ok {
		t.Fatal("first connection should be allowed")
	}
	r2, ok := l.acquire(ip)
	if !ok {
		t.Fatal("second connection should be allowed")
	}
	if _, ok := l.acquire(ip); ok {
		t.Fatal("third connection should be rejected")
	}
	if _, ok := l.acquire("192.168.1.2"); !ok {
		t.Error("different IP should be allowed")
	}

	r1()
	r1() // release is idempotent
	if got := l.count(ip); got != 1 {
		t.Errorf("count after release = %d, want 1", got)
	}
	if _, ok := l.acquire(ip); !ok {
		t.Error("connection should be allowed after release")
	}
	r2()
}

func TestRateLimitingGlobalCap(t *testing.T) {
	l := newStreamLimiter(5, 2)

	if _, ok := l.acquire("10.0.0.1"); !ok {
		t.Fatal("first connection should be allowed")
	}
	if _, ok := l.acquire("10.0.0.2"); !ok {
		t.Fatal("second connection should be allowed")
	}
	if _, ok := l.acquire("10.0.0.3"); ok {
		t.Error("global cap should reject the third connection")
	}
}

func TestRateLimitingConcurrent(t *testing.T) {
	l := newStreamLimiter(5, 0)
	ip := "10.0.0.1"

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	var releases []func()

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if release, ok := l.acquire(ip); ok {
				mu.Lock()
				allowed++
				releases = append(releases, release)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 5 {
		t.Errorf("allowed = %d, want 5", allowed)
	}
	for _, release := range releases {
		release()
	}
	if got := l.count(ip); got != 0 {
		t.Errorf("count after all released = %d, want 0", got)
	}
}

func TestRateLimitHTTPResponse(t *testing.T) {
	gate := &gatedClassifier{
		gate:    make(chan struct{}),
		entered: make(chan struct{}),
		inner:   classify.NewHeuristic(classify.DefaultWeights()),
	}
	h := NewHandler(newTestEngine(t, engine.WithClassifier(gate)), Config{MaxConcurrentPerIP: 1}, testLogger())

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/classify/stream?at="+atParam, strings.NewReader(batchBodyJSON(issItem())))
		req.RemoteAddr = "10.0.0.1:1234"
		h.HandleBatch(httptest.NewRecorder(), req)
	}()

	select {
	case <-gate.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first stream never reached the classifier")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/classify/stream?at="+atParam, strings.NewReader(batchBodyJSON(issItem())))
	req.RemoteAddr = "10.0.0.1:5678"
	w := httptest.NewRecorder()
	h.HandleBatch(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
	if ra := w.Header().Get("Retry-After"); ra != "30" {
		t.Errorf("Retry-After = %q, want 30", ra)
	}

	close(gate.gate)
	<-firstDone

	if got := h.limiter.count("10.0.0.1"); got != 0 {
		t.Errorf("stream slot not released: count = %d", got)
	}
}

func TestKeepaliveFormat(t *testing.T) {
	w := httptest.NewRecorder()
	c := &client{
		w:       w,
		flusher: w,
		rc:      http.NewResponseController(w),
		logger:  testLogger(),
	}

	if err := c.sendKeepalive(); err != nil {
		t.Fatalf("sendKeepalive: %v", err)
	}
	if got := w.Body.String(); got != ":\n\n" {
		t.Errorf("keepalive = %q, want %q", got, ":\n\n")
	}
	if c.messagesSent != 0 {
		t.Errorf("keepalive should not count as a message, got %d", c.messagesSent)
	}
	if c.bytesSent != 3 {
		t.Errorf("bytesSent = %d, want 3", c.bytesSent)
	}
}

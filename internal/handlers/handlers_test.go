package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/romba050/hand-written-digits/internal/config"
	"github.com/romba050/hand-written-digits/internal/model"
	"github.com/romba050/hand-written-digits/internal/nn"
)

func testHandle(t *testing.T) *model.Handle {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	return model.New(nn.NewNetwork(
		nn.NewFlatten(),
		nn.NewDense(28*28, 128, nn.ActReLU, rng),
		nn.NewDense(128, 10, nn.ActSoftmax, rng),
	))
}

func newRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

// canvasPNG draws a rough "7" with black ink on a white background and
// returns it as a data URL, like the browser canvas does.
func canvasPNG(t *testing.T) string {
	t.Helper()
	const size = 280
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.White)
		}
	}
	ink := func(x, y int) {
		for dy := -8; dy <= 8; dy++ {
			for dx := -8; dx <= 8; dx++ {
				img.Set(x+dx, y+dy, color.Black)
			}
		}
	}
	// Top bar, then the diagonal stroke.
	for x := 60; x <= 220; x++ {
		ink(x, 60)
	}
	for i := 0; i <= 160; i++ {
		ink(220-i, 60+i)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func postPredict(t *testing.T, r http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/predict", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPredictEndToEnd(t *testing.T) {
	h := New(testHandle(t), config.Default(), nil, nil)
	r := newRouter(h)

	body, _ := json.Marshal(model.PredictRequest{Image: canvasPNG(t)})
	w := postPredict(t, r, string(body))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}

	var resp model.PredictResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Digit < 0 || resp.Digit > 9 {
		t.Errorf("digit out of range: %d", resp.Digit)
	}
	if resp.Confidence < 0 || resp.Confidence > 1 {
		t.Errorf("confidence out of range: %v", resp.Confidence)
	}
	if len(resp.Probabilities) != 10 {
		t.Fatalf("probability keys: got %d, want 10", len(resp.Probabilities))
	}
	var sum float64
	bestKey, bestVal := "", float32(-1)
	for k, v := range resp.Probabilities {
		sum += float64(v)
		if v > bestVal {
			bestKey, bestVal = k, v
		}
	}
	if math.Abs(sum-1) > 1e-3 {
		t.Errorf("probabilities sum to %v", sum)
	}
	if want := string(rune('0' + resp.Digit)); bestKey != want {
		t.Errorf("argmax key %q does not match digit %d", bestKey, resp.Digit)
	}

	if len(resp.NetworkActivations) == 0 {
		t.Fatal("expected activation trace")
	}
	for _, a := range resp.NetworkActivations {
		if len(a.Activations) > 64 {
			t.Errorf("layer %s: %d samples exceeds cap", a.Layer, len(a.Activations))
		}
		if !strings.Contains(a.Layer, "dense") && !strings.Contains(a.Layer, "flatten") {
			t.Errorf("unexpected captured layer %q", a.Layer)
		}
	}
}

func TestPredictMissingImageField(t *testing.T) {
	h := New(testHandle(t), config.Default(), nil, nil)
	w := postPredict(t, newRouter(h), `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", w.Code)
	}
	var resp model.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Error == "" {
		t.Fatalf("expected error body, got %s", w.Body.String())
	}
}

func TestPredictMalformedBase64(t *testing.T) {
	h := New(testHandle(t), config.Default(), nil, nil)
	w := postPredict(t, newRouter(h), `{"image":"!!definitely not base64!!"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", w.Code)
	}
	var resp model.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Error == "" {
		t.Fatalf("expected non-empty error, got %s", w.Body.String())
	}
}

func TestPredictInvalidJSON(t *testing.T) {
	h := New(testHandle(t), config.Default(), nil, nil)
	w := postPredict(t, newRouter(h), `{"image": `)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", w.Code)
	}
}

func TestPredictWithoutModel(t *testing.T) {
	h := New(nil, config.Default(), nil, nil)
	r := newRouter(h)

	body, _ := json.Marshal(model.PredictRequest{Image: canvasPNG(t)})
	w := postPredict(t, r, string(body))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", w.Code)
	}
	var resp model.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Error == "" {
		t.Fatalf("expected error body, got %s", w.Body.String())
	}

	// Health must reflect the degraded state.
	req := httptest.NewRequest("GET", "/health", nil)
	hw := httptest.NewRecorder()
	r.ServeHTTP(hw, req)
	var health model.HealthResponse
	if err := json.Unmarshal(hw.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "healthy" || health.ModelLoaded {
		t.Fatalf("health: %+v", health)
	}
}

func TestHealthWithModel(t *testing.T) {
	h := New(testHandle(t), config.Default(), nil, nil)
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	newRouter(h).ServeHTTP(w, req)

	var health model.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "healthy" || !health.ModelLoaded {
		t.Fatalf("health: %+v", health)
	}
}

func TestPredictBlankCanvasRejected(t *testing.T) {
	cfg := config.Default()
	cfg.MinInk = 0.01
	h := New(testHandle(t), cfg, nil, nil)

	blank := image.NewRGBA(image.Rect(0, 0, 56, 56))
	for y := 0; y < 56; y++ {
		for x := 0; x < 56; x++ {
			blank.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, blank); err != nil {
		t.Fatal(err)
	}
	body, _ := json.Marshal(model.PredictRequest{
		Image: base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
	w := postPredict(t, newRouter(h), string(body))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", w.Code)
	}
}

func TestModelArchitecturePNG(t *testing.T) {
	h := New(testHandle(t), config.Default(), nil, nil)
	req := httptest.NewRequest("GET", "/model-architecture", nil)
	w := httptest.NewRecorder()
	newRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type: got %q", ct)
	}
	if _, err := png.Decode(w.Body); err != nil {
		t.Fatalf("response is not a valid PNG: %v", err)
	}
}

func TestModelArchitectureWithoutModel(t *testing.T) {
	h := New(nil, config.Default(), nil, nil)
	req := httptest.NewRequest("GET", "/model-architecture", nil)
	w := httptest.NewRecorder()
	newRouter(h).ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", w.Code)
	}
}

func TestHistoryDisabledReturnsEmptyList(t *testing.T) {
	h := New(testHandle(t), config.Default(), nil, nil)
	req := httptest.NewRequest("GET", "/history", nil)
	w := httptest.NewRecorder()
	newRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Fatalf("body: got %s, want []", got)
	}
}

func TestIndexServesCanvasPage(t *testing.T) {
	h := New(nil, config.Default(), nil, nil)
	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	newRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<canvas") {
		t.Error("index page missing canvas element")
	}
}

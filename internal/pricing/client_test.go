package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func validRequest() Request {
	return Request{Lat: 39.6403, Lon: -106.3742, Guests: 2, CheckIn: "2025-12-25", CheckOut: "2025-12-29"}
}

func newTestClient(url string) *Client {
	c := NewClient(Options{Endpoint: url, Timeout: 5 * time.Second, Backoff: time.Millisecond})
	c.jitter = func(time.Duration) time.Duration { return 0 }
	return c
}

func TestRequestPrice_Success(t *testing.T) {
	var got predictRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		_, _ = w.Write([]byte(`{"predicted_price": 412.5}`))
	}))
	defer srv.Close()

	res := newTestClient(srv.URL).RequestPrice(context.Background(), validRequest())
	if !res.OK {
		t.Fatalf("expected ok, got %+v", res)
	}
	if res.Price != 412.5 {
		t.Errorf("price = %f, want 412.5", res.Price)
	}
	if got.Lon != -106.3742 || got.CheckIn != "2025-12-25" || got.CheckOut != "2025-12-29" || got.Guests != 2 {
		t.Errorf("unexpected wire body: %+v", got)
	}
}

func TestRequestPrice_APIKeyHeader(t *testing.T) {
	var (
		mu   sync.Mutex
		keys []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.Header.Get("X-API-Key"))
		mu.Unlock()
		_, _ = w.Write([]byte(`{"predicted_price": 200}`))
	}))
	defer srv.Close()

	if res := newTestClient(srv.URL).RequestPrice(context.Background(), validRequest()); !res.OK {
		t.Fatalf("keyless lookup failed: %+v", res)
	}
	keyed := NewClient(Options{Endpoint: srv.URL, APIKey: "s3cret", Timeout: 5 * time.Second})
	if res := keyed.RequestPrice(context.Background(), validRequest()); !res.OK {
		t.Fatalf("keyed lookup failed: %+v", res)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(keys) != 2 || keys[0] != "" || keys[1] != "s3cret" {
		t.Errorf("X-API-Key headers = %q, want [\"\" \"s3cret\"]", keys)
	}
}

func TestRequestPrice_WireFieldNames(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte(`{"predicted_price": 1}`))
	}))
	defer srv.Close()

	newTestClient(srv.URL).RequestPrice(context.Background(), validRequest())
	for _, k := range []string{"lat", "lon", "guests", "check_in", "check_out"} {
		if _, ok := raw[k]; !ok {
			t.Errorf("missing wire field %q in %v", k, raw)
		}
	}
}

func TestRequestPrice_ValidationSkipsNetwork(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	bad := []Request{
		{Lat: nan(), Lon: 1, Guests: 2, CheckIn: "a", CheckOut: "b"},
		{Lat: 1, Lon: inf(), Guests: 2, CheckIn: "a", CheckOut: "b"},
		{Lat: 1, Lon: 1, Guests: 0, CheckIn: "a", CheckOut: "b"},
		{Lat: 1, Lon: 1, Guests: -3, CheckIn: "a", CheckOut: "b"},
		{Lat: 1, Lon: 1, Guests: 2, CheckIn: "", CheckOut: "b"},
		{Lat: 1, Lon: 1, Guests: 2, CheckIn: "a", CheckOut: " "},
	}
	for i, req := range bad {
		res := c.RequestPrice(context.Background(), req)
		if res.OK {
			t.Errorf("case %d: expected failure", i)
		}
		if res.Kind != KindValidation {
			t.Errorf("case %d: kind = %q, want validation", i, res.Kind)
		}
		if !errors.Is(res.Err, ErrValidation) {
			t.Errorf("case %d: expected ErrValidation, got %v", i, res.Err)
		}
	}
	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Errorf("expected no network calls, got %d", n)
	}
}

func TestRequestPrice_RetriesTransientFailures(t *testing.T) {
	var hits int32
	var mu sync.Mutex
	ids := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ids[r.Header.Get("X-Request-ID")] = true
		mu.Unlock()
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"predicted_price": 250}`))
	}))
	defer srv.Close()

	res := newTestClient(srv.URL).RequestPrice(context.Background(), validRequest())
	if !res.OK || res.Price != 250 {
		t.Fatalf("expected success after retries, got %+v", res)
	}
	if n := atomic.LoadInt32(&hits); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
	if len(ids) != 1 {
		t.Errorf("expected one request id across retries, got %d", len(ids))
	}
}

func TestRequestPrice_GivesUpAfterMaxAttempts(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail": "model not loaded"}`))
	}))
	defer srv.Close()

	res := newTestClient(srv.URL).RequestPrice(context.Background(), validRequest())
	if res.OK {
		t.Fatal("expected failure")
	}
	if res.Kind != KindTransient {
		t.Errorf("kind = %q, want transient", res.Kind)
	}
	if !strings.Contains(res.Error(), "HTTP 500: model not loaded") {
		t.Errorf("unexpected error message: %q", res.Error())
	}
	if n := atomic.LoadInt32(&hits); n != DefaultMaxAttempts {
		t.Errorf("expected %d attempts, got %d", DefaultMaxAttempts, n)
	}
}

func TestRequestPrice_MissingPriceIsSoftFailure(t *testing.T) {
	bodies := []string{
		`{"foo": 1}`,
		`{"predicted_price": null}`,
		`{"predicted_price": "300"}`,
		`not json`,
	}
	for _, body := range bodies {
		var hits int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
			_, _ = w.Write([]byte(body))
		}))

		res := newTestClient(srv.URL).RequestPrice(context.Background(), validRequest())
		if res.OK {
			t.Errorf("body %q: expected failure", body)
		}
		if res.Kind != KindNoPrice {
			t.Errorf("body %q: kind = %q, want no_price", body, res.Kind)
		}
		if n := atomic.LoadInt32(&hits); n != 1 {
			t.Errorf("body %q: expected no retry, got %d attempts", body, n)
		}
		srv.Close()
	}
}

func TestRequestPrice_CancellationIsNotRetried(t *testing.T) {
	var hits int32
	started := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		started <- struct{}{}
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() {
		done <- newTestClient(srv.URL).RequestPrice(ctx, validRequest())
	}()

	<-started
	cancel()

	select {
	case res := <-done:
		if res.OK || !res.Canceled() {
			t.Errorf("expected canceled result, got %+v", res)
		}
		if !errors.Is(res.Err, ErrCanceled) {
			t.Errorf("expected ErrCanceled, got %v", res.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("canceled lookup did not return promptly")
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("expected exactly one attempt, got %d", n)
	}
}

func TestRequestPrice_CanceledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Options{Endpoint: srv.URL, Backoff: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res := c.RequestPrice(ctx, validRequest())
	if !res.Canceled() {
		t.Errorf("expected canceled during backoff, got %+v", res)
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			t.Errorf("ping path = %q, want /", r.URL.Path)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	status, _, err := newTestClient(srv.URL + "/predict_price").Ping(context.Background())
	if err != nil {
		t.Fatalf("ping failed: %v", err)
	}
	if status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Options{})
	if c.Endpoint() != DefaultEndpoint {
		t.Errorf("endpoint = %q", c.Endpoint())
	}
	if c.maxAttempts != DefaultMaxAttempts || c.backoff != DefaultBackoff {
		t.Errorf("unexpected defaults: attempts=%d backoff=%v", c.maxAttempts, c.backoff)
	}
	if c.httpClient.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", c.httpClient.Timeout, DefaultTimeout)
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(context.Canceled) != KindCanceled {
		t.Error("context.Canceled should map to canceled")
	}
	if KindOf(errors.New("boom")) != KindTransient {
		t.Error("unknown errors should map to transient")
	}
	if KindOf(nil) != KindNone {
		t.Error("nil should map to none")
	}
}

func nan() float64 { return math.NaN() }
func inf() float64 { return math.Inf(1) }

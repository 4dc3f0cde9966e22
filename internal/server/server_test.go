package server_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/beetlebot/skitrip-cli/internal/adapters/mock"
	"github.com/beetlebot/skitrip-cli/internal/catalog"
	"github.com/beetlebot/skitrip-cli/internal/core"
	"github.com/beetlebot/skitrip-cli/internal/server"
)

type tripRow struct {
	ID         string `json:"id"`
	FetchState string `json:"fetchState"`
	Visible    bool   `json:"visible"`
	Cost       struct {
		Total float64 `json:"total"`
		Known bool    `json:"known"`
	} `json:"cost"`
}

type viewBody struct {
	Epoch          uint64    `json:"epoch"`
	Status         string    `json:"status"`
	Settled        bool      `json:"settled"`
	OriginFallback bool      `json:"originFallback"`
	Nights         int       `json:"nights"`
	Ranked         []tripRow `json:"ranked"`
	Visible        []tripRow `json:"visible"`
}

func buildTestServer(t *testing.T) *server.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cat, err := catalog.Load("", "")
	if err != nil {
		t.Fatal(err)
	}
	lodging := mock.NewLodgingAdapter(0)
	return server.New(server.Deps{
		Catalog: cat,
		Providers: func() []core.ProviderInfo {
			return []core.ProviderInfo{{Name: lodging.Name(), Tier: lodging.Tier(), Status: "active"}}
		},
		NewEngine: func(paced bool) *core.Orchestrator {
			interval := time.Microsecond
			if paced {
				interval = time.Millisecond
			}
			return core.NewOrchestrator(core.Options{
				Catalog:        cat,
				Lodging:        lodging,
				RevealInterval: interval,
			})
		},
		SearchTimeout: 5 * time.Second,
	})
}

func doRequest(h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := doRequest(buildTestServer(t).Handler(), http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Errorf("health = %d %q", w.Code, w.Body.String())
	}
}

func TestSearchTrips_RanksByPrice(t *testing.T) {
	w := doRequest(buildTestServer(t).Handler(), http.MethodPost, "/api/trips/search", map[string]any{
		"region":    "Rockies",
		"originZip": "80202",
		"checkIn":   "2026-01-10",
		"checkOut":  "2026-01-13",
		"sort":      "price",
		"direction": "asc",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var v viewBody
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatal(err)
	}
	if !v.Settled || v.Status != "ready" {
		t.Errorf("status=%s settled=%v", v.Status, v.Settled)
	}
	if v.Nights != 3 || v.OriginFallback {
		t.Errorf("nights=%d fallback=%v", v.Nights, v.OriginFallback)
	}
	if len(v.Ranked) != 7 {
		t.Fatalf("expected 7 Rockies resorts, got %d", len(v.Ranked))
	}
	for i, r := range v.Ranked {
		if r.FetchState != "resolved" || !r.Cost.Known {
			t.Errorf("%s: state=%s known=%v", r.ID, r.FetchState, r.Cost.Known)
		}
		if i > 0 && r.Cost.Total < v.Ranked[i-1].Cost.Total {
			t.Errorf("%s out of order: %.2f < %.2f", r.ID, r.Cost.Total, v.Ranked[i-1].Cost.Total)
		}
	}
}

func TestSearchTrips_EmptyBodyUsesDefaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/trips/search", nil)
	w := httptest.NewRecorder()
	buildTestServer(t).Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var v viewBody
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatal(err)
	}
	if len(v.Ranked) != 23 {
		t.Errorf("expected every resort, got %d", len(v.Ranked))
	}
	for _, r := range v.Ranked {
		if r.ID == "tyrol-basin" && r.Visible {
			t.Error("resort without coordinates must not be revealed")
		}
	}
	if len(v.Visible) == 0 || len(v.Visible) >= len(v.Ranked) {
		t.Errorf("visible=%d ranked=%d", len(v.Visible), len(v.Ranked))
	}
}

func TestSearchTrips_BadInput(t *testing.T) {
	h := buildTestServer(t).Handler()

	w := doRequest(h, http.MethodPost, "/api/trips/search", map[string]any{
		"checkIn":  "2026-01-13",
		"checkOut": "2026-01-10",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("reversed dates: expected 400, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/trips/search", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error"`) {
		t.Errorf("expected error body, got %s", rec.Body.String())
	}
}

func TestStreamTrips(t *testing.T) {
	ts := httptest.NewServer(buildTestServer(t).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/trips/stream?region=Rockies&zip=80202&checkin=2026-01-10&checkout=2026-01-13&sort=price&small=true")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("content type = %q", ct)
	}

	var views []viewBody
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var v viewBody
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &v); err != nil {
			t.Fatalf("bad event %q: %v", line, err)
		}
		views = append(views, v)
	}
	if err := scanner.Err(); err != nil {
		t.Fatal(err)
	}

	if len(views) == 0 {
		t.Fatal("expected at least one view")
	}
	last := views[len(views)-1]
	if !last.Settled {
		t.Error("stream should end on a settled view")
	}
	if len(last.Visible) != 7 {
		t.Errorf("expected all 7 resorts revealed, got %d", len(last.Visible))
	}
	for i := 1; i < len(views); i++ {
		if len(views[i].Visible) < len(views[i-1].Visible) {
			t.Fatal("visible set shrank during one query")
		}
	}
}

func TestStreamTrips_BadParams(t *testing.T) {
	w := doRequest(buildTestServer(t).Handler(), http.MethodGet, "/api/trips/stream?guests=many", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestListResorts(t *testing.T) {
	h := buildTestServer(t).Handler()

	w := doRequest(h, http.MethodGet, "/api/resorts?region=Midwest", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Region  string        `json:"region"`
		Regions []string      `json:"regions"`
		Resorts []core.Resort `json:"resorts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Resorts) != 4 || len(body.Regions) != 5 {
		t.Errorf("resorts=%d regions=%d", len(body.Resorts), len(body.Regions))
	}

	w = doRequest(h, http.MethodGet, "/api/resorts?region=Atlantis", nil)
	if !strings.Contains(w.Body.String(), `"resorts":[]`) {
		t.Errorf("unknown region should list no resorts, got %s", w.Body.String())
	}
}

func TestListProviders(t *testing.T) {
	w := doRequest(buildTestServer(t).Handler(), http.MethodGet, "/api/providers", nil)
	var infos []core.ProviderInfo
	if err := json.Unmarshal(w.Body.Bytes(), &infos); err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || infos[0].Name != "mock_lodging" {
		t.Errorf("providers = %+v", infos)
	}
}

// buildStoppedServer hands out engines whose loop has already exited, so
// every Submit fails with core.ErrStopped.
func buildStoppedServer(t *testing.T) *server.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cat, err := catalog.Load("", "")
	if err != nil {
		t.Fatal(err)
	}
	return server.New(server.Deps{
		Catalog: cat,
		NewEngine: func(bool) *core.Orchestrator {
			o := core.NewOrchestrator(core.Options{Catalog: cat, Lodging: mock.NewLodgingAdapter(0)})
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_ = o.Run(ctx)
			return o
		},
		SearchTimeout: 5 * time.Second,
	})
}

func TestStoppedEngineIsNotABadRequest(t *testing.T) {
	h := buildStoppedServer(t).Handler()

	w := doRequest(h, http.MethodGet, "/api/trips/stream?region=Rockies", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("stream: expected 503, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(h, http.MethodPost, "/api/trips/search", map[string]any{"region": "Rockies"})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("search: expected 503, got %d: %s", w.Code, w.Body.String())
	}
}

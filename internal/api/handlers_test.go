// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/sc2-pulse/laddersync/internal/client"
	"github.com/sc2-pulse/laddersync/internal/config"
	"github.com/sc2-pulse/laddersync/internal/models"
	"github.com/sc2-pulse/laddersync/internal/ratelimit"
	"github.com/sc2-pulse/laddersync/internal/region"
	"github.com/sc2-pulse/laddersync/internal/sync"
)

type fakeUpdates struct {
	running  bool
	willRun  bool
	triggers int
	lastCtx  context.Context
}

func (f *fakeUpdates) TriggerUpdate(ctx context.Context) (*sync.Run, bool) {
	f.triggers++
	f.lastCtx = ctx
	if !f.willRun {
		return &sync.Run{}, false
	}
	f.running = true
	return &sync.Run{}, true
}

func (f *fakeUpdates) Running() bool { return f.running }

type fixture struct {
	client  *client.Client
	health  *region.HealthMonitor
	router  *region.Router
	updates *fakeUpdates
	srv     *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	health := region.NewHealthMonitor(region.DefaultErrorRateThreshold)
	router := region.NewRouter(health, models.AllRegions(), time.Hour)
	budget := ratelimit.NewBudget(ratelimit.Config{PerSecond: 1000, PerHour: 100000})
	c := client.New(config.UpstreamConfig{
		Timeout:    5 * time.Second,
		MaxRetries: 0,
	}, router, health, budget)
	updates := &fakeUpdates{willRun: true}

	srv := httptest.NewServer(NewRouter(NewHandlers(c, health, router, updates)))
	t.Cleanup(srv.Close)
	return &fixture{client: c, health: health, router: router, updates: updates, srv: srv}
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("{}")
	} else {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := f.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestForceRegionRoundTrip(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/regions/KR/force", `{"target":"EU"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("force status = %d", resp.StatusCode)
	}
	if got := f.client.EffectiveRegion(models.RegionKR); got != models.RegionEU {
		t.Fatalf("effective region after force = %s", got)
	}

	list := f.do(t, http.MethodGet, "/api/overrides", "")
	overrides := decode[[]map[string]any](t, list)
	if len(overrides) != 1 || overrides[0]["region"] != "KR" || overrides[0]["target"] != "EU" {
		t.Fatalf("overrides = %+v", overrides)
	}

	resp = f.do(t, http.MethodDelete, "/api/regions/KR/force", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clear status = %d", resp.StatusCode)
	}
	if got := f.client.EffectiveRegion(models.RegionKR); got != models.RegionKR {
		t.Fatalf("effective region after clear = %s", got)
	}
}

func TestForceRegionRejectsUnknownRegions(t *testing.T) {
	f := newFixture(t)

	if resp := f.do(t, http.MethodPost, "/api/regions/XX/force", `{"target":"EU"}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown region status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodPost, "/api/regions/US/force", `{"target":"XX"}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown target status = %d", resp.StatusCode)
	}
}

func TestTimeoutOverride(t *testing.T) {
	f := newFixture(t)
	base := f.client.Timeout(models.RegionUS)

	resp := f.do(t, http.MethodPost, "/api/regions/US/timeout", `{"timeout":"90s"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set timeout status = %d", resp.StatusCode)
	}
	if got := f.client.Timeout(models.RegionUS); got != 90*time.Second {
		t.Fatalf("timeout after set = %s", got)
	}

	if resp := f.do(t, http.MethodPost, "/api/regions/US/timeout", `{"timeout":"-5s"}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("negative timeout status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodPost, "/api/regions/US/timeout", `{"timeout":"soon"}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed timeout status = %d", resp.StatusCode)
	}

	resp = f.do(t, http.MethodDelete, "/api/regions/US/timeout", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clear timeout status = %d", resp.StatusCode)
	}
	if got := f.client.Timeout(models.RegionUS); got != base {
		t.Fatalf("timeout after clear = %s, want %s", got, base)
	}
}

func TestSSLIgnoreToggle(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/api/regions/CN/ssl-ignore", "")
	if !f.client.SSLIgnored(models.RegionCN) {
		t.Fatal("ssl-ignore not applied")
	}
	f.do(t, http.MethodDelete, "/api/regions/CN/ssl-ignore", "")
	if f.client.SSLIgnored(models.RegionCN) {
		t.Fatal("ssl-ignore not cleared")
	}
}

func TestCapsValidation(t *testing.T) {
	f := newFixture(t)

	if resp := f.do(t, http.MethodPost, "/api/regions/EU/caps", `{"perSecond":0,"perHour":100}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("zero perSecond status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodPost, "/api/regions/EU/caps", `{"perSecond":5,"perHour":500}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("valid caps status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodDelete, "/api/regions/EU/caps", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("clear caps status = %d", resp.StatusCode)
	}
}

func TestRegionHealthSnapshot(t *testing.T) {
	f := newFixture(t)
	f.health.AddRequest(models.RegionUS, region.ChannelNormal)
	f.health.AddError(models.RegionUS, region.ChannelNormal)
	f.health.Update()

	resp := f.do(t, http.MethodGet, "/api/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
	entries := decode[[]map[string]any](t, resp)
	found := false
	for _, e := range entries {
		if e["region"] == "US" && e["channel"] == string(region.ChannelNormal) {
			found = true
			if e["errorRate"].(float64) != 1.0 {
				t.Fatalf("US error rate = %v", e["errorRate"])
			}
			if e["degraded"] != true {
				t.Fatalf("US degraded = %v", e["degraded"])
			}
		}
	}
	if !found {
		t.Fatalf("US snapshot missing: %+v", entries)
	}
}

func TestUpdateTriggerStatusCodes(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/update", "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("first trigger status = %d", resp.StatusCode)
	}
	body := decode[map[string]bool](t, resp)
	if !body["started"] {
		t.Fatal("first trigger should report started")
	}

	f.updates.willRun = false
	resp = f.do(t, http.MethodPost, "/api/update", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second trigger status = %d", resp.StatusCode)
	}
	if decode[map[string]bool](t, resp)["started"] {
		t.Fatal("second trigger should not report started")
	}

	status := f.do(t, http.MethodGet, "/api/update/status", "")
	if !decode[map[string]bool](t, status)["running"] {
		t.Fatal("status should report running")
	}
	if f.updates.triggers != 2 {
		t.Fatalf("triggers = %d", f.updates.triggers)
	}
}

func TestUpdateTriggerContextOutlivesRequest(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/update", "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("trigger status = %d", resp.StatusCode)
	}

	// The run keeps going after the response is written, so the context
	// handed to the orchestrator must not be the request context, which
	// net/http cancels as soon as the handler returns.
	time.Sleep(50 * time.Millisecond)
	if err := f.updates.lastCtx.Err(); err != nil {
		t.Fatalf("trigger context cancelled after response: %v", err)
	}
}

func TestAutoForceToggle(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/auto-force", `{"enabled":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("auto-force status = %d", resp.StatusCode)
	}
	if !f.router.AutoForceRegion() {
		t.Fatal("auto-force not enabled")
	}
	f.do(t, http.MethodPost, "/api/auto-force", `{"enabled":false}`)
	if f.router.AutoForceRegion() {
		t.Fatal("auto-force not disabled")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}
}

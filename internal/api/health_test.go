package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prath-devops/sfdx-core/internal/model"
)

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("Status = %q, want ok", health.Status)
	}
}

func TestStats(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := postWatch(t, ts, `{"target":"https://ops.example.test/status/1","frequency_ms":10,"timeout_ms":1000}`)
	var created model.Watch
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()

	waitForWatchStatus(t, srv, created.ID, model.StatusCompleted, 5*time.Second)

	statsResp, err := http.Get(ts.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("GET /v1/stats: %v", err)
	}
	defer statsResp.Body.Close()

	if statsResp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", statsResp.StatusCode)
	}

	var stats statsResponse
	if err := json.NewDecoder(statsResp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.Total != 1 {
		t.Errorf("Total = %d, want 1", stats.Total)
	}
	if stats.ByStatus[model.StatusCompleted] != 1 {
		t.Errorf("ByStatus[completed] = %d, want 1", stats.ByStatus[model.StatusCompleted])
	}
	if stats.ByMode[model.ModePoll] != 1 {
		t.Errorf("ByMode[poll] = %d, want 1", stats.ByMode[model.ModePoll])
	}
}

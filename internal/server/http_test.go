package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"PoolLedger/internal/observability"
	"PoolLedger/internal/query"
	"PoolLedger/internal/server"
)

type stubSnapshots struct {
	calls int
	err   error
}

func (s *stubSnapshots) TakeSnapshot(_ context.Context) (*query.SnapshotInfo, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &query.SnapshotInfo{Sequence: 42, CreatedAt: time.Now()}, nil
}

func newTestServer(t *testing.T, snapshots server.SnapshotTrigger) *httptest.Server {
	t.Helper()
	health := observability.NewHealthChecker()
	health.SetReady(true)
	srv := server.New(nil, snapshots, health, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz: got %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("readyz: got %d, want 200", resp.StatusCode)
	}
}

func TestReadinessReflectsState(t *testing.T) {
	health := observability.NewHealthChecker()
	srv := server.New(nil, nil, health, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("not ready: got %d, want 503", resp.StatusCode)
	}
}

func TestBadAssetParam(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/v1/banks/not-a-uuid")
	if err != nil {
		t.Fatalf("get bank: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad asset id: got %d, want 400", resp.StatusCode)
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	trigger := &stubSnapshots{}
	ts := newTestServer(t, trigger)

	resp, err := http.Post(ts.URL+"/v1/admin/snapshot", "application/json", nil)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("snapshot: got %d, want 202", resp.StatusCode)
	}
	if trigger.calls != 1 {
		t.Errorf("trigger calls: got %d, want 1", trigger.calls)
	}

	var info query.SnapshotInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Sequence != 42 {
		t.Errorf("sequence: got %d, want 42", info.Sequence)
	}
}

func TestSnapshotDisabled(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/v1/admin/snapshot", "application/json", nil)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("disabled snapshot: got %d, want 501", resp.StatusCode)
	}
}

package cli

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/me/gosweep/internal/config"
	"github.com/me/gosweep/internal/logging"
	"github.com/me/gosweep/internal/server"
	"github.com/me/gosweep/internal/session"
	"github.com/me/gosweep/internal/store"
	"github.com/me/gosweep/internal/substrate"
	"github.com/me/gosweep/pkg/model"
)

// startTestServer starts a daemon backed by an in-memory store and a
// fake substrate, and returns the base URL plus the substrate so tests
// can plant result files.
func startTestServer(t *testing.T) (string, *substrate.Fake) {
	t.Helper()

	st, err := store.NewSQLiteStore(":memory:", logging.Discard())
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.DefaultServerConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.ReportInterval = time.Hour

	fake := substrate.NewFake()
	srv := server.New(cfg, st, session.NewMemoryStore(), fake, logging.Discard())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL, fake
}

func testClient(serverURL string) *Client {
	return NewClient(serverURL, logging.Discard())
}

// submitTestSweep creates a two-run sweep via the API and returns its ID.
func submitTestSweep(t *testing.T, c *Client) string {
	t.Helper()

	resp, err := c.Post("/api/v1/sweeps/", map[string]any{
		"name":         "cli-test",
		"model":        "models/cli.xml",
		"model_data":   "<model/>",
		"parameters":   []map[string]any{{"name": "alpha", "values": []float64{0.1, 0.2}}},
		"max_parallel": 2,
	})
	if err != nil {
		t.Fatalf("create sweep: %v", err)
	}

	var data struct {
		Sweep model.Sweep `json:"sweep"`
	}
	json.Unmarshal(resp.Data, &data)
	if data.Sweep.ID == "" {
		t.Fatal("sweep response missing id")
	}
	return data.Sweep.ID
}

// finishSweep plants result files until the sweep completes.
func finishSweep(t *testing.T, c *Client, fake *substrate.Fake, id string) {
	t.Helper()
	payload := []byte(`{"success": true, "data": {"Time": [0, 1, 2], "x": [1, 2, 3]}}`)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, handle := range fake.Handles() {
			fake.SetFile(handle, "results.json", payload)
		}
		sweep, _, err := fetchSweepWith(c, id)
		if err != nil {
			t.Fatalf("fetch sweep: %v", err)
		}
		if sweep.Phase == model.BatchPhaseCompleted {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("sweep did not complete in time")
}

// fetchSweepWith is fetchSweep against an explicit client; the command
// helpers use the package-level client that cobra wires up.
func fetchSweepWith(c *Client, id string) (*model.Sweep, any, error) {
	resp, err := c.Get("/api/v1/sweeps/" + id)
	if err != nil {
		return nil, nil, err
	}
	var data struct {
		Sweep *model.Sweep `json:"sweep"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, nil, err
	}
	return data.Sweep, nil, nil
}

func TestClient_SubmitAndStatus(t *testing.T) {
	url, fake := startTestServer(t)
	c := testClient(url)

	id := submitTestSweep(t, c)
	finishSweep(t, c, fake, id)

	sweep, _, err := fetchSweepWith(c, id)
	if err != nil {
		t.Fatalf("fetch sweep: %v", err)
	}
	if sweep.Phase != model.BatchPhaseCompleted {
		t.Errorf("phase = %s, want COMPLETED", sweep.Phase)
	}
	if sweep.TotalRuns != 2 {
		t.Errorf("total_runs = %d, want 2", sweep.TotalRuns)
	}
}

func TestClient_List(t *testing.T) {
	url, _ := startTestServer(t)
	c := testClient(url)
	submitTestSweep(t, c)

	resp, err := c.Get("/api/v1/sweeps/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var sweeps []*model.Sweep
	json.Unmarshal(resp.Data, &sweeps)
	if len(sweeps) != 1 {
		t.Errorf("sweeps = %d, want 1", len(sweeps))
	}
	if resp.Pagination == nil || resp.Pagination.Total != 1 {
		t.Errorf("pagination = %+v, want total 1", resp.Pagination)
	}
}

func TestClient_ExportRaw(t *testing.T) {
	url, fake := startTestServer(t)
	c := testClient(url)

	id := submitTestSweep(t, c)
	finishSweep(t, c, fake, id)

	body, contentType, err := c.GetRaw("/api/v1/sweeps/" + id + "/export?run=0&format=csv")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if contentType != "text/csv" {
		t.Errorf("content-type = %q, want text/csv", contentType)
	}
	if len(body) == 0 {
		t.Error("export body is empty")
	}
}

func TestClient_ErrorEnvelope(t *testing.T) {
	url, _ := startTestServer(t)
	c := testClient(url)

	_, err := c.Get("/api/v1/sweeps/sess_missing")
	if err == nil {
		t.Fatal("expected error for missing sweep")
	}
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("error type = %T, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrNotFound {
		t.Errorf("code = %s, want NOT_FOUND", apiErr.Code)
	}
}

func TestDefaultServer_EnvOverride(t *testing.T) {
	t.Setenv("GOSWEEP_SERVER", "http://example.com:9999")
	if got := defaultServer(); got != "http://example.com:9999" {
		t.Errorf("defaultServer() = %q", got)
	}
}

func TestSubmitCmd_LoadsDefinition(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "lotka.xml")
	if err := os.WriteFile(modelPath, []byte("<model/>"), 0o644); err != nil {
		t.Fatal(err)
	}
	sweepYAML := `
name: lv-sweep
model: lotka.xml
parameters:
  - name: alpha
    values: [0.1, 0.2]
replicates: 2
`
	sweepPath := filepath.Join(dir, "sweep.yaml")
	if err := os.WriteFile(sweepPath, []byte(sweepYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	def, err := config.LoadSweep(sweepPath)
	if err != nil {
		t.Fatalf("load sweep: %v", err)
	}
	if def.TotalRuns() != 4 {
		t.Errorf("total runs = %d, want 4", def.TotalRuns())
	}
	if def.MaxParallel != 4 {
		t.Errorf("max_parallel default = %d, want 4", def.MaxParallel)
	}
}

package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"cessation-pipeline/internal/artifact"
	"cessation-pipeline/internal/models"
	"cessation-pipeline/internal/pipeline"
)

// fakeRunner writes a state-level CSV and a manifest, optionally blocking
// until release is closed
type fakeRunner struct {
	store   artifact.Store
	started chan struct{}
	release chan struct{}
	fail    bool
}

func (f *fakeRunner) Run(ctx context.Context) (*pipeline.Manifest, error) {
	if f.started != nil {
		close(f.started)
		<-f.release
	}
	if f.fail {
		return nil, eris.New("harmonize: step cigarette_tax: required table CigTax_PerPack")
	}
	info, err := f.store.Put(ctx, pipeline.StateLevel, strings.NewReader("_state,year\n39,2015\n"),
		artifact.PutOptions{ContentType: "text/csv", Overwrite: true})
	if err != nil {
		return nil, err
	}
	m := &pipeline.Manifest{RunID: "run-1", Status: pipeline.StatusSucceeded, Artifacts: []artifact.Info{info}}
	body, _ := json.Marshal(m)
	if _, err := f.store.Put(ctx, pipeline.ManifestArtifact, strings.NewReader(string(body)), artifact.PutOptions{Overwrite: true}); err != nil {
		return nil, err
	}
	return m, nil
}

func newServer(t *testing.T, runner Runner, store artifact.Store) (*httptest.Server, *Handler) {
	t.Helper()
	h := NewHandler(runner, store, nil, zap.NewNop())
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, h
}

func TestRunAndFetchArtifacts(t *testing.T) {
	store := artifact.NewMemory()
	srv, _ := newServer(t, &fakeRunner{store: store}, store)

	resp, err := http.Get(srv.URL + "/runs/latest")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("latest before any run: %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/runs", "application/json", nil)
	if err != nil {
		t.Fatalf("post run: %v", err)
	}
	var run models.RunResponse
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusCreated || run.Manifest == nil || run.Manifest.RunID != "run-1" {
		t.Fatalf("run response %d: %+v", resp.StatusCode, run)
	}

	resp, err = http.Get(srv.URL + "/runs/latest")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		t.Fatalf("decode latest: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || run.Manifest.RunID != "run-1" {
		t.Fatalf("latest %d: %+v", resp.StatusCode, run)
	}

	resp, err = http.Get(srv.URL + "/artifacts")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var list models.ArtifactsResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	_ = resp.Body.Close()
	if len(list.Artifacts) != 2 {
		t.Fatalf("artifacts: %+v", list.Artifacts)
	}

	resp, err = http.Get(srv.URL + "/artifacts/" + pipeline.StateLevel)
	if err != nil {
		t.Fatalf("get artifact: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "text/csv" || string(body) != "_state,year\n39,2015\n" {
		t.Fatalf("artifact %d %q: %q", resp.StatusCode, resp.Header.Get("Content-Type"), body)
	}

	resp, err = http.Get(srv.URL + "/artifacts/missing.csv")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing artifact: %d", resp.StatusCode)
	}
}

func TestConcurrentRunIsRejected(t *testing.T) {
	store := artifact.NewMemory()
	runner := &fakeRunner{store: store, started: make(chan struct{}), release: make(chan struct{})}
	srv, _ := newServer(t, runner, store)

	done := make(chan int)
	go func() {
		resp, err := http.Post(srv.URL+"/runs", "application/json", nil)
		if err != nil {
			done <- 0
			return
		}
		_ = resp.Body.Close()
		done <- resp.StatusCode
	}()
	<-runner.started

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	var health models.HealthResponse
	_ = json.NewDecoder(resp.Body).Decode(&health)
	_ = resp.Body.Close()
	if !health.RunInFlight || health.BlobDriver != "memory" {
		t.Fatalf("health during run: %+v", health)
	}

	resp, err = http.Post(srv.URL+"/runs", "application/json", nil)
	if err != nil {
		t.Fatalf("second post: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second run: %d, want 409", resp.StatusCode)
	}

	close(runner.release)
	if code := <-done; code != http.StatusCreated {
		t.Fatalf("first run: %d", code)
	}
}

func TestFailedRunReturns500(t *testing.T) {
	store := artifact.NewMemory()
	srv, _ := newServer(t, &fakeRunner{store: store, fail: true}, store)

	resp, err := http.Post(srv.URL+"/runs", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	var e models.ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&e)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError || !strings.Contains(e.Error, "cigarette_tax") {
		t.Fatalf("failed run %d: %+v", resp.StatusCode, e)
	}
}

func TestHealthChecksNeverBlockRuns(t *testing.T) {
	store := artifact.NewMemory()
	srv, h := newServer(t, &fakeRunner{store: store}, store)

	stop := make(chan struct{})
	probes := make(chan struct{})
	go func() {
		defer close(probes)
		for {
			select {
			case <-stop:
				return
			default:
			}
			rec := httptest.NewRecorder()
			h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		}
	}()

	for i := 0; i < 20; i++ {
		resp, err := http.Post(srv.URL+"/runs", "application/json", nil)
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("run %d during health checks: %d", i, resp.StatusCode)
		}
	}
	close(stop)
	<-probes

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var health models.HealthResponse
	_ = json.NewDecoder(rec.Body).Decode(&health)
	if health.RunInFlight {
		t.Fatalf("health after runs: %+v", health)
	}
}

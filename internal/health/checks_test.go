package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/medisynth-ai/medisynth/internal/extract"
	"github.com/medisynth-ai/medisynth/internal/pipeline"
)

func TestHTTPChecker_HealthyServer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := HTTPChecker("whisper", srv.URL, srv.Client())
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("Check() = %v, want nil", err)
	}
}

func TestHTTPChecker_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := HTTPChecker("whisper", srv.URL, srv.Client())
	err := c.Check(context.Background())
	if err == nil {
		t.Fatal("Check() = nil, want error")
	}
	if !strings.Contains(err.Error(), "HTTP 500") {
		t.Errorf("error = %q, want it to mention HTTP 500", err)
	}
}

func TestHTTPChecker_Unreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := HTTPChecker("whisper", url, nil)
	if err := c.Check(context.Background()); err == nil {
		t.Error("Check() = nil, want connection error")
	}
}

func TestHTTPChecker_ClientErrorIsHealthy(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := HTTPChecker("whisper", srv.URL, srv.Client())
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("Check() = %v, want nil for a 404", err)
	}
}

func TestPipelineChecker_HealthyPipeline(t *testing.T) {
	t.Parallel()

	pat, err := extract.NewPattern()
	if err != nil {
		t.Fatalf("NewPattern: %v", err)
	}
	g := pipeline.New(pat)

	c := PipelineChecker(g)
	if c.Name != "pipeline" {
		t.Errorf("Name = %q, want %q", c.Name, "pipeline")
	}
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("Check() = %v, want nil", err)
	}
}

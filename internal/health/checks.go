package health

import (
	"context"
	"fmt"
	"net/http"

	"github.com/medisynth-ai/medisynth/internal/pipeline"
	"github.com/medisynth-ai/medisynth/internal/transcript"
)

// HTTPChecker probes an HTTP collaborator (e.g. a local whisper-server) with
// a GET request to url. Any response below 500 counts as healthy; connection
// failures and 5xx responses fail the check.
func HTTPChecker(name, url string, client *http.Client) Checker {
	if client == nil {
		client = http.DefaultClient
	}
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return fmt.Errorf("build probe request: %w", err)
			}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("probe %s: %w", url, err)
			}
			resp.Body.Close()
			if resp.StatusCode >= 500 {
				return fmt.Errorf("probe %s: HTTP %d", url, resp.StatusCode)
			}
			return nil
		},
	}
}

// PipelineChecker runs a tiny canary transcript through the note-generation
// pipeline. Generation is total, so the check verifies the pipeline produces
// a note with non-empty sections rather than looking for errors.
func PipelineChecker(g *pipeline.Generator) Checker {
	const canary = "Doctor: How are you?\nPatient: I have a headache."

	return Checker{
		Name: "pipeline",
		Check: func(ctx context.Context) error {
			note := g.Generate(ctx, canary, transcript.FormatLabeled)
			if note == nil {
				return fmt.Errorf("pipeline returned no note")
			}
			if note.Subjective == "" || note.Objective == "" || note.Assessment == "" || note.Plan == "" {
				return fmt.Errorf("pipeline returned a note with empty sections")
			}
			return nil
		},
	}
}

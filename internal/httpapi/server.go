// Package httpapi exposes note generation over HTTP.
//
// The server is stateless: every request runs through the pipeline
// independently, so handlers are safe for arbitrary concurrency. The
// generator and the transcription provider can be swapped at runtime, which
// is how configuration reloads take effect without dropping connections.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"

	"github.com/medisynth-ai/medisynth/internal/health"
	"github.com/medisynth-ai/medisynth/internal/observe"
	"github.com/medisynth-ai/medisynth/internal/pipeline"
	"github.com/medisynth-ai/medisynth/internal/soap"
	"github.com/medisynth-ai/medisynth/internal/transcript"
	"github.com/medisynth-ai/medisynth/pkg/provider/stt"
)

// defaultMaxAudioBytes caps multipart audio uploads at 25 MiB, matching the
// limit most hosted transcription APIs enforce.
const defaultMaxAudioBytes = 25 << 20

// Server serves the note-generation API.
type Server struct {
	metrics *observe.Metrics
	healthy *health.Handler

	maxAudioBytes int64

	mu          sync.RWMutex
	generator   *pipeline.Generator
	transcriber stt.Provider
}

// Option configures a [Server].
type Option func(*Server)

// WithTranscriber enables the audio endpoint using the given provider. When
// no transcriber is set the endpoint responds 503.
func WithTranscriber(p stt.Provider) Option {
	return func(s *Server) { s.transcriber = p }
}

// WithMetrics overrides the metrics used by the server and its middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealth mounts the given health handler on the server mux.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.healthy = h }
}

// WithMaxAudioBytes overrides the audio upload size limit.
func WithMaxAudioBytes(n int64) Option {
	return func(s *Server) { s.maxAudioBytes = n }
}

// New creates a server around the given generator.
func New(gen *pipeline.Generator, opts ...Option) *Server {
	s := &Server{
		generator:     gen,
		metrics:       observe.DefaultMetrics(),
		healthy:       health.New(),
		maxAudioBytes: defaultMaxAudioBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SwapGenerator replaces the pipeline generator. In-flight requests keep the
// generator they started with.
func (s *Server) SwapGenerator(gen *pipeline.Generator) {
	s.mu.Lock()
	s.generator = gen
	s.mu.Unlock()
}

// SwapTranscriber replaces the transcription provider. Passing nil disables
// the audio endpoint.
func (s *Server) SwapTranscriber(p stt.Provider) {
	s.mu.Lock()
	s.transcriber = p
	s.mu.Unlock()
}

// Handler returns the fully routed and instrumented handler:
//
//	POST /v1/notes        transcript text in, SOAP note out
//	POST /v1/notes/audio  multipart audio in, transcribed and composed
//	GET  /metrics         Prometheus scrape endpoint
//	GET  /healthz         liveness
//	GET  /readyz          readiness
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/notes", s.handleNotes)
	mux.HandleFunc("POST /v1/notes/audio", s.handleNotesAudio)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.healthy.Register(mux)
	return observe.Middleware(s.metrics)(mux)
}

// notesRequest is the JSON body for the notes endpoint.
type notesRequest struct {
	Transcript string `json:"transcript"`
	Format     string `json:"format,omitempty"`
}

// entityJSON is the wire form of an extracted entity.
type entityJSON struct {
	Text       string  `json:"text"`
	Category   string  `json:"category"`
	Utterance  int     `json:"utterance"`
	Confidence float64 `json:"confidence"`
}

// noteResponse is the JSON body returned from both note endpoints.
type noteResponse struct {
	ID          string       `json:"id"`
	GeneratedAt time.Time    `json:"generated_at"`
	GeneratedBy string       `json:"generated_by"`
	Subjective  string       `json:"subjective"`
	Objective   string       `json:"objective"`
	Assessment  string       `json:"assessment"`
	Plan        string       `json:"plan"`
	Entities    []entityJSON `json:"entities"`
	Rendered    string       `json:"rendered"`
	Transcript  string       `json:"transcript,omitempty"`
}

// handleNotes handles POST /v1/notes.
func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	format, err := parseFormat(req.Format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	note := s.currentGenerator().Generate(r.Context(), req.Transcript, format)
	writeNote(w, note, "")
}

// handleNotesAudio handles POST /v1/notes/audio. The request is a multipart
// form with a "file" part holding the recording and an optional "format"
// field for the transcript layout hint.
func (s *Server) handleNotesAudio(w http.ResponseWriter, r *http.Request) {
	transcriber := s.currentTranscriber()
	if transcriber == nil {
		http.Error(w, "audio transcription is not configured", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxAudioBytes)
	if err := r.ParseMultipartForm(s.maxAudioBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "audio upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	format, err := parseFormat(r.FormValue("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, `missing "file" part`, http.StatusBadRequest)
		return
	}
	defer file.Close()

	start := time.Now()
	result, err := transcriber.Transcribe(r.Context(), file, header.Filename)
	s.metrics.TranscribeDuration.Record(r.Context(), time.Since(start).Seconds())
	if err != nil {
		s.metrics.ProviderErrors.Add(r.Context(), 1,
			metric.WithAttributes(observe.Attr("provider", "stt")))
		observe.Logger(r.Context()).Error("transcription failed", "error", err)
		http.Error(w, "transcription failed", http.StatusBadGateway)
		return
	}

	note := s.currentGenerator().Generate(r.Context(), result.Text, format)
	writeNote(w, note, result.Text)
}

func (s *Server) currentGenerator() *pipeline.Generator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generator
}

func (s *Server) currentTranscriber() stt.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transcriber
}

// parseFormat maps the wire format hint onto a [transcript.Format].
// An empty hint defaults to labeled input.
func parseFormat(v string) (transcript.Format, error) {
	switch v {
	case "", string(transcript.FormatLabeled):
		return transcript.FormatLabeled, nil
	case string(transcript.FormatUnlabeled):
		return transcript.FormatUnlabeled, nil
	default:
		return "", errors.New(`format must be "labeled" or "unlabeled"`)
	}
}

// writeNote serialises a note as JSON. transcriptText is included only for
// audio requests, where the caller has not seen the transcript yet.
func writeNote(w http.ResponseWriter, note *soap.Note, transcriptText string) {
	resp := noteResponse{
		ID:          note.ID.String(),
		GeneratedAt: note.GeneratedAt,
		GeneratedBy: soap.GeneratedBy,
		Subjective:  note.Subjective,
		Objective:   note.Objective,
		Assessment:  note.Assessment,
		Plan:        note.Plan,
		Entities:    make([]entityJSON, 0, len(note.Entities)),
		Rendered:    note.Render(),
		Transcript:  transcriptText,
	}
	for _, e := range note.Entities {
		resp.Entities = append(resp.Entities, entityJSON{
			Text:       e.Text,
			Category:   string(e.Category),
			Utterance:  e.Utterance,
			Confidence: e.Confidence,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

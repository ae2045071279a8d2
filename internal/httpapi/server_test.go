package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/medisynth-ai/medisynth/internal/extract"
	"github.com/medisynth-ai/medisynth/internal/pipeline"
	"github.com/medisynth-ai/medisynth/pkg/provider/stt"
	sttmock "github.com/medisynth-ai/medisynth/pkg/provider/stt/mock"
)

const sampleTranscript = "Doctor: What brings you in today?\n" +
	"Patient: I have chest pain and I take lisinopril.\n" +
	"Doctor: Your blood pressure is 140 over 90. Let's order an ECG."

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()

	pat, err := extract.NewPattern()
	if err != nil {
		t.Fatalf("NewPattern: %v", err)
	}
	return New(pipeline.New(pat), opts...)
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeNote(t *testing.T, rec *httptest.ResponseRecorder) noteResponse {
	t.Helper()

	var resp noteResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestNotes_GeneratesNote(t *testing.T) {
	t.Parallel()

	h := newTestServer(t).Handler()
	rec := postJSON(t, h, "/v1/notes", notesRequest{Transcript: sampleTranscript})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}

	resp := decodeNote(t, rec)
	if !strings.Contains(resp.Subjective, "Chief Complaint: chest pain") {
		t.Errorf("subjective = %q, want chest pain chief complaint", resp.Subjective)
	}
	if !strings.Contains(resp.Objective, "Blood Pressure: 140/90") {
		t.Errorf("objective = %q, want normalised blood pressure", resp.Objective)
	}
	if !strings.Contains(resp.Rendered, "CLINICAL SOAP NOTE") {
		t.Error("rendered note missing header")
	}
	if len(resp.Entities) == 0 {
		t.Error("entities is empty, want extracted entities")
	}
	if resp.ID == "" {
		t.Error("id is empty")
	}
	if resp.Transcript != "" {
		t.Errorf("transcript = %q, want empty for text requests", resp.Transcript)
	}
}

func TestNotes_InvalidJSON(t *testing.T) {
	t.Parallel()

	h := newTestServer(t).Handler()
	req := httptest.NewRequest("POST", "/v1/notes", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestNotes_UnknownFormat(t *testing.T) {
	t.Parallel()

	h := newTestServer(t).Handler()
	rec := postJSON(t, h, "/v1/notes", notesRequest{Transcript: sampleTranscript, Format: "verbatim"})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestNotes_UnlabeledFormat(t *testing.T) {
	t.Parallel()

	h := newTestServer(t).Handler()
	rec := postJSON(t, h, "/v1/notes", notesRequest{
		Transcript: "chest pain since this morning",
		Format:     "unlabeled",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decodeNote(t, rec)
	if !strings.Contains(resp.Subjective, "Chief Complaint: Not documented") {
		t.Errorf("subjective = %q, want placeholder chief complaint for unattributed input", resp.Subjective)
	}
}

func TestNotes_EmptyTranscriptStillProducesNote(t *testing.T) {
	t.Parallel()

	h := newTestServer(t).Handler()
	rec := postJSON(t, h, "/v1/notes", notesRequest{Transcript: ""})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decodeNote(t, rec)
	for name, section := range map[string]string{
		"subjective": resp.Subjective,
		"objective":  resp.Objective,
		"assessment": resp.Assessment,
		"plan":       resp.Plan,
	} {
		if section == "" {
			t.Errorf("%s section is empty, want placeholder content", name)
		}
	}
}

// audioRequest builds a multipart request with a "file" part.
func audioRequest(t *testing.T, path, filename string, audio []byte, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %q: %v", k, err)
		}
	}
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(audio); err != nil {
			t.Fatalf("write audio: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestNotesAudio_TranscribesAndComposes(t *testing.T) {
	t.Parallel()

	mock := &sttmock.Provider{Result: stt.Result{Text: sampleTranscript, Language: "en"}}
	h := newTestServer(t, WithTranscriber(mock)).Handler()

	req := audioRequest(t, "/v1/notes/audio", "visit.wav", []byte("RIFFfake"), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}

	resp := decodeNote(t, rec)
	if resp.Transcript != sampleTranscript {
		t.Errorf("transcript = %q, want the transcription result", resp.Transcript)
	}
	if !strings.Contains(resp.Subjective, "Chief Complaint: chest pain") {
		t.Errorf("subjective = %q, want chest pain chief complaint", resp.Subjective)
	}

	if len(mock.TranscribeCalls) != 1 {
		t.Fatalf("Transcribe calls = %d, want 1", len(mock.TranscribeCalls))
	}
	call := mock.TranscribeCalls[0]
	if call.Filename != "visit.wav" {
		t.Errorf("filename = %q, want %q", call.Filename, "visit.wav")
	}
	if string(call.Audio) != "RIFFfake" {
		t.Errorf("audio = %q, want the uploaded bytes", call.Audio)
	}
}

func TestNotesAudio_NoTranscriberConfigured(t *testing.T) {
	t.Parallel()

	h := newTestServer(t).Handler()
	req := audioRequest(t, "/v1/notes/audio", "visit.wav", []byte("RIFF"), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestNotesAudio_MissingFilePart(t *testing.T) {
	t.Parallel()

	mock := &sttmock.Provider{Result: stt.Result{Text: "hello"}}
	h := newTestServer(t, WithTranscriber(mock)).Handler()

	req := audioRequest(t, "/v1/notes/audio", "", nil, map[string]string{"format": "labeled"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestNotesAudio_TranscriberError(t *testing.T) {
	t.Parallel()

	mock := &sttmock.Provider{Err: errors.New("whisper unreachable")}
	h := newTestServer(t, WithTranscriber(mock)).Handler()

	req := audioRequest(t, "/v1/notes/audio", "visit.wav", []byte("RIFF"), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestNotesAudio_UploadTooLarge(t *testing.T) {
	t.Parallel()

	mock := &sttmock.Provider{Result: stt.Result{Text: "hello"}}
	srv := newTestServer(t, WithTranscriber(mock), WithMaxAudioBytes(64))
	h := srv.Handler()

	req := audioRequest(t, "/v1/notes/audio", "visit.wav", bytes.Repeat([]byte("a"), 1024), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestSwapTranscriber_EnablesAudioEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	h := srv.Handler()

	req := audioRequest(t, "/v1/notes/audio", "visit.wav", []byte("RIFF"), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status before swap = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	srv.SwapTranscriber(&sttmock.Provider{Result: stt.Result{Text: sampleTranscript}})

	req = audioRequest(t, "/v1/notes/audio", "visit.wav", []byte("RIFF"), nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status after swap = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	h := newTestServer(t).Handler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	h := newTestServer(t).Handler()
	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestCorrelationIDHeader(t *testing.T) {
	prev := otel.GetTracerProvider()
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	h := newTestServer(t).Handler()
	rec := postJSON(t, h, "/v1/notes", notesRequest{Transcript: sampleTranscript})

	if got := rec.Header().Get("X-Correlation-ID"); got == "" {
		t.Error("X-Correlation-ID header is missing")
	}
}

package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"agrivoice/internal/application"
	"agrivoice/internal/domain"
	"agrivoice/internal/infra/httpapi"
)

type stubStream struct{}

func (stubStream) Stop() ([][]byte, error) { return [][]byte{[]byte("audio")}, nil }
func (stubStream) Close() error            { return nil }

type stubCapture struct{}

func (stubCapture) Name() string    { return "stub" }
func (stubCapture) Supported() bool { return true }

func (stubCapture) Open(_ context.Context) (application.CaptureStream, error) {
	return stubStream{}, nil
}

type stubTranscriber struct {
	err error
}

func (s *stubTranscriber) Transcribe(_ context.Context, _ application.TranscribeRequest) (*domain.TranscriptionResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.TranscriptionResult{ProductName: "Tomatoes", Quantity: "5kg", Price: "30"}, nil
}

type stubStore struct {
	err   error
	saved []domain.Submission
}

func (s *stubStore) StoreProduct(_ context.Context, sub domain.Submission) error {
	s.saved = append(s.saved, sub)
	return s.err
}

func newTestServer(t *testing.T, token string, stt *stubTranscriber, store *stubStore) (http.Handler, *httpapi.Board) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	board := httpapi.NewBoard(logger)
	ctrl := application.NewController(application.Dependencies{
		Capture:     stubCapture{},
		Transcriber: stt,
		Store:       store,
		Presenter:   board,
	}, "demo_user", logger)
	return httpapi.NewServer(":0", token, ctrl, board, logger).Handler(), board
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding %s %s response %q: %v", method, path, rec.Body.String(), err)
	}
	return rec, out
}

func TestServer_RecordEditSave(t *testing.T) {
	store := &stubStore{}
	h, board := newTestServer(t, "", &stubTranscriber{}, store)

	rec, out := do(t, h, http.MethodPost, "/capture/toggle", "")
	if rec.Code != http.StatusOK || out["state"] != "recording" {
		t.Fatalf("start: code %d, body %v", rec.Code, out)
	}

	rec, out = do(t, h, http.MethodPost, "/capture/toggle", "")
	if rec.Code != http.StatusOK || out["state"] != "succeeded" {
		t.Fatalf("stop: code %d, body %v", rec.Code, out)
	}
	draft, _ := out["draft"].(map[string]any)
	if draft["product_name"] != "Tomatoes" {
		t.Errorf("draft: got %v", draft)
	}
	if !board.PreviewVisible() {
		t.Error("preview should be visible")
	}

	rec, _ = do(t, h, http.MethodPut, "/draft", `{"product_name":"Tomatoes","quantity":"6kg","price":"28"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update draft: code %d", rec.Code)
	}

	rec, out = do(t, h, http.MethodPost, "/draft/save", "")
	if rec.Code != http.StatusOK || out["state"] != "idle" {
		t.Fatalf("save: code %d, body %v", rec.Code, out)
	}
	if len(store.saved) != 1 || store.saved[0].Draft.Quantity != "6kg" {
		t.Errorf("saved: %+v", store.saved)
	}
	status, _ := out["status"].(map[string]any)
	if status["message"] != "Product saved successfully!" {
		t.Errorf("status: got %v", status)
	}
}

func TestServer_TranscriptionFailure(t *testing.T) {
	h, _ := newTestServer(t, "", &stubTranscriber{err: domain.ServerRejected("complete voice process", nil)}, &stubStore{})

	do(t, h, http.MethodPost, "/capture/toggle", "")
	rec, out := do(t, h, http.MethodPost, "/capture/toggle", "")

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status code: got %d, want %d", rec.Code, http.StatusBadGateway)
	}
	if out["error"] != "server_rejected" || out["message"] != "Error processing audio" {
		t.Errorf("body: %v", out)
	}
	session, _ := out["session"].(map[string]any)
	if session["state"] != "failed" || session["draft"] != nil {
		t.Errorf("session: %v", session)
	}
}

func TestServer_SaveFailureMessage(t *testing.T) {
	store := &stubStore{err: domain.NetworkFailure("store product", io.ErrUnexpectedEOF)}
	h, _ := newTestServer(t, "", &stubTranscriber{}, store)

	do(t, h, http.MethodPost, "/capture/toggle", "")
	do(t, h, http.MethodPost, "/capture/toggle", "")
	rec, out := do(t, h, http.MethodPost, "/draft/save", "")

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status code: got %d, want %d", rec.Code, http.StatusBadGateway)
	}
	if out["message"] != "Error saving product" {
		t.Errorf("message: got %v", out["message"])
	}
	session, _ := out["session"].(map[string]any)
	if session["state"] != "succeeded" {
		t.Errorf("draft should survive a failed save: %v", session)
	}
}

func TestServer_InvalidTransitions(t *testing.T) {
	h, _ := newTestServer(t, "", &stubTranscriber{}, &stubStore{})

	rec, out := do(t, h, http.MethodPost, "/draft/save", "")
	if rec.Code != http.StatusConflict || out["error"] != "invalid_transition" {
		t.Errorf("save while idle: code %d, body %v", rec.Code, out)
	}

	rec, _ = do(t, h, http.MethodPut, "/draft", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad draft body: code %d", rec.Code)
	}
}

func TestServer_Language(t *testing.T) {
	h, _ := newTestServer(t, "", &stubTranscriber{}, &stubStore{})

	tests := []struct {
		body     string
		wantCode int
		wantLang string
	}{
		{`{"language":"te"}`, http.StatusOK, "te"},
		{`{"language":"mr-IN"}`, http.StatusOK, "mr"},
		{`{"language":"fr"}`, http.StatusBadRequest, ""},
		{`{}`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			rec, out := do(t, h, http.MethodPut, "/language", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status code: got %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantLang != "" && out["language"] != tt.wantLang {
				t.Errorf("language: got %v, want %s", out["language"], tt.wantLang)
			}
		})
	}

	_, out := do(t, h, http.MethodGet, "/language", "")
	if out["language"] != "mr" {
		t.Errorf("current language: got %v, want mr", out["language"])
	}
}

type brokenPrefs struct{}

func (brokenPrefs) LoadLanguage() (domain.Language, error) { return "", nil }
func (brokenPrefs) SaveLanguage(domain.Language) error     { return errors.New("disk full") }

func TestServer_LanguageStorageFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	board := httpapi.NewBoard(logger)
	ctrl := application.NewController(application.Dependencies{
		Capture:     stubCapture{},
		Transcriber: &stubTranscriber{},
		Store:       &stubStore{},
		Presenter:   board,
		Preferences: brokenPrefs{},
	}, "demo_user", logger)
	h := httpapi.NewServer(":0", "", ctrl, board, logger).Handler()

	rec, out := do(t, h, http.MethodPut, "/language", `{"language":"ta"}`)
	if rec.Code != http.StatusInternalServerError || out["error"] != "storage" {
		t.Errorf("set language: code %d, body %v", rec.Code, out)
	}

	_, out = do(t, h, http.MethodGet, "/language", "")
	if out["language"] != "en" {
		t.Errorf("language should be unchanged: got %v", out["language"])
	}
}

func TestServer_AuthToken(t *testing.T) {
	authToken := "test-secret-token-123"
	h, _ := newTestServer(t, authToken, &stubTranscriber{}, &stubStore{})

	tests := []struct {
		name       string
		token      string
		method     string
		wantStatus int
	}{
		{"valid token in header", authToken, "header", http.StatusOK},
		{"valid token in query", authToken, "query", http.StatusOK},
		{"invalid token", "wrong-token", "header", http.StatusUnauthorized},
		{"missing token", "", "header", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *http.Request
			if tt.method == "query" {
				req = httptest.NewRequest(http.MethodPost, "/capture/reset?token="+tt.token, nil)
			} else {
				req = httptest.NewRequest(http.MethodPost, "/capture/reset", nil)
				if tt.token != "" {
					req.Header.Set("X-Auth-Token", tt.token)
				}
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status code: got %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}

	// Read-only endpoints stay open.
	rec, _ := do(t, h, http.MethodGet, "/session", "")
	if rec.Code != http.StatusOK {
		t.Errorf("session without token: got %d", rec.Code)
	}
}

func TestServer_SessionHistory(t *testing.T) {
	h, _ := newTestServer(t, "", &stubTranscriber{}, &stubStore{})

	do(t, h, http.MethodPost, "/capture/toggle", "")
	do(t, h, http.MethodPost, "/capture/toggle", "")

	_, out := do(t, h, http.MethodGet, "/session", "")
	history, _ := out["history"].([]any)

	var messages []string
	for _, e := range history {
		entry, _ := e.(map[string]any)
		msg, _ := entry["message"].(string)
		messages = append(messages, msg)
	}
	want := []string{"Recording...", "Processing audio...", "Audio processed successfully"}
	if strings.Join(messages, "|") != strings.Join(want, "|") {
		t.Errorf("history: got %v, want %v", messages, want)
	}

	// Action responses carry only the latest status.
	_, out = do(t, h, http.MethodPost, "/capture/reset", "")
	if _, ok := out["history"]; ok {
		t.Error("reset response should not include history")
	}
}

func TestServer_HealthBeforeStart(t *testing.T) {
	h, _ := newTestServer(t, "", &stubTranscriber{}, &stubStore{})

	rec, out := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusServiceUnavailable || out["status"] != "not_ready" {
		t.Errorf("health: code %d, body %v", rec.Code, out)
	}
}

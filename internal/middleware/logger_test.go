package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerEmitsStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf)

	handler := RequestID(Logger(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	})))

	req := httptest.NewRequest(http.MethodPost, "/v1/api-keys", nil)
	req.Header.Set("X-Request-ID", "rid-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if line["method"] != "POST" || line["path"] != "/v1/api-keys" {
		t.Fatalf("method/path = %v/%v", line["method"], line["path"])
	}
	if line["status"] != float64(http.StatusCreated) {
		t.Fatalf("status = %v", line["status"])
	}
	if line["bytes"] != float64(len("created")) {
		t.Fatalf("bytes = %v", line["bytes"])
	}
	if line["request_id"] != "rid-1" {
		t.Fatalf("request_id = %v", line["request_id"])
	}
	if line["level"] != "info" {
		t.Fatalf("level = %v", line["level"])
	}
	if _, ok := line["took"]; !ok {
		t.Fatal("took field missing")
	}
}

func TestLoggerUsesErrorLevelForServerErrors(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf)

	handler := Logger(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/account", nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if line["level"] != "error" {
		t.Fatalf("level = %v, want error", line["level"])
	}
}

package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestLogger_Levels(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		status    int
		wantLevel string
	}{
		{"успешный запрос", "/api/v1/applications", http.StatusOK, "INFO"},
		{"ошибка клиента", "/api/v1/applications", http.StatusBadRequest, "WARN"},
		{"ошибка сервера", "/api/v1/applications", http.StatusInternalServerError, "ERROR"},
		{"проба", "/health/live", http.StatusOK, "DEBUG"},
		{"метрики", "/metrics", http.StatusOK, "DEBUG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("ok"))
			}))

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.RemoteAddr = "10.1.1.1:1234"
			h.ServeHTTP(httptest.NewRecorder(), req)

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("запись лога не JSON: %v (%s)", err, buf.String())
			}
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, ожидался %s", entry["level"], tt.wantLevel)
			}
			if entry["status"] != float64(tt.status) {
				t.Errorf("status = %v", entry["status"])
			}
			if entry["bytes"] != float64(2) {
				t.Errorf("bytes = %v, ожидалось 2", entry["bytes"])
			}
			if entry["client_ip"] != "10.1.1.1" {
				t.Errorf("client_ip = %v", entry["client_ip"])
			}
		})
	}
}

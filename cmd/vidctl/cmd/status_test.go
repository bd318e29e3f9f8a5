package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"vidrelay/internal/models"
)

func TestStatusCommand_Success(t *testing.T) {
	resetViper()

	url := "https://cdn.example/v.mp4"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/task/task-123" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(models.Job{
			ID:        "task-123",
			Status:    models.StatusSuccess,
			Message:   "Generated in 42s",
			TraceID:   "trace-1",
			VideoURL:  &url,
			CreatedAt: time.Now().Add(-time.Minute),
			UpdatedAt: time.Now(),
		})
	}))
	defer server.Close()
	viper.Set("url", server.URL)

	output := execute(t, "status", "task-123")
	for _, want := range []string{"task-123", "success", "Generated in 42s", url, "trace-1"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
	if strings.Contains(output, "Error:") {
		t.Errorf("expected no Error line, got: %s", output)
	}
}

func TestStatusCommand_NotFound(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"task not found"}`))
	}))
	defer server.Close()
	viper.Set("url", server.URL)

	output := execute(t, "status", "missing")
	if !strings.Contains(output, "Request failed (404): task not found") {
		t.Errorf("expected not found message, got: %s", output)
	}
}

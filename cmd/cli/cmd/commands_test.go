package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shortforge/pkg/api"
)

func TestLoginCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("login should not send a token")
		}
		var req api.LoginRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(api.ErrorResponse{Error: "Invalid password", Code: http.StatusUnauthorized})
			return
		}
		json.NewEncoder(w).Encode(api.LoginResponse{Token: "jwt-abc", Admin: true})
	}))
	defer server.Close()

	tests := []struct {
		name     string
		args     []string
		expected string
		exact    bool
	}{
		{"success", []string{"login", "--password", "s3cret"}, "export SHORTFORGE_TOKEN=jwt-abc", false},
		{"quiet", []string{"login", "--password", "s3cret", "--quiet"}, "jwt-abc\n", true},
		{"wrong password", []string{"login", "--password", "nope"}, "Error (401): Invalid password", false},
		{"missing password", []string{"login"}, "--password is required", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetCLI(t)
			output := runCLI(t, server.URL, "", tt.args...)

			if tt.exact && output != tt.expected {
				t.Errorf("got %q, want %q", output, tt.expected)
			}
			if !strings.Contains(output, tt.expected) {
				t.Errorf("expected %q, got: %s", tt.expected, output)
			}
		})
	}
}

func TestListCommand(t *testing.T) {
	resetCLI(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]api.JobResponse{
			{ID: "job-2", Topic: "Newer", Status: "processing", Progress: 36, CreatedAt: time.Now()},
			{ID: "job-1", Topic: "Older", Status: "completed", Progress: 100, CreatedAt: time.Now().Add(-time.Hour)},
		})
	}))
	defer server.Close()

	output := runCLI(t, server.URL, "test-token", "list")

	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got: %s", output)
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.Contains(lines[1], "job-2") || !strings.Contains(lines[2], "job-1") {
		t.Errorf("unexpected table: %s", output)
	}
}

func TestListCommand_Empty(t *testing.T) {
	resetCLI(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	output := runCLI(t, server.URL, "test-token", "list")
	if !strings.Contains(output, "No jobs yet.") {
		t.Errorf("expected empty message, got: %s", output)
	}
}

func TestDeleteCommand(t *testing.T) {
	resetCLI(t)

	var method, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	output := runCLI(t, server.URL, "test-token", "delete", "job-7")

	if method != http.MethodDelete || path != "/api/jobs/job-7" {
		t.Errorf("unexpected request %s %s", method, path)
	}
	if !strings.Contains(output, "Job job-7 deleted") {
		t.Errorf("expected confirmation, got: %s", output)
	}
}

func TestDownloadCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/jobs/done/download" {
			w.Header().Set("Content-Type", "video/mp4")
			w.Write([]byte("mp4-bytes"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(api.ErrorResponse{Error: "Video not found or not ready", Code: http.StatusNotFound})
	}))
	defer server.Close()

	t.Run("saves file", func(t *testing.T) {
		resetCLI(t)
		out := filepath.Join(t.TempDir(), "video.mp4")

		output := runCLI(t, server.URL, "test-token", "download", "done", "--out", out)

		data, err := os.ReadFile(out)
		if err != nil {
			t.Fatalf("expected file: %v", err)
		}
		if string(data) != "mp4-bytes" {
			t.Errorf("got %q", data)
		}
		if !strings.Contains(output, "Saved") {
			t.Errorf("expected confirmation, got: %s", output)
		}
	})

	t.Run("not ready leaves no file", func(t *testing.T) {
		resetCLI(t)
		out := filepath.Join(t.TempDir(), "video.mp4")

		output := runCLI(t, server.URL, "test-token", "download", "pending", "--out", out)

		if !strings.Contains(output, "Error (404): Video not found or not ready") {
			t.Errorf("expected error, got: %s", output)
		}
		if _, err := os.Stat(out); !os.IsNotExist(err) {
			t.Error("expected no output file")
		}
		if _, err := os.Stat(out + ".part"); !os.IsNotExist(err) {
			t.Error("expected partial file to be removed")
		}
	})
}

package cmd

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestShortClient_APIErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
	}{
		{"json error body", http.StatusNotFound, `{"error":"Job not found","code":404}`, "Job not found"},
		{"plain body", http.StatusBadGateway, "upstream down\n", "upstream down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewShortClient(server.URL, "tok").GetJob("job-1")

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %v", err)
			}
			if apiErr.StatusCode != tt.status || apiErr.Message != tt.wantMessage {
				t.Errorf("got %+v", apiErr)
			}
		})
	}
}

func TestShortClient_TrimsBaseURL(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	if _, err := NewShortClient(server.URL+"/", "tok").ListJobs(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/api/jobs" {
		t.Errorf("got path %q, want /api/jobs", gotPath)
	}
}

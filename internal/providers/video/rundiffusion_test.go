package video

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newRunDiffusionServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *RunDiffusion) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewRunDiffusion(RunDiffusionOptions{
		APIKey:       "rd-key",
		BaseURL:      srv.URL + "/v1",
		PollInterval: time.Millisecond,
		PollAttempts: 3,
		HTTPClient:   srv.Client(),
	})
	return srv, client
}

func TestRunDiffusionInlineBase64(t *testing.T) {
	var payload rdGenerateRequest
	_, client := newRunDiffusionServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/generate/video" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer rd-key" {
			t.Errorf("Authorization = %q", got)
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"mp4_base64": base64.StdEncoding.EncodeToString([]byte("inline-mp4")),
		})
	})

	data, err := client.Generate(context.Background(), Request{Prompt: " sunrise ", Duration: 6})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if string(data) != "inline-mp4" {
		t.Fatalf("Generate = %q", data)
	}
	if payload.Prompt != "sunrise" || payload.DurationSeconds != 6 || payload.FPS != 15 || payload.Style != "cinematic" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestRunDiffusionDownloadURL(t *testing.T) {
	var srvURL string
	srv, client := newRunDiffusionServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/generate/video":
			_ = json.NewEncoder(w).Encode(map[string]string{"download_url": srvURL + "/files/out.mp4"})
		case "/files/out.mp4":
			_, _ = w.Write([]byte("downloaded-mp4"))
		default:
			http.NotFound(w, r)
		}
	})
	srvURL = srv.URL

	data, err := client.Generate(context.Background(), Request{Prompt: "city", Duration: 10})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if string(data) != "downloaded-mp4" {
		t.Fatalf("Generate = %q", data)
	}
}

func TestRunDiffusionPollsJobUntilSucceeded(t *testing.T) {
	var (
		srvURL string
		polls  atomic.Int32
	)
	srv, client := newRunDiffusionServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/generate/video":
			_ = json.NewEncoder(w).Encode(map[string]string{"job_id": "job-7"})
		case "/v1/generate/video/job-7/result":
			if polls.Add(1) < 2 {
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "running"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "succeeded", "download_url": srvURL + "/files/job-7.mp4"})
		case "/files/job-7.mp4":
			_, _ = w.Write([]byte("polled-mp4"))
		default:
			http.NotFound(w, r)
		}
	})
	srvURL = srv.URL

	data, err := client.Generate(context.Background(), Request{Prompt: "forest", Duration: 6})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if string(data) != "polled-mp4" {
		t.Fatalf("Generate = %q", data)
	}
	if polls.Load() != 2 {
		t.Fatalf("polls = %d, want 2", polls.Load())
	}
}

func TestRunDiffusionPollExhaustionIsTimeout(t *testing.T) {
	var polls atomic.Int32
	_, client := newRunDiffusionServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/result") {
			polls.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "running"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"job_id": "slow"})
	})

	_, err := client.Generate(context.Background(), Request{Prompt: "ocean", Duration: 6})
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("Generate error = %v, want ErrPollTimeout", err)
	}
	if polls.Load() != 3 {
		t.Fatalf("polls = %d, want 3", polls.Load())
	}
}

func TestRunDiffusionFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "overloaded", http.StatusServiceUnavailable)
			},
		},
		{
			name: "no result",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{}`))
			},
		},
		{
			name: "job failed",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if strings.HasSuffix(r.URL.Path, "/result") {
					_, _ = w.Write([]byte(`{"status":"failed","error":"nsfw"}`))
					return
				}
				_, _ = w.Write([]byte(`{"job_id":"j"}`))
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, client := newRunDiffusionServer(t, tc.handler)
			if _, err := client.Generate(context.Background(), Request{Prompt: "x", Duration: 6}); err == nil {
				t.Fatalf("Generate expected error")
			}
		})
	}
}

func TestRunDiffusionRequiresAPIKey(t *testing.T) {
	client := NewRunDiffusion(RunDiffusionOptions{})
	if _, err := client.Generate(context.Background(), Request{Prompt: "x", Duration: 6}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("Generate error = %v, want ErrMissingAPIKey", err)
	}
}

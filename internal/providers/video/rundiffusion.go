package video

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"studio/internal/infra"
)

// RunDiffusionOptions configures the RunDiffusion client.
type RunDiffusionOptions struct {
	APIKey       string
	BaseURL      string
	FPS          int
	Style        string
	PollInterval time.Duration
	PollAttempts int
	HTTPClient   *http.Client
	Logger       *infra.Logger
}

// RunDiffusion calls the RunDiffusion video endpoint. A submission may answer
// with inline base64 bytes, a download URL, or a job id that is polled until
// it succeeds.
type RunDiffusion struct {
	apiKey       string
	endpoint     string
	fps          int
	style        string
	pollInterval time.Duration
	pollAttempts int
	httpClient   *http.Client
	logger       *infra.Logger
}

type rdGenerateRequest struct {
	Prompt          string `json:"prompt"`
	DurationSeconds int    `json:"duration_seconds"`
	FPS             int    `json:"fps"`
	Style           string `json:"style"`
}

type rdResponse struct {
	MP4Base64   string `json:"mp4_base64"`
	DownloadURL string `json:"download_url"`
	JobID       string `json:"job_id"`
	Status      string `json:"status"`
	Error       string `json:"error"`
}

func NewRunDiffusion(opts RunDiffusionOptions) *RunDiffusion {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.rundiffusion.com/v1"
	}
	fps := opts.FPS
	if fps <= 0 {
		fps = 15
	}
	style := strings.TrimSpace(opts.Style)
	if style == "" {
		style = "cinematic"
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	attempts := opts.PollAttempts
	if attempts <= 0 {
		attempts = 60
	}
	return &RunDiffusion{
		apiKey:       strings.TrimSpace(opts.APIKey),
		endpoint:     baseURL + "/generate/video",
		fps:          fps,
		style:        style,
		pollInterval: interval,
		pollAttempts: attempts,
		httpClient:   httpClient,
		logger:       infra.OrDiscard(opts.Logger),
	}
}

// HasCredentials reports whether the client can perform remote calls.
func (r *RunDiffusion) HasCredentials() bool {
	return r.apiKey != ""
}

func (r *RunDiffusion) Generate(ctx context.Context, req Request) ([]byte, error) {
	if !r.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	if err := validate(req); err != nil {
		return nil, err
	}
	body, err := json.Marshal(rdGenerateRequest{
		Prompt:          strings.TrimSpace(req.Prompt),
		DurationSeconds: req.Duration,
		FPS:             r.fps,
		Style:           r.style,
	})
	if err != nil {
		return nil, fmt.Errorf("rundiffusion: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rundiffusion: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	submitted, err := r.do(httpReq)
	if err != nil {
		return nil, err
	}
	if data, done, err := r.resolve(ctx, submitted); done {
		return data, err
	}
	if submitted.JobID == "" {
		return nil, errors.New("rundiffusion: no result")
	}
	return r.poll(ctx, submitted.JobID)
}

// resolve handles the inline and download-url response shapes. done is false
// when the response carries neither.
func (r *RunDiffusion) resolve(ctx context.Context, resp rdResponse) ([]byte, bool, error) {
	if resp.MP4Base64 != "" {
		data, err := base64.StdEncoding.DecodeString(resp.MP4Base64)
		if err != nil {
			return nil, true, fmt.Errorf("rundiffusion: decode mp4_base64: %w", err)
		}
		if len(data) == 0 {
			return nil, true, errors.New("rundiffusion: empty mp4_base64")
		}
		return data, true, nil
	}
	if resp.DownloadURL != "" {
		data, err := download(ctx, r.httpClient, "rundiffusion", resp.DownloadURL)
		return data, true, err
	}
	return nil, false, nil
}

func (r *RunDiffusion) poll(ctx context.Context, jobID string) ([]byte, error) {
	pollURL := fmt.Sprintf("%s/%s/result", r.endpoint, jobID)
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= r.pollAttempts; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pollURL, nil)
		if err != nil {
			return nil, fmt.Errorf("rundiffusion: build poll request: %w", err)
		}
		status, err := r.do(httpReq)
		if err != nil {
			return nil, err
		}
		r.logger.Debug().
			Str("job_id", jobID).
			Int("attempt", attempt).
			Str("status", status.Status).
			Msg("rundiffusion: polled job")

		switch strings.ToLower(status.Status) {
		case "succeeded":
			if status.DownloadURL != "" {
				return download(ctx, r.httpClient, "rundiffusion", status.DownloadURL)
			}
		case "failed", "error", "cancelled":
			if status.Error != "" {
				return nil, fmt.Errorf("rundiffusion: job %s %s: %s", jobID, status.Status, status.Error)
			}
			return nil, fmt.Errorf("rundiffusion: job %s %s", jobID, status.Status)
		}

		if attempt == r.pollAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
	return nil, fmt.Errorf("rundiffusion: job %s: %w", jobID, ErrPollTimeout)
}

func (r *RunDiffusion) do(httpReq *http.Request) (rdResponse, error) {
	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return rdResponse{}, fmt.Errorf("rundiffusion: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return rdResponse{}, fmt.Errorf("rundiffusion: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return rdResponse{}, fmt.Errorf("rundiffusion: status %d: %s", resp.StatusCode, truncate(strings.TrimSpace(string(raw)), 200))
	}
	var decoded rdResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return rdResponse{}, fmt.Errorf("rundiffusion: decode response: %w", err)
	}
	return decoded, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Generator = (*RunDiffusion)(nil)

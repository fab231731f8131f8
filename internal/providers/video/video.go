// Package video contains text-to-video generation providers.
package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrPollTimeout reports that a job never reached a finished state within
// the configured number of polls.
var ErrPollTimeout = errors.New("timeout")

// ErrMissingAPIKey indicates that a provider was configured without credentials.
var ErrMissingAPIKey = errors.New("video: api key is required")

// Request carries the generation parameters shared by every provider.
type Request struct {
	Prompt   string
	Duration int
}

// Generator produces encoded video bytes for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]byte, error)
}

func validate(req Request) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return errors.New("video: prompt is required")
	}
	if req.Duration <= 0 {
		return fmt.Errorf("video: invalid duration %d", req.Duration)
	}
	return nil
}

// download fetches a finished artifact. Non-2xx and empty bodies are errors.
func download(ctx context.Context, client *http.Client, name, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build download request: %w", name, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: download: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: download status %d", name, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read download: %w", name, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: empty download", name)
	}
	return data, nil
}

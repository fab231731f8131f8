package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"studio/internal/infra"
)

// HuggingFaceOptions configures the inference API client.
type HuggingFaceOptions struct {
	Token      string
	ModelURL   string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// HuggingFace posts the prompt to a hosted text-to-video model. A 200
// response body is the video itself; any other status is a failure.
type HuggingFace struct {
	token      string
	modelURL   string
	httpClient *http.Client
	logger     *infra.Logger
}

type hfVideoRequest struct {
	Inputs     string            `json:"inputs"`
	Parameters hfVideoParameters `json:"parameters"`
}

type hfVideoParameters struct {
	DurationSeconds int `json:"duration_seconds"`
}

func NewHuggingFace(opts HuggingFaceOptions) *HuggingFace {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HuggingFace{
		token:      strings.TrimSpace(opts.Token),
		modelURL:   strings.TrimSpace(opts.ModelURL),
		httpClient: httpClient,
		logger:     infra.OrDiscard(opts.Logger),
	}
}

// HasCredentials reports whether the client can perform remote calls.
func (h *HuggingFace) HasCredentials() bool {
	return h.token != "" && h.modelURL != ""
}

func (h *HuggingFace) Generate(ctx context.Context, req Request) ([]byte, error) {
	if !h.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	if err := validate(req); err != nil {
		return nil, err
	}
	body, err := json.Marshal(hfVideoRequest{
		Inputs:     strings.TrimSpace(req.Prompt),
		Parameters: hfVideoParameters{DurationSeconds: req.Duration},
	})
	if err != nil {
		return nil, fmt.Errorf("huggingface: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.modelURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("huggingface: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+h.token)

	resp, err := h.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("huggingface: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("huggingface: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("huggingface: status %d", resp.StatusCode)
	}
	if len(data) == 0 {
		return nil, errors.New("huggingface: empty response")
	}
	h.logger.Debug().Int("bytes", len(data)).Msg("huggingface: generated video")
	return data, nil
}

var _ Generator = (*HuggingFace)(nil)

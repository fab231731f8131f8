// Package voice contains text-to-speech providers used for narration tracks.
package voice

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

// Speaker synthesizes narration audio for text.
type Speaker interface {
	Speak(ctx context.Context, text string) ([]byte, error)
}

// ErrMissingToken indicates that the speaker was configured without credentials.
var ErrMissingToken = errors.New("voice: token is required")

// HuggingFaceOptions configures the hosted TTS client.
type HuggingFaceOptions struct {
	Token      string
	ModelURL   string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// HuggingFace synthesizes speech through the inference API. The response
// body of a 200 is the encoded audio.
type HuggingFace struct {
	token      string
	modelURL   string
	httpClient *http.Client
	logger     *infra.Logger
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

func (h *HuggingFace) Speak(ctx context.Context, text string) ([]byte, error) {
	if !h.HasCredentials() {
		return nil, ErrMissingToken
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("voice: text is required")
	}
	body, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return nil, fmt.Errorf("voice: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.modelURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("voice: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+h.token)

	resp, err := h.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("voice: http request: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("voice: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voice: status %d", resp.StatusCode)
	}
	if len(audio) == 0 {
		return nil, errors.New("voice: empty audio")
	}
	h.logger.Debug().Int("bytes", len(audio)).Msg("voice: synthesized narration")
	return audio, nil
}

var _ Speaker = (*HuggingFace)(nil)

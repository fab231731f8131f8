// Package media wraps the ffmpeg binary used to render, mux and overlay
// video artifacts.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"studio/internal/infra"
)

// Runner executes one ffmpeg invocation. Inputs and outputs are file paths
// inside the args.
type Runner interface {
	Run(ctx context.Context, args ...string) error
}

// FFmpeg runs the ffmpeg binary at Path.
type FFmpeg struct {
	path   string
	logger *infra.Logger
}

func NewFFmpeg(path string, logger *infra.Logger) *FFmpeg {
	if strings.TrimSpace(path) == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{path: path, logger: infra.OrDiscard(logger)}
}

func (f *FFmpeg) Run(ctx context.Context, args ...string) error {
	full := append([]string{"-hide_banner", "-loglevel", "error", "-y"}, args...)
	cmd := exec.CommandContext(ctx, f.path, full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := lastLine(stderr.String())
		f.logger.Debug().Err(err).Str("stderr", detail).Msg("ffmpeg: command failed")
		if detail != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, detail)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// Workspace is a scratch directory for one ffmpeg job.
type Workspace struct {
	dir string
}

func NewWorkspace(prefix string) (*Workspace, error) {
	dir, err := os.MkdirTemp("", prefix+"-*")
	if err != nil {
		return nil, fmt.Errorf("media: create workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Path returns the absolute path of name inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, filepath.Base(name))
}

// Write stores data under name and returns its path.
func (w *Workspace) Write(name string, data []byte) (string, error) {
	path := w.Path(name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("media: write %s: %w", name, err)
	}
	return path, nil
}

// Read returns the contents of name. An empty file is an error: ffmpeg
// exiting zero without output still means nothing usable was produced.
func (w *Workspace) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(w.Path(name))
	if err != nil {
		return nil, fmt.Errorf("media: read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil, errors.New("media: empty output " + name)
	}
	return data, nil
}

func (w *Workspace) Close() error {
	return os.RemoveAll(w.dir)
}

package video

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"studio/internal/infra"
	"studio/internal/media"
)

// Synthetic renders a solid-color clip whose color is derived from the
// prompt. It keeps local and CI environments working without provider
// credentials.
type Synthetic struct {
	ffmpeg media.Runner
	width  int
	height int
	logger *infra.Logger
}

func NewSynthetic(ffmpeg media.Runner, logger *infra.Logger) *Synthetic {
	return &Synthetic{ffmpeg: ffmpeg, width: 640, height: 360, logger: infra.OrDiscard(logger)}
}

func (s *Synthetic) Generate(ctx context.Context, req Request) ([]byte, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	seed := deterministicSeed(req.Prompt, req.Duration)

	ws, err := media.NewWorkspace("synthetic")
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	out := ws.Path("synthetic.mp4")
	source := fmt.Sprintf("color=c=0x%s:s=%dx%d:d=%d:r=15", seed[:6], s.width, s.height, req.Duration)
	if err := s.ffmpeg.Run(ctx,
		"-f", "lavfi", "-i", source,
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		out,
	); err != nil {
		return nil, fmt.Errorf("synthetic: render: %w", err)
	}
	data, err := ws.Read("synthetic.mp4")
	if err != nil {
		return nil, fmt.Errorf("synthetic: %w", err)
	}
	s.logger.Debug().Str("seed", seed).Int("duration", req.Duration).Msg("synthetic: rendered placeholder clip")
	return data, nil
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(strings.TrimSpace(fmt.Sprintf("%v", part))))
		hasher.Write([]byte{'|'})
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

var _ Generator = (*Synthetic)(nil)

// Package postprocess applies the optional narration track and the
// watermark to generated videos.
package postprocess

import (
	"context"
	"fmt"
	"strings"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/media"
)

// Speaker synthesizes narration audio. The provider orchestrator satisfies it.
type Speaker interface {
	Speak(ctx context.Context, text string) ([]byte, error)
}

// Processor runs ffmpeg jobs over video bytes.
type Processor struct {
	speaker Speaker
	ffmpeg  media.Runner
	logger  *infra.Logger
}

// NewProcessor builds a Processor. speaker may be nil, in which case Merge
// always returns its input.
func NewProcessor(speaker Speaker, ffmpeg media.Runner, logger *infra.Logger) *Processor {
	return &Processor{speaker: speaker, ffmpeg: ffmpeg, logger: infra.OrDiscard(logger)}
}

// Merge muxes synthesized narration for voiceText into video. It never
// fails: any problem is logged and the original bytes are returned.
func (p *Processor) Merge(ctx context.Context, video []byte, voiceText string) []byte {
	voiceText = strings.TrimSpace(voiceText)
	if voiceText == "" {
		return video
	}
	if p.speaker == nil {
		p.logger.Warn().Str("stage", "merge").Msg("postprocess: no speech provider; skipping voice merge")
		return video
	}
	audio, err := p.speaker.Speak(ctx, voiceText)
	if err != nil {
		p.logger.Warn().Err(err).Str("stage", "merge").Msg("postprocess: speech synthesis failed; keeping original video")
		return video
	}
	merged, err := p.mux(ctx, video, audio)
	if err != nil {
		p.logger.Warn().Err(err).Str("stage", "merge").Msg("postprocess: voice mux failed; keeping original video")
		return video
	}
	return merged
}

func (p *Processor) mux(ctx context.Context, video, audio []byte) ([]byte, error) {
	ws, err := media.NewWorkspace("merge")
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	in, err := ws.Write("input.mp4", video)
	if err != nil {
		return nil, err
	}
	voice, err := ws.Write("voice.audio", audio)
	if err != nil {
		return nil, err
	}
	if err := p.ffmpeg.Run(ctx,
		"-i", in,
		"-i", voice,
		"-map", "0:v:0", "-map", "1:a:0",
		"-c:v", "copy", "-c:a", "aac",
		ws.Path("merged.mp4"),
	); err != nil {
		return nil, err
	}
	return ws.Read("merged.mp4")
}

// Watermark overlays a badge reading text in the bottom-right corner. Any
// failure wraps domain.ErrPostProcessFailure.
func (p *Processor) Watermark(ctx context.Context, video []byte, text string) ([]byte, error) {
	out, err := p.watermark(ctx, video, text)
	if err != nil {
		return nil, fmt.Errorf("%w: watermark: %v", domain.ErrPostProcessFailure, err)
	}
	return out, nil
}

func (p *Processor) watermark(ctx context.Context, video []byte, text string) ([]byte, error) {
	if len(video) == 0 {
		return nil, fmt.Errorf("empty video")
	}
	badge, err := renderBadge(text)
	if err != nil {
		return nil, err
	}
	ws, err := media.NewWorkspace("watermark")
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	in, err := ws.Write("input.mp4", video)
	if err != nil {
		return nil, err
	}
	overlay, err := ws.Write("badge.png", badge)
	if err != nil {
		return nil, err
	}
	if err := p.ffmpeg.Run(ctx,
		"-i", in,
		"-i", overlay,
		"-filter_complex", "[0:v][1:v]overlay=W-w-16:H-h-16",
		"-c:a", "copy",
		ws.Path("watermarked.mp4"),
	); err != nil {
		return nil, err
	}
	return ws.Read("watermarked.mp4")
}

// Package bootstrap assembles the order pipeline from configuration. The API
// and the worker share it so both execute orders the same way.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"studio/internal/events"
	"studio/internal/infra"
	"studio/internal/infra/credentials"
	"studio/internal/media"
	"studio/internal/orders"
	"studio/internal/pipeline"
	"studio/internal/postprocess"
	"studio/internal/providers"
	"studio/internal/providers/video"
	"studio/internal/providers/voice"
	"studio/internal/storage"
)

// Stack holds the long-lived collaborators of a Manager.
type Stack struct {
	Config    *infra.Config
	Store     orders.Store
	Providers *providers.Orchestrator
	Post      *postprocess.Processor
	Artifacts storage.ArtifactStore
	// StaticDir is the file store root, empty for remote backends.
	StaticDir string
	Events    events.Publisher

	logger  *infra.Logger
	closers []func()
}

// Tokens are the resolved provider credentials.
type Tokens struct {
	RunDiffusion string
	HuggingFace  string
}

// Build connects every backend named by cfg. Callers must Close the stack.
func Build(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (*Stack, error) {
	logger = infra.OrDiscard(logger)
	s := &Stack{Config: cfg, logger: logger}

	var creds *credentials.Store
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		s.Store, creds = sqlBacked(pool, *logger)
	} else {
		logger.Warn().Msg("bootstrap: DATABASE_URL not set, orders are kept in memory")
		s.Store = orders.NewMemoryStore()
	}

	tokens, err := ResolveTokens(ctx, cfg, creds)
	if err != nil {
		logger.Warn().Err(err).Msg("bootstrap: failed to load provider tokens from store")
	}

	ffmpeg := media.NewFFmpeg(cfg.FFmpegPath, logger)
	httpClient := &http.Client{Timeout: 2 * time.Minute}
	s.Providers = providers.NewOrchestrator(providers.Options{
		Video:  VideoChain(cfg, tokens, httpClient, ffmpeg, logger),
		Voice:  VoiceChain(cfg, tokens, httpClient, logger),
		Logger: logger,
	})
	var speaker postprocess.Speaker
	if s.Providers.HasVoice() {
		speaker = s.Providers
	}
	s.Post = postprocess.NewProcessor(speaker, ffmpeg, logger)

	if err := s.buildArtifacts(ctx); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.buildEvents(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func sqlBacked(pool *pgxpool.Pool, logger infra.Logger) (orders.Store, *credentials.Store) {
	runner := infra.NewSQLRunner(pool, logger)
	return orders.NewPostgresStore(runner), credentials.NewStore(runner)
}

func (s *Stack) buildArtifacts(ctx context.Context) error {
	cfg := s.Config
	switch cfg.StorageBackend {
	case infra.StorageGCS:
		gcs, err := storage.NewGCSStore(ctx, storage.GCSOptions{
			Bucket:          cfg.GCSBucket,
			CredentialsJSON: cfg.GCSCredentials,
			SignedURLTTL:    cfg.GCSSignedURLTTL,
			Logger:          s.logger,
		})
		if err != nil {
			return err
		}
		s.closers = append(s.closers, func() { _ = gcs.Close() })
		s.Artifacts = gcs
	default:
		path := cfg.StoragePath
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		fs, err := storage.NewFileStore(path, cfg.StorageBaseURL)
		if err != nil {
			return fmt.Errorf("bootstrap: file store: %w", err)
		}
		s.Artifacts = fs
		s.StaticDir = fs.BasePath()
	}
	return nil
}

func (s *Stack) buildEvents(ctx context.Context) error {
	cfg := s.Config
	if !cfg.PublishesEvents() {
		s.Events = events.NewLogPublisher(s.logger)
		return nil
	}
	pub, err := events.NewPubSubPublisher(ctx, events.PubSubOptions{
		ProjectID:       cfg.PubSubProjectID,
		Topic:           cfg.PubSubTopic,
		CredentialsJSON: cfg.PubSubCredentials,
		Logger:          s.logger,
	})
	if err != nil {
		return err
	}
	s.closers = append(s.closers, func() { _ = pub.Close() })
	s.Events = pub
	return nil
}

// Manager builds a lifecycle manager over the stack. A nil dispatcher runs
// orders in-process.
func (s *Stack) Manager(dispatcher pipeline.Dispatcher) *pipeline.Manager {
	return pipeline.NewManager(pipeline.Options{
		Store:              s.Store,
		Generator:          s.Providers,
		PostProcessor:      s.Post,
		Artifacts:          s.Artifacts,
		Events:             s.Events,
		Dispatcher:         dispatcher,
		Concurrency:        s.Config.ExecutionConcurrency,
		AdminSecret:        s.Config.AdminSecret,
		WatermarkText:      s.Config.WatermarkText,
		PostProcessTimeout: s.Config.PostProcessTimeout,
		StorageTimeout:     s.Config.StorageTimeout,
		Logger:             s.logger,
	})
}

// Close releases backends in reverse order of creation.
func (s *Stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// ResolveTokens prefers environment credentials and falls back to the
// integration_tokens table when a store is available.
func ResolveTokens(ctx context.Context, cfg *infra.Config, creds *credentials.Store) (Tokens, error) {
	var (
		tokens Tokens
		err    error
	)
	tokens.RunDiffusion, err = creds.Resolve(ctx, credentials.ProviderRunDiffusion, cfg.RunDiffusionAPIKey)
	if err != nil {
		return Tokens{RunDiffusion: cfg.RunDiffusionAPIKey, HuggingFace: cfg.HuggingFaceToken}, err
	}
	tokens.HuggingFace, err = creds.Resolve(ctx, credentials.ProviderHuggingFace, cfg.HuggingFaceToken)
	if err != nil {
		tokens.HuggingFace = cfg.HuggingFaceToken
		return tokens, err
	}
	return tokens, nil
}

// VideoChain orders the generation providers: RunDiffusion, then
// HuggingFace. The synthetic renderer joins when requested or when no real
// provider has credentials.
func VideoChain(cfg *infra.Config, tokens Tokens, client *http.Client, ffmpeg media.Runner, logger *infra.Logger) []providers.VideoLink {
	var chain []providers.VideoLink
	if tokens.RunDiffusion != "" {
		chain = append(chain, providers.VideoLink{
			Name: "rundiffusion",
			Generator: video.NewRunDiffusion(video.RunDiffusionOptions{
				APIKey:       tokens.RunDiffusion,
				BaseURL:      cfg.RunDiffusionBaseURL,
				PollInterval: cfg.RunDiffusionPollInterval,
				PollAttempts: cfg.RunDiffusionPollAttempts,
				HTTPClient:   client,
				Logger:       logger,
			}),
			Timeout: cfg.RunDiffusionTimeout,
		})
	}
	if tokens.HuggingFace != "" {
		chain = append(chain, providers.VideoLink{
			Name: "huggingface",
			Generator: video.NewHuggingFace(video.HuggingFaceOptions{
				Token:      tokens.HuggingFace,
				ModelURL:   cfg.HuggingFaceVideoURL,
				HTTPClient: client,
				Logger:     logger,
			}),
			Timeout: cfg.HuggingFaceTimeout,
		})
	}
	if cfg.SyntheticProvider || len(chain) == 0 {
		if len(chain) == 0 {
			infra.OrDiscard(logger).Warn().Msg("bootstrap: no provider credentials, using synthetic video")
		}
		chain = append(chain, providers.VideoLink{
			Name:      "synthetic",
			Generator: video.NewSynthetic(ffmpeg, logger),
			Timeout:   time.Minute,
		})
	}
	return chain
}

// VoiceChain returns the speech providers; empty when no token is known.
func VoiceChain(cfg *infra.Config, tokens Tokens, client *http.Client, logger *infra.Logger) []providers.VoiceLink {
	if tokens.HuggingFace == "" {
		return nil
	}
	return []providers.VoiceLink{{
		Name: "huggingface-tts",
		Speaker: voice.NewHuggingFace(voice.HuggingFaceOptions{
			Token:      tokens.HuggingFace,
			ModelURL:   cfg.HuggingFaceTTSURL,
			HTTPClient: client,
			Logger:     logger,
		}),
		Timeout: cfg.VoiceTimeout,
	}}
}

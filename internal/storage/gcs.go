package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"studio/internal/infra"
)

// GCSOptions configures the Cloud Storage backend.
type GCSOptions struct {
	Bucket          string
	CredentialsJSON string
	SignedURLTTL    time.Duration
	Logger          *infra.Logger
}

// GCSStore uploads artifacts to a bucket and returns V4 signed GET URLs.
// When no signer is available it falls back to the public object URL.
type GCSStore struct {
	client *storage.Client
	bucket string
	ttl    time.Duration
	signer *signer
	now    func() time.Time
	logger *infra.Logger
}

type signer struct {
	accessID   string
	privateKey []byte
}

type serviceAccountJSON struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// NewGCSStore creates the client from explicit credentials JSON or, when
// empty, application default credentials.
func NewGCSStore(ctx context.Context, opts GCSOptions) (*GCSStore, error) {
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, errors.New("storage: GCS bucket is required")
	}
	var (
		client *storage.Client
		err    error
		sign   *signer
	)
	if creds := strings.TrimSpace(opts.CredentialsJSON); creds != "" {
		sign, err = parseSigner(creds)
		if err != nil {
			return nil, err
		}
		client, err = storage.NewClient(ctx, option.WithCredentialsJSON([]byte(creds)))
	} else {
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: gcs client: %w", err)
	}
	ttl := opts.SignedURLTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &GCSStore{
		client: client,
		bucket: bucket,
		ttl:    ttl,
		signer: sign,
		now:    time.Now,
		logger: infra.OrDiscard(opts.Logger),
	}, nil
}

func (s *GCSStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	w := s.client.Bucket(s.bucket).Object(cleanKey).NewWriter(ctx)
	w.ContentType = "video/mp4"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("storage: gcs write %s: %w", cleanKey, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("storage: gcs commit %s: %w", cleanKey, err)
	}
	return s.locate(cleanKey), nil
}

// locate returns a signed URL for key, or the public URL when signing fails.
func (s *GCSStore) locate(key string) string {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: s.now().Add(s.ttl),
	}
	var (
		signed string
		err    error
	)
	if s.signer != nil {
		opts.GoogleAccessID = s.signer.accessID
		opts.PrivateKey = s.signer.privateKey
		signed, err = storage.SignedURL(s.bucket, key, opts)
	} else {
		signed, err = s.client.Bucket(s.bucket).SignedURL(key, opts)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("storage: signing failed; using public url")
		return publicURL(s.bucket, key)
	}
	return signed
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func parseSigner(credJSON string) (*signer, error) {
	var key serviceAccountJSON
	if err := json.Unmarshal([]byte(credJSON), &key); err != nil {
		return nil, fmt.Errorf("storage: invalid GCS credentials json: %w", err)
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, nil
	}
	return &signer{
		accessID:   key.ClientEmail,
		privateKey: []byte(strings.ReplaceAll(key.PrivateKey, `\n`, "\n")),
	}, nil
}

func publicURL(bucket, key string) string {
	return (&url.URL{Scheme: "https", Host: "storage.googleapis.com", Path: "/" + bucket + "/" + key}).String()
}

var _ ArtifactStore = (*GCSStore)(nil)

// Package archive stores the raw payloads of terminally failed ingests in
// object storage so an operator can inspect and replay them.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store writes failed ingest payloads to a MinIO bucket. A nil Store is safe
// to call; archiving silently becomes a no-op when object storage is not
// configured.
type Store struct {
	client *minio.Client
	bucket string
	log    *logger.Logger
}

func NewStore(cfg config.ArchiveConfig, log *logger.Logger) (*Store, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, nil
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Store{
		client: client,
		bucket: cfg.GetMinioBucketIngestFailures(),
		log:    log,
	}, nil
}

// EnsureBucket creates the failure bucket when missing. Called once at startup.
func (s *Store) EnsureBucket(ctx context.Context) error {
	if s == nil {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// ArchiveFailure stores one payload under <source>/<date>/<uuid>.json with
// the failure reason attached as object metadata.
func (s *Store) ArchiveFailure(ctx context.Context, source domain.Source, payload []byte, reason string) error {
	if s == nil {
		return nil
	}

	key := fmt.Sprintf("%s/%s/%s.json",
		source, time.Now().UTC().Format("2006-01-02"), uuid.NewString())

	_, err := s.client.PutObject(ctx, s.bucket, key,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{
			ContentType: "application/json",
			UserMetadata: map[string]string{
				"failure-reason": reason,
			},
		})
	if err != nil {
		return fmt.Errorf("archive payload %s: %w", key, err)
	}

	s.log.Info("ingest payload archived", "key", key, "reason", reason)
	return nil
}

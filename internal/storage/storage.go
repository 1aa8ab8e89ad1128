package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"trimsizer/internal/logging"
	"trimsizer/internal/mediatypes"
	"trimsizer/internal/metrics"
)

// DefaultURLExpiry is how long a presigned download link stays valid.
const DefaultURLExpiry = 24 * time.Hour

// ErrDisabled is returned when publishing is requested but no bucket is
// configured.
var ErrDisabled = errors.New("object storage is not configured")

// Config describes an S3-compatible bucket.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// Region avoids a bucket location lookup before presigning.
	Region    string
	Prefix    string
	URLExpiry time.Duration
}

// Enabled reports whether enough is configured to publish.
func (c Config) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// Upload describes a published artifact.
type Upload struct {
	Bucket    string    `json:"bucket"`
	Key       string    `json:"key"`
	SizeBytes int64     `json:"sizeBytes"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Publisher copies finished artifacts to object storage.
type Publisher struct {
	client *minio.Client
	cfg    Config
}

// New creates a Publisher. It does not contact the server; call
// EnsureBucket for that.
func New(cfg Config) (*Publisher, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = DefaultURLExpiry
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &Publisher{client: client, cfg: cfg}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (p *Publisher) EnsureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", p.cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := p.client.MakeBucket(ctx, p.cfg.Bucket, minio.MakeBucketOptions{Region: p.cfg.Region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", p.cfg.Bucket, err)
	}
	logging.Info("Created storage bucket %s", p.cfg.Bucket)
	return nil
}

// ObjectKey is where a session artifact is stored: prefix/session/name.
func ObjectKey(prefix, sessionID, name string) string {
	return strings.TrimPrefix(path.Join(strings.Trim(prefix, "/"), sessionID, path.Base(name)), "/")
}

// Publish uploads localPath under the session's key and returns a
// presigned download URL.
func (p *Publisher) Publish(ctx context.Context, sessionID, localPath string) (*Upload, error) {
	start := time.Now()
	upload, err := p.publish(ctx, sessionID, localPath)
	metrics.StorageUploadDuration.Observe(time.Since(start).Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.StorageUploadsTotal.WithLabelValues(status).Inc()
	return upload, err
}

func (p *Publisher) publish(ctx context.Context, sessionID, localPath string) (*Upload, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("open artifact failed: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close %s: %v", localPath, err)
		}
	}()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat artifact failed: %w", err)
	}

	key := ObjectKey(p.cfg.Prefix, sessionID, localPath)
	contentType := mediatypes.GetMimeType(strings.ToLower(path.Ext(localPath)))

	_, err = p.client.PutObject(ctx, p.cfg.Bucket, key, file, info.Size(), minio.PutObjectOptions{
		ContentType:        contentType,
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", path.Base(localPath)),
	})
	if err != nil {
		return nil, fmt.Errorf("upload to %s/%s failed: %w", p.cfg.Bucket, key, err)
	}

	link, err := p.client.PresignedGetObject(ctx, p.cfg.Bucket, key, p.cfg.URLExpiry, url.Values{})
	if err != nil {
		return nil, fmt.Errorf("presign %s/%s failed: %w", p.cfg.Bucket, key, err)
	}

	logging.Info("Published %s to %s/%s (%d bytes)", path.Base(localPath), p.cfg.Bucket, key, info.Size())
	return &Upload{
		Bucket:    p.cfg.Bucket,
		Key:       key,
		SizeBytes: info.Size(),
		URL:       link.String(),
		ExpiresAt: time.Now().Add(p.cfg.URLExpiry),
	}, nil
}

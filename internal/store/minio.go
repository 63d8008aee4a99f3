package store

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/cjeanneret/PirSnap/internal/debug"
)

// MinioConfig addresses one bucket on an S3-compatible endpoint.
type MinioConfig struct {
	Endpoint      string // host[:port], no scheme
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	PublicBaseURL string // optional; object URLs become PublicBaseURL/name
}

// Minio stores images in an S3-compatible bucket.
type Minio struct {
	client *minio.Client
	cfg    MinioConfig
}

// NewMinio creates the client. No request is made until Initialize.
func NewMinio(cfg MinioConfig) (*Minio, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return &Minio{client: client, cfg: cfg}, nil
}

// Initialize makes sure the bucket exists, creating it if needed.
func (m *Minio) Initialize(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", m.cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	debug.Info("Store: creating bucket %q", m.cfg.Bucket)
	if err := m.client.MakeBucket(ctx, m.cfg.Bucket, minio.MakeBucketOptions{Region: m.cfg.Region}); err != nil {
		return fmt.Errorf("create bucket %q: %w", m.cfg.Bucket, err)
	}
	return nil
}

func (m *Minio) Upload(ctx context.Context, name string, data []byte) error {
	info, err := m.client.PutObject(
		ctx,
		m.cfg.Bucket,
		name,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{
			ContentType: "image/jpeg",
		},
	)
	if err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	debug.Verbose("Store: uploaded %s (%d bytes, etag %s)", info.Key, info.Size, info.ETag)
	return nil
}

func (m *Minio) List(ctx context.Context) ([]Object, error) {
	var objs []Object
	for obj := range m.client.ListObjects(ctx, m.cfg.Bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list bucket %q: %w", m.cfg.Bucket, obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		objs = append(objs, Object{
			Name:         obj.Key,
			LastModified: obj.LastModified,
			Size:         obj.Size,
			URL:          m.ObjectURL(obj.Key),
		})
	}
	return objs, nil
}

// ObjectURL returns the address the gallery uses for name.
func (m *Minio) ObjectURL(name string) string {
	if m.cfg.PublicBaseURL != "" {
		return strings.TrimRight(m.cfg.PublicBaseURL, "/") + "/" + url.PathEscape(name)
	}
	u := *m.client.EndpointURL()
	u.Path = "/" + m.cfg.Bucket + "/" + name
	return u.String()
}

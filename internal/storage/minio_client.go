package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/loggo/v2"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"instafeed/internal/apperr"
	"instafeed/internal/config"
)

var logger = loggo.GetLogger("instafeed.storage")

// Object prefixes.
const (
	PostImages    = "posts"
	ProfileImages = "profiles"
)

// Storage is the blob side of the gateway.
type Storage interface {
	UploadImage(ctx context.Context, prefix, ownerID, fileName string, file io.Reader, size int64, contentType string) (string, string, error)
	DeleteImage(ctx context.Context, objectName string) error
}

type MinIOClient struct {
	client    *minio.Client
	bucket    string
	publicURL string
	now       func() time.Time
}

func NewMinIOClient(cfg *config.Config) (*MinIOClient, error) {
	client, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
		Secure: cfg.MinIO.UseSSL,
		Region: cfg.MinIO.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	return &MinIOClient{
		client:    client,
		bucket:    cfg.MinIO.BucketName,
		publicURL: strings.TrimSuffix(cfg.MinIO.PublicURL, "/"),
		now:       time.Now,
	}, nil
}

// EnsureBucket creates the image bucket on first start.
func (m *MinIOClient) EnsureBucket(ctx context.Context, region string) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}

	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("creating bucket %s: %w", m.bucket, err)
	}

	logger.Infof("created bucket %s", m.bucket)
	return nil
}

// ObjectName lays objects out as <prefix>/<owner>/<year>/<month>/<id><ext>.
func ObjectName(prefix, ownerID, fileName, id string, now time.Time) string {
	fileExt := strings.ToLower(filepath.Ext(fileName))
	if fileExt == "" {
		fileExt = ".jpg"
	}

	return fmt.Sprintf("%s/%s/%d/%02d/%s%s",
		prefix,
		ownerID,
		now.Year(),
		now.Month(),
		id,
		fileExt)
}

// ObjectURL is the durable URL stored on profiles and posts.
func ObjectURL(publicURL, bucket, objectName string) string {
	return fmt.Sprintf("%s/%s/%s", publicURL, bucket, objectName)
}

func (m *MinIOClient) UploadImage(ctx context.Context, prefix, ownerID, fileName string, file io.Reader, size int64, contentType string) (string, string, error) {
	now := m.now()
	objectName := ObjectName(prefix, ownerID, fileName, uuid.New().String(), now)

	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(objectName))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := m.client.PutObject(ctx, m.bucket, objectName, file, size,
		minio.PutObjectOptions{
			ContentType: contentType,
			UserMetadata: map[string]string{
				"original-filename": fileName,
				"owner-id":          ownerID,
				"uploaded-at":       now.Format(time.RFC3339),
			},
		})
	if err != nil {
		return "", "", apperr.Gateway(err, "uploading image")
	}

	return objectName, ObjectURL(m.publicURL, m.bucket, objectName), nil
}

func (m *MinIOClient) DeleteImage(ctx context.Context, objectName string) error {
	err := m.client.RemoveObject(ctx, m.bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return apperr.Gateway(err, "deleting image")
	}
	return nil
}

package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"training-service/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Client stores session audio: synthesized customer utterances and recorded
// agent responses.
type S3Client struct {
	client *minio.Client
	config *config.StorageConfig
}

func NewS3Client(cfg *config.StorageConfig) (*S3Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return &S3Client{
		client: client,
		config: cfg,
	}, nil
}

func (c *S3Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		if err := c.client.MakeBucket(ctx, c.config.Bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// UploadAudio stores an audio clip under the session's prefix and returns the
// object path used as the clip's URL.
func (c *S3Client) UploadAudio(ctx context.Context, sessionID, name string, data []byte, contentType string) (string, error) {
	objectName := sessionID + "/" + name

	_, err := c.client.PutObject(ctx, c.config.Bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload audio: %w", err)
	}

	return "/audio/" + objectName, nil
}

func (c *S3Client) DownloadAudio(ctx context.Context, objectName string) (io.ReadCloser, error) {
	object, err := c.client.GetObject(ctx, c.config.Bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to download audio: %w", err)
	}
	return object, nil
}

func (c *S3Client) DeleteAudio(ctx context.Context, objectName string) error {
	if err := c.client.RemoveObject(ctx, c.config.Bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete audio: %w", err)
	}
	return nil
}

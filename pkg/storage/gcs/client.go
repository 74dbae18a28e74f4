package gcs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/clinicore-health/clinicore-backend/pkg/config"
	"google.golang.org/api/option"
)

// Client wraps the Google Cloud Storage SDK client and the documents bucket.
type Client struct {
	client            *storage.Client
	bucket            string
	uploadURLExpiry   time.Duration
	downloadURLExpiry time.Duration
}

// SignedURLProvider is the surface the documents service depends on.
type SignedURLProvider interface {
	SignedUploadURL(ctx context.Context, objectKey, contentType string) (string, error)
	SignedDownloadURL(ctx context.Context, objectKey string) (string, error)
	Delete(ctx context.Context, objectKey string) error
}

// New constructs a GCS client from config. Credentials come from the
// configured service account file or application default credentials.
func New(ctx context.Context, gcp config.GCPConfig, cfg config.GCSConfig) (*Client, error) {
	if strings.TrimSpace(cfg.BucketName) == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(gcp.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(gcp.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gcs client: %w", err)
	}

	return &Client{
		client:            client,
		bucket:            cfg.BucketName,
		uploadURLExpiry:   cfg.UploadURLExpiry,
		downloadURLExpiry: cfg.DownloadURLExpiry,
	}, nil
}

// SignedUploadURL returns a V4 signed URL clients PUT file bytes to. The
// content type is pinned so the stored object matches the recorded metadata.
func (c *Client) SignedUploadURL(ctx context.Context, objectKey, contentType string) (string, error) {
	if strings.TrimSpace(objectKey) == "" {
		return "", errors.New("object key is required")
	}
	opts := &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      http.MethodPut,
		Expires:     time.Now().Add(c.uploadURLExpiry),
		ContentType: contentType,
	}
	url, err := c.client.Bucket(c.bucket).SignedURL(objectKey, opts)
	if err != nil {
		return "", fmt.Errorf("signing upload url: %w", err)
	}
	return url, nil
}

// SignedDownloadURL returns a V4 signed URL clients GET file bytes from.
func (c *Client) SignedDownloadURL(ctx context.Context, objectKey string) (string, error) {
	if strings.TrimSpace(objectKey) == "" {
		return "", errors.New("object key is required")
	}
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(c.downloadURLExpiry),
	}
	url, err := c.client.Bucket(c.bucket).SignedURL(objectKey, opts)
	if err != nil {
		return "", fmt.Errorf("signing download url: %w", err)
	}
	return url, nil
}

// Exists reports whether the object has been uploaded yet.
func (c *Client) Exists(ctx context.Context, objectKey string) (bool, error) {
	_, err := c.client.Bucket(c.bucket).Object(objectKey).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, err
}

// Delete removes the object from the bucket. Missing objects are not an
// error; a delete after a failed upload must still succeed.
func (c *Client) Delete(ctx context.Context, objectKey string) error {
	err := c.client.Bucket(c.bucket).Object(objectKey).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("deleting object %q: %w", objectKey, err)
	}
	return nil
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// Close shuts down the underlying SDK client.
func (c *Client) Close() error {
	return c.client.Close()
}

// Package archive persists serialized transaction snapshots to Google
// Cloud Storage, so a transaction can be transmitted or restored later
// independently of the entity store.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const objectPrefix = "transactions"

// BucketFromEnv returns the configured archive bucket, or "".
func BucketFromEnv() string {
	return os.Getenv("PAYMENTS_GCS_BUCKET")
}

// Writer archives snapshot bytes to a GCS bucket. It assumes
// Application Default Credentials are configured.
type Writer struct {
	client *storage.Client
	bucket string
}

// NewWriter creates a Writer with its own storage client.
func NewWriter(ctx context.Context, bucket string) (*Writer, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewWriter: bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewWriter: creating storage client: %w", err)
	}
	return &Writer{client: client, bucket: bucket}, nil
}

// Close closes the underlying client.
func (w *Writer) Close() error {
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}

// Put uploads a serialized snapshot under the transaction's token and
// returns the gs:// URI of the stored object.
func (w *Writer) Put(ctx context.Context, transactionID string, snapshot []byte) (string, error) {
	if transactionID == "" {
		return "", fmt.Errorf("Put: transactionID is required")
	}
	objectName := path.Join(objectPrefix, transactionID+".json")

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	obj := w.client.Bucket(w.bucket).Object(objectName)
	ow := obj.NewWriter(ctx)
	ow.ContentType = "application/json"

	if _, err := ow.Write(snapshot); err != nil {
		_ = ow.Close()
		return "", fmt.Errorf("Put: writing snapshot: %w", err)
	}
	if err := ow.Close(); err != nil {
		return "", fmt.Errorf("Put: finalizing upload: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", w.bucket, objectName), nil
}

// Fetch downloads snapshot bytes from the given gs:// URI.
func (w *Writer) Fetch(ctx context.Context, gcsURI string) ([]byte, error) {
	bucket, object, err := ParseURI(gcsURI)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	r, err := w.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: opening %s: %w", gcsURI, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading %s: %w", gcsURI, err)
	}
	return data, nil
}

// ParseURI splits a gs://bucket/object URI into its parts.
func ParseURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}
	trimmed := strings.TrimPrefix(gcsURI, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}

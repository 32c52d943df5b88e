// Package storage keeps exported documents somewhere they can be linked from
// the spreadsheet.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCS uploads objects into a single Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCS opens a storage client. With empty credJSON the application default
// credentials are used.
func NewGCS(ctx context.Context, bucket, prefix, credJSON string) (*GCS, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("storage: bucket is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(credJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: new client: %w", err)
	}
	return &GCS{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// Upload writes data to the object and returns its public URL.
func (g *GCS) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	object := name
	if g.prefix != "" {
		object = g.prefix + "/" + name
	}

	wc := g.client.Bucket(g.bucket).Object(object).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return "", fmt.Errorf("storage: write %s: %w", object, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("storage: close %s: %w", object, err)
	}
	return ObjectURL(g.bucket, object), nil
}

// Close releases the underlying client.
func (g *GCS) Close() error {
	return g.client.Close()
}

// ObjectURL is the public https URL of an object.
func ObjectURL(bucket, object string) string {
	u := url.URL{Scheme: "https", Host: "storage.googleapis.com", Path: "/" + bucket + "/" + object}
	return u.String()
}

// Dir stores files on the local disk. Used in development when no bucket is configured.
type Dir struct {
	Root string
}

func (d Dir) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.Root, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(d.Root, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write %s: %w", path, err)
	}
	return path, nil
}

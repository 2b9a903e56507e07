package archive

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"cloud.google.com/go/storage"

	"emberlog/internal/metrics"
)

// gcsUploader uploads to Google Cloud Storage
// (archive_directory "gs://bucket/prefix").
type gcsUploader struct {
	client  *storage.Client
	bucket  string
	prefix  string
	metrics *metrics.Recorder
}

func newGCSUploader(u *url.URL, rec *metrics.Recorder) (*gcsUploader, error) {
	client, err := storage.NewClient(context.Background())
	if err != nil {
		return nil, fmt.Errorf("archive: gcs client: %w", err)
	}
	return &gcsUploader{
		client:  client,
		bucket:  u.Host,
		prefix:  strings.TrimPrefix(u.Path, "/"),
		metrics: rec,
	}, nil
}

func (up *gcsUploader) Upload(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("archive: open %s: %w", localPath, err)
	}
	defer f.Close()

	key := objectKey(up.prefix, localPath)
	w := up.client.Bucket(up.bucket).Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		up.metrics.IncrCounter("archive.gcs.upload_failed", 1)
		return "", fmt.Errorf("archive: gcs write %s/%s: %w", up.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		up.metrics.IncrCounter("archive.gcs.upload_failed", 1)
		return "", fmt.Errorf("archive: gcs close %s/%s: %w", up.bucket, key, err)
	}
	up.metrics.IncrCounter("archive.gcs.uploaded", 1)
	return fmt.Sprintf("gs://%s/%s", up.bucket, key), nil
}

var _ Uploader = (*gcsUploader)(nil)

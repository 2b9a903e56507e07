// Package archive uploads rotated (and, if enabled, compressed) log
// files to cloud object storage when a RotatingFile's archive directory
// resolves to a remote URI instead of a local path (spec.md §4.4
// expansion, "archive_directory resolves to a s3://, azblob://, or
// gs:// URI").
package archive

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"emberlog/internal/metrics"
)

// Uploader uploads a local file to a remote object store, returning the
// URI it was stored at.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (remoteURI string, err error)
}

// Scheme identifies which cloud object store a URI targets.
type Scheme string

const (
	SchemeS3     Scheme = "s3"
	SchemeAzblob Scheme = "azblob"
	SchemeGCS    Scheme = "gs"
)

// NewUploader constructs the Uploader matching archiveURI's scheme.
// archiveURI is the configured archive_directory, e.g.
// "s3://my-bucket/logs", "azblob://account/container/logs", or
// "gs://my-bucket/logs".
func NewUploader(archiveURI string, metricsRec *metrics.Recorder) (Uploader, error) {
	u, err := url.Parse(archiveURI)
	if err != nil {
		return nil, fmt.Errorf("archive: parse uri %q: %w", archiveURI, err)
	}
	if metricsRec == nil {
		metricsRec = metrics.Noop()
	}

	switch Scheme(u.Scheme) {
	case SchemeS3:
		return newS3Uploader(u, metricsRec)
	case SchemeAzblob:
		return newAzblobUploader(u, metricsRec)
	case SchemeGCS:
		return newGCSUploader(u, metricsRec)
	default:
		return nil, fmt.Errorf("archive: unsupported scheme %q in %q", u.Scheme, archiveURI)
	}
}

// IsRemoteURI reports whether path looks like a cloud object-store URI
// rather than a local filesystem path (spec.md §4.4 expansion).
func IsRemoteURI(path string) bool {
	for _, scheme := range []Scheme{SchemeS3, SchemeAzblob, SchemeGCS} {
		if strings.HasPrefix(path, string(scheme)+"://") {
			return true
		}
	}
	return false
}

// Hook adapts an Uploader into the rotation.Hooks.Archive signature. If
// submit is non-nil (typically pool.Pool.AsDispatchPool), the upload is
// dispatched through it so rotation never blocks on network IO, and the
// rotated file's local path is returned immediately rather than its
// eventual remote URI. A nil submit uploads synchronously and returns
// the real remote URI.
func Hook(up Uploader, submit func(func()), onAsyncError func(localPath string, err error)) func(rotatedPath string) (string, error) {
	return func(rotatedPath string) (string, error) {
		if submit == nil {
			return up.Upload(context.Background(), rotatedPath)
		}
		submit(func() {
			if _, err := up.Upload(context.Background(), rotatedPath); err != nil && onAsyncError != nil {
				onAsyncError(rotatedPath, err)
			}
		})
		return rotatedPath, nil
	}
}

func objectKey(prefix, localPath string) string {
	name := filepath.Base(localPath)
	if prefix == "" {
		return name
	}
	return strings.TrimSuffix(prefix, "/") + "/" + name
}

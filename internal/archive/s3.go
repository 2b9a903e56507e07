package archive

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"emberlog/internal/metrics"
)

// s3Uploader uploads to an S3 bucket (archive_directory "s3://bucket/prefix").
type s3Uploader struct {
	client  *s3.Client
	bucket  string
	prefix  string
	metrics *metrics.Recorder
}

func newS3Uploader(u *url.URL, rec *metrics.Recorder) (*s3Uploader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}
	return &s3Uploader{
		client:  s3.NewFromConfig(cfg),
		bucket:  u.Host,
		prefix:  strings.TrimPrefix(u.Path, "/"),
		metrics: rec,
	}, nil
}

func (up *s3Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("archive: open %s: %w", localPath, err)
	}
	defer f.Close()

	key := objectKey(up.prefix, localPath)
	_, err = up.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(up.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		up.metrics.IncrCounter("archive.s3.upload_failed", 1)
		return "", fmt.Errorf("archive: s3 put %s/%s: %w", up.bucket, key, err)
	}
	up.metrics.IncrCounter("archive.s3.uploaded", 1)
	return fmt.Sprintf("s3://%s/%s", up.bucket, key), nil
}

var _ Uploader = (*s3Uploader)(nil)

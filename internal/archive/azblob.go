package archive

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"

	"emberlog/internal/metrics"
)

// azblobUploader uploads to Azure Blob Storage
// (archive_directory "azblob://account/container/prefix").
type azblobUploader struct {
	client    *service.Client
	account   string
	container string
	prefix    string
	metrics   *metrics.Recorder
}

func newAzblobUploader(u *url.URL, rec *metrics.Recorder) (*azblobUploader, error) {
	account := u.Host
	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	if account == "" || len(parts) == 0 || parts[0] == "" {
		return nil, fmt.Errorf("archive: azblob uri must be azblob://account/container[/prefix], got %q", u.String())
	}
	container := parts[0]
	prefix := ""
	if len(parts) == 2 {
		prefix = parts[1]
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", account)
	cred, err := azblob.NewSharedKeyCredential(account, os.Getenv("AZURE_STORAGE_ACCOUNT_KEY"))
	if err != nil {
		return nil, fmt.Errorf("archive: azblob shared key credential: %w", err)
	}
	client, err := service.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("archive: azblob client: %w", err)
	}

	return &azblobUploader{client: client, account: account, container: container, prefix: prefix, metrics: rec}, nil
}

func (up *azblobUploader) Upload(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("archive: open %s: %w", localPath, err)
	}
	defer f.Close()

	key := objectKey(up.prefix, localPath)
	containerClient := up.client.NewContainerClient(up.container)
	blobClient := containerClient.NewBlockBlobClient(key)

	if _, err := blobClient.UploadFile(ctx, f, nil); err != nil {
		up.metrics.IncrCounter("archive.azblob.upload_failed", 1)
		return "", fmt.Errorf("archive: azblob upload %s/%s: %w", up.container, key, err)
	}
	up.metrics.IncrCounter("archive.azblob.uploaded", 1)
	return fmt.Sprintf("azblob://%s/%s/%s", up.account, up.container, key), nil
}

var _ Uploader = (*azblobUploader)(nil)

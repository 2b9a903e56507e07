package archive

import (
	"context"
	"sync"
	"testing"
)

type fakeUploader struct {
	mu      sync.Mutex
	uploads []string
	err     error
}

func (f *fakeUploader) Upload(ctx context.Context, localPath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, localPath)
	return "s3://bucket/" + localPath, nil
}

func TestIsRemoteURIRecognizesSupportedSchemes(t *testing.T) {
	cases := map[string]bool{
		"s3://bucket/prefix":        true,
		"azblob://acct/container":   true,
		"gs://bucket/prefix":        true,
		"/var/log/app/archive":      false,
		"C:\\logs\\archive":         false,
	}
	for path, want := range cases {
		if got := IsRemoteURI(path); got != want {
			t.Errorf("IsRemoteURI(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestNewUploaderRejectsUnknownScheme(t *testing.T) {
	_, err := NewUploader("ftp://example.com/logs", nil)
	if err == nil {
		t.Fatal("expected an unsupported scheme to be rejected")
	}
}

func TestHookSynchronousReturnsRemoteURI(t *testing.T) {
	up := &fakeUploader{}
	hook := Hook(up, nil, nil)

	got, err := hook("/tmp/app.1.log")
	if err != nil {
		t.Fatalf("hook: %v", err)
	}
	if got != "s3://bucket//tmp/app.1.log" {
		t.Fatalf("expected the synchronous hook to return the uploader's remote URI, got %q", got)
	}
}

func TestHookAsyncReturnsLocalPathImmediately(t *testing.T) {
	up := &fakeUploader{}
	done := make(chan struct{})
	submit := func(fn func()) {
		go func() {
			fn()
			close(done)
		}()
	}
	hook := Hook(up, submit, nil)

	got, err := hook("/tmp/app.2.log")
	if err != nil {
		t.Fatalf("hook: %v", err)
	}
	if got != "/tmp/app.2.log" {
		t.Fatalf("expected the async hook to return the local path immediately, got %q", got)
	}

	<-done
	up.mu.Lock()
	defer up.mu.Unlock()
	if len(up.uploads) != 1 || up.uploads[0] != "/tmp/app.2.log" {
		t.Fatalf("expected the submitted upload to eventually run, got %v", up.uploads)
	}
}

func TestHookAsyncInvokesOnAsyncErrorOnFailure(t *testing.T) {
	up := &fakeUploader{err: context.DeadlineExceeded}
	var gotErr error
	done := make(chan struct{})
	submit := func(fn func()) { fn() }
	hook := Hook(up, submit, func(localPath string, err error) {
		gotErr = err
		close(done)
	})

	if _, err := hook("/tmp/app.3.log"); err != nil {
		t.Fatalf("hook: %v", err)
	}
	<-done
	if gotErr == nil {
		t.Fatal("expected onAsyncError to be invoked with the upload failure")
	}
}

func TestObjectKeyJoinsPrefixAndBasename(t *testing.T) {
	if got := objectKey("logs/app", "/var/log/app.1.log"); got != "logs/app/app.1.log" {
		t.Fatalf("objectKey with prefix = %q, want logs/app/app.1.log", got)
	}
	if got := objectKey("", "/var/log/app.1.log"); got != "app.1.log" {
		t.Fatalf("objectKey with empty prefix = %q, want app.1.log", got)
	}
}

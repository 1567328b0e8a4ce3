package service

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/HankHuang0516/wishlist-app-sub000/internal/domain"
)

type statusRecorder struct {
	statuses []domain.UploadStatus
	urls     []string
}

func (s *statusRecorder) SetUploadStatus(ctx context.Context, id string, status domain.UploadStatus, imageURL string) error {
	s.statuses = append(s.statuses, status)
	s.urls = append(s.urls, imageURL)
	return nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func stagedItem(t *testing.T, data []byte) *domain.Item {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return &domain.Item{ID: "item-1", LocalImagePath: path, UploadStatus: domain.UploadStatusPending}
}

func TestRelayDeletesEphemeralCopyAfterDurableUpload(t *testing.T) {
	data := pngBytes(t)
	item := stagedItem(t, data)
	recorder := &statusRecorder{}
	r := NewRelayer(recorder, &fakePersist{url: "https://img.test/wishes/a.png"}, "/uploads", quotaTestLogger())

	url, got := r.Relay(context.Background(), item)
	if url != "https://img.test/wishes/a.png" {
		t.Errorf("url = %q", url)
	}
	if !bytes.Equal(got, data) {
		t.Error("relay should hand back the raw bytes for analysis")
	}
	if _, err := os.Stat(item.LocalImagePath); !os.IsNotExist(err) {
		t.Error("ephemeral copy should be deleted after the durable upload")
	}
	final := recorder.statuses[len(recorder.statuses)-1]
	if final != domain.UploadStatusCompleted {
		t.Errorf("final upload status = %s, want COMPLETED", final)
	}
}

func TestRelayAdoptsLocalPathWhenUploadFails(t *testing.T) {
	data := pngBytes(t)
	item := stagedItem(t, data)
	recorder := &statusRecorder{}
	r := NewRelayer(recorder, &fakePersist{url: ""}, "/uploads", quotaTestLogger())

	url, got := r.Relay(context.Background(), item)
	if got == nil {
		t.Fatal("bytes should survive an upload failure")
	}
	if url != "/uploads/"+filepath.Base(item.LocalImagePath) {
		t.Errorf("fallback url = %q", url)
	}
	if _, err := os.Stat(item.LocalImagePath); err != nil {
		t.Error("local copy must be kept when it is the fallback")
	}
	final := recorder.statuses[len(recorder.statuses)-1]
	if final != domain.UploadStatusFailed {
		t.Errorf("final upload status = %s, want FAILED", final)
	}
}

func TestRelayUnreadableFileIsFatalForTheBranch(t *testing.T) {
	item := &domain.Item{ID: "item-1", LocalImagePath: filepath.Join(t.TempDir(), "missing.png")}
	r := NewRelayer(&statusRecorder{}, &fakePersist{url: "x"}, "/uploads", quotaTestLogger())

	url, data := r.Relay(context.Background(), item)
	if url != "" || data != nil {
		t.Errorf("Relay = (%q, %d bytes), want empty result", url, len(data))
	}
}

func TestValidateImage(t *testing.T) {
	format, err := ValidateImage(pngBytes(t))
	if err != nil || format != "png" {
		t.Errorf("ValidateImage = (%q, %v)", format, err)
	}
	if _, err := ValidateImage([]byte("not an image")); err == nil {
		t.Error("garbage bytes should be rejected")
	}
}

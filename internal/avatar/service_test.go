package avatar

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type memBlobs struct {
	files map[string][]byte
}

func newMemBlobs() *memBlobs {
	return &memBlobs{files: make(map[string][]byte)}
}

func (m *memBlobs) Put(_ context.Context, name string, data []byte) (string, error) {
	m.files[name] = data
	return "https://cdn.test/avatars/" + name, nil
}

func (m *memBlobs) RemoveAll(_ context.Context, prefix string) error {
	for name := range m.files {
		if strings.HasPrefix(name, prefix) {
			delete(m.files, name)
		}
	}
	return nil
}

type stubURLWriter struct {
	lastID  uuid.UUID
	lastURL string
	err     error
}

func (s *stubURLWriter) UpdateAvatarURL(_ context.Context, id uuid.UUID, url string) error {
	if s.err != nil {
		return s.err
	}
	s.lastID = id
	s.lastURL = url
	return nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func TestUpload_storesAndLinksAvatar(t *testing.T) {
	blobs := newMemBlobs()
	writer := &stubURLWriter{}
	svc := NewService(blobs, writer, zap.NewNop())
	userID := uuid.New()

	url, err := svc.Upload(context.Background(), userID, pngBytes(t, 64, 64))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if writer.lastURL != url || writer.lastID != userID {
		t.Fatalf("profile not pointed at upload: %+v", writer)
	}
	if len(blobs.files) != 1 {
		t.Fatalf("expected one stored blob, got %d", len(blobs.files))
	}
	if !strings.Contains(url, userID.String()) {
		t.Fatalf("blob name must carry the account id: %q", url)
	}
}

func TestUpload_downscalesLargeImages(t *testing.T) {
	blobs := newMemBlobs()
	svc := NewService(blobs, &stubURLWriter{}, zap.NewNop())

	if _, err := svc.Upload(context.Background(), uuid.New(), pngBytes(t, 2000, 1000)); err != nil {
		t.Fatalf("upload: %v", err)
	}
	for _, data := range blobs.files {
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("stored blob is not an image: %v", err)
		}
		b := img.Bounds()
		if b.Dx() != maxDimension || b.Dy() != maxDimension/2 {
			t.Fatalf("expected %dx%d, got %dx%d", maxDimension, maxDimension/2, b.Dx(), b.Dy())
		}
	}
}

func TestUpload_rejectsOversizedBody(t *testing.T) {
	svc := NewService(newMemBlobs(), &stubURLWriter{}, zap.NewNop())

	_, err := svc.Upload(context.Background(), uuid.New(), make([]byte, MaxUploadBytes+1))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestUpload_rejectsNonImage(t *testing.T) {
	svc := NewService(newMemBlobs(), &stubURLWriter{}, zap.NewNop())

	_, err := svc.Upload(context.Background(), uuid.New(), []byte("definitely not pixels"))
	if !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage, got %v", err)
	}
}

func TestRemove_deletesAllVersions(t *testing.T) {
	blobs := newMemBlobs()
	svc := NewService(blobs, &stubURLWriter{}, zap.NewNop())
	userID := uuid.New()

	blobs.files[userID.String()+"-aabbccdd.jpg"] = []byte{1}
	blobs.files[userID.String()+"-11223344.jpg"] = []byte{2}
	blobs.files["someone-else.jpg"] = []byte{3}

	if err := svc.Remove(context.Background(), userID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(blobs.files) != 1 {
		t.Fatalf("expected only the unrelated blob to survive, got %d", len(blobs.files))
	}
}

package avatar

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register png decode

	"github.com/google/uuid"
	"github.com/tapfolio/tapfolio/internal/profile"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register webp decode
)

const (
	// MaxUploadBytes caps the raw upload body.
	MaxUploadBytes = 5 << 20

	maxDimension = 512
	jpegQuality  = 85
)

// ErrTooLarge is returned when the raw upload exceeds MaxUploadBytes.
var ErrTooLarge = fmt.Errorf("image exceeds %d MiB", MaxUploadBytes>>20)

// ErrUnsupportedImage is returned when the upload is not a decodable
// JPEG, PNG, or WebP image.
var ErrUnsupportedImage = errors.New("unsupported image format")

// ErrStorage is returned when the blob store rejects the write. The
// profile row is left untouched in that case.
var ErrStorage = errors.New("avatar storage failed")

// urlWriter is the narrow profile-store interface the upload flow
// needs. Writing only the URL keeps a finished upload from clobbering
// in-progress form edits.
type urlWriter interface {
	UpdateAvatarURL(ctx context.Context, id uuid.UUID, url string) error
}

// Service processes avatar uploads: decode, downscale, re-encode,
// store, and point the profile at the result.
type Service struct {
	blobs    BlobStore
	profiles urlWriter
	logger   *zap.Logger
}

func NewService(blobs BlobStore, profiles urlWriter, logger *zap.Logger) *Service {
	return &Service{blobs: blobs, profiles: profiles, logger: logger}
}

// Upload validates and processes a raw image upload for the given
// account and returns the public URL of the stored avatar. Re-encoding
// to JPEG strips metadata along with the original container.
func (s *Service) Upload(ctx context.Context, userID uuid.UUID, data []byte) (string, error) {
	if len(data) > MaxUploadBytes {
		return "", ErrTooLarge
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", ErrUnsupportedImage
	}

	out, err := encode(scaleDown(src))
	if err != nil {
		return "", fmt.Errorf("encode avatar: %w", err)
	}

	// Content-addressed name: a changed avatar gets a new URL, so
	// stale CDN and browser caches never pin the old image.
	sum := sha256.Sum256(out)
	name := fmt.Sprintf("%s-%x.jpg", userID, sum[:4])
	url, err := s.blobs.Put(ctx, name, out)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if err := s.profiles.UpdateAvatarURL(ctx, userID, url); err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("point profile at avatar: %w", err)
	}

	s.logger.Info("avatar uploaded",
		zap.String("user_id", userID.String()),
		zap.String("format", format),
		zap.Int("bytes_in", len(data)),
		zap.Int("bytes_out", len(out)),
	)
	return url, nil
}

// Remove deletes every stored avatar for the account. Part of the
// account-deletion cascade.
func (s *Service) Remove(ctx context.Context, userID uuid.UUID) error {
	return s.blobs.RemoveAll(ctx, userID.String())
}

// scaleDown fits the image inside maxDimension on both axes, keeping
// the aspect ratio. Images already small enough pass through.
func scaleDown(src image.Image) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDimension && h <= maxDimension {
		return src
	}
	if w >= h {
		h = h * maxDimension / w
		w = maxDimension
	} else {
		w = w * maxDimension / h
		h = maxDimension
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

func encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Package compress shrinks inline card images before they are uploaded.
package compress

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"os"
	"strings"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/dgnsrekt/cardshuffler/internal/ctypes"
)

const (
	dataImagePrefix = "data:image"
	jpegDataPrefix  = "data:image/jpeg;base64,"

	// MaxPixels bounds the decoded size of an input image.
	MaxPixels = 40_000_000
)

// Policy controls the output of a compression pass.
type Policy struct {
	Quality  int // JPEG quality, 1-100
	MaxWidth int // Images wider than this are scaled down proportionally
}

var (
	// DefaultPolicy is applied to images before they reach the remote API.
	DefaultPolicy = Policy{Quality: 70, MaxWidth: 800}

	// UploadPolicy is applied to local image files picked by the user.
	UploadPolicy = Policy{Quality: 60, MaxWidth: 600}
)

// Compressor turns a raw inline image into a smaller one.
type Compressor interface {
	Compress(ctx context.Context, raw string, policy Policy) (string, error)
}

// IsRaw reports whether ref is an inline image that should be compressed
// before upload.
func IsRaw(ref string) bool {
	return strings.HasPrefix(ref, dataImagePrefix)
}

// ImageCompressor re-encodes inline images as JPEG.
type ImageCompressor struct{}

// New returns an ImageCompressor.
func New() *ImageCompressor {
	return &ImageCompressor{}
}

// Compress decodes raw, scales it to policy.MaxWidth and re-encodes it as a
// JPEG data URL.
func (c *ImageCompressor) Compress(ctx context.Context, raw string, policy Policy) (string, error) {
	const op = "compress"

	if err := ctx.Err(); err != nil {
		return "", ctypes.NewError(ctypes.KindCompression, op, "cancelled", err)
	}

	data, err := decodeDataURL(raw)
	if err != nil {
		return "", ctypes.NewError(ctypes.KindCompression, op, "invalid image data", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", ctypes.NewError(ctypes.KindCompression, op, "failed to load image", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return "", ctypes.Errorf(ctypes.KindCompression, op, "image is %dx%d, larger than %d pixels", cfg.Width, cfg.Height, MaxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", ctypes.NewError(ctypes.KindCompression, op, "failed to load image", err)
	}

	dst := scale(src, policy.MaxWidth)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: clampQuality(policy.Quality)}); err != nil {
		return "", ctypes.NewError(ctypes.KindCompression, op, "failed to encode image", err)
	}

	return jpegDataPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// FromFile reads a local image and returns it as a data URL.
func FromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", ctypes.NewError(ctypes.KindValidation, "compress.file", "cannot read image file", err)
	}

	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", ctypes.Errorf(ctypes.KindValidation, "compress.file", "%s is not an image (%s)", path, mime)
	}

	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)), nil
}

func decodeDataURL(raw string) ([]byte, error) {
	if !IsRaw(raw) {
		return nil, fmt.Errorf("not an image data URL")
	}

	header, payload, ok := strings.Cut(raw, ",")
	if !ok {
		return nil, fmt.Errorf("missing data URL payload")
	}
	if !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("data URL is not base64 encoded")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return data, nil
}

// scale returns src on an opaque white canvas, shrunk to maxWidth if needed.
func scale(src image.Image, maxWidth int) image.Image {
	b := src.Bounds()
	width, height := b.Dx(), b.Dy()

	if maxWidth > 0 && width > maxWidth {
		height = height * maxWidth / width
		width = maxWidth
	}
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

func clampQuality(q int) int {
	switch {
	case q < 1:
		return 1
	case q > 100:
		return 100
	}
	return q
}

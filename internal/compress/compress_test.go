package compress

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgnsrekt/cardshuffler/internal/ctypes"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func pngDataURL(t *testing.T, w, h int) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t, w, h))
}

func decodeResult(t *testing.T, url string) image.Config {
	t.Helper()

	if !strings.HasPrefix(url, jpegDataPrefix) {
		t.Fatalf("result is not a jpeg data URL: %.40s", url)
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, jpegDataPrefix))
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode jpeg: %v", err)
	}
	return cfg
}

func TestCompress_ScalesProportionally(t *testing.T) {
	out, err := New().Compress(context.Background(), pngDataURL(t, 1000, 500), DefaultPolicy)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	cfg := decodeResult(t, out)
	if cfg.Width != 800 || cfg.Height != 400 {
		t.Errorf("size = %dx%d, want 800x400", cfg.Width, cfg.Height)
	}
}

func TestCompress_SmallImageKeepsSize(t *testing.T) {
	out, err := New().Compress(context.Background(), pngDataURL(t, 120, 90), UploadPolicy)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	cfg := decodeResult(t, out)
	if cfg.Width != 120 || cfg.Height != 90 {
		t.Errorf("size = %dx%d, want 120x90", cfg.Width, cfg.Height)
	}
}

func TestCompress_Failures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not a data url", "https://example.com/a.png"},
		{"no payload", "data:image/png;base64"},
		{"bad base64", "data:image/png;base64,!!!"},
		{"not an image", "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("hello"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Compress(context.Background(), tt.raw, DefaultPolicy)
			if !errors.Is(err, ctypes.ErrCompression) {
				t.Fatalf("err = %v, want compression error", err)
			}
		})
	}
}

func TestCompress_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Compress(ctx, pngDataURL(t, 10, 10), DefaultPolicy)
	if ctypes.KindOf(err) != ctypes.KindCompression {
		t.Fatalf("err = %v", err)
	}
}

func TestIsRaw(t *testing.T) {
	if !IsRaw("data:image/png;base64,AAAA") {
		t.Error("data URL not detected")
	}
	if IsRaw("https://example.com/card.jpg") {
		t.Error("remote URL detected as raw")
	}
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	imgPath := filepath.Join(dir, "card.png")
	if err := os.WriteFile(imgPath, pngBytes(t, 4, 4), 0o644); err != nil {
		t.Fatal(err)
	}
	url, err := FromFile(imgPath)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("url = %.40s", url)
	}

	txtPath := filepath.Join(dir, "notes.txt")
	os.WriteFile(txtPath, []byte("plain text"), 0o644)
	if _, err := FromFile(txtPath); ctypes.KindOf(err) != ctypes.KindValidation {
		t.Errorf("text file: err = %v", err)
	}

	if _, err := FromFile(filepath.Join(dir, "missing.png")); ctypes.KindOf(err) != ctypes.KindValidation {
		t.Errorf("missing file: err = %v", err)
	}
}

// oversizedPNG returns a small PNG whose header declares w x h pixels.
func oversizedPNG(t *testing.T, w, h uint32) string {
	t.Helper()

	data := pngBytes(t, 2, 2)
	// IHDR data follows the signature, length and chunk type.
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

func TestCompress_RejectsOversizedImages(t *testing.T) {
	tests := []struct {
		name string
		w, h uint32
	}{
		{"wide", 1 << 20, 64},
		{"square", 50_000, 50_000},
		{"just over", 8001, 5000},
	}

	c := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Compress(context.Background(), oversizedPNG(t, tt.w, tt.h), DefaultPolicy)
			var cerr *ctypes.Error
			if !errors.As(err, &cerr) || cerr.Kind != ctypes.KindCompression {
				t.Fatalf("err = %v, want compression error", err)
			}
			if !strings.Contains(cerr.Message, "larger than") {
				t.Errorf("message = %q", cerr.Message)
			}
		})
	}

	// The header rewrite itself must leave a decodable image.
	if _, err := c.Compress(context.Background(), oversizedPNG(t, 2, 2), DefaultPolicy); err != nil {
		t.Fatalf("Compress of rewritten 2x2 header: %v", err)
	}
}

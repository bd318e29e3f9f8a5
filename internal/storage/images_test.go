package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func redSquare(t *testing.T, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestSaveLocalWithPreview(t *testing.T) {
	dir := t.TempDir()
	images := NewImagesWithUploader(&LocalUploader{BaseDir: dir}, 1024*1024, 5)
	raw := redSquare(t, 10)

	img, err := images.Save(context.Background(), "Ref.PNG", "image/png", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if img.Size != int64(len(raw)) || img.Filename != "Ref.PNG" || img.Width != 10 || img.Height != 10 {
		t.Fatalf("unexpected descriptor: %+v", img)
	}
	if img.DataURL != "data:image/png;base64,"+base64.StdEncoding.EncodeToString(raw) {
		t.Fatalf("unexpected data url")
	}

	written, err := os.ReadFile(filepath.Join(dir, img.FileID+".png"))
	if err != nil {
		t.Fatalf("upload not persisted: %v", err)
	}
	if !bytes.Equal(written, raw) {
		t.Fatalf("persisted bytes differ")
	}

	if !strings.HasPrefix(img.PreviewURL, "data:image/jpeg;base64,") {
		t.Fatalf("missing preview: %q", img.PreviewURL)
	}
	thumbRaw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(img.PreviewURL, "data:image/jpeg;base64,"))
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	thumb, _, err := image.Decode(bytes.NewReader(thumbRaw))
	if err != nil {
		t.Fatalf("decode preview image: %v", err)
	}
	if thumb.Bounds().Dx() != 5 {
		t.Fatalf("expected preview width 5, got %d", thumb.Bounds().Dx())
	}
}

func TestSaveRejectsOversized(t *testing.T) {
	images := NewImagesWithUploader(&LocalUploader{BaseDir: t.TempDir()}, 8, 5)
	_, err := images.Save(context.Background(), "big.png", "image/png", bytes.NewReader(make([]byte, 9)))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestSaveUndecodableImageSkipsPreview(t *testing.T) {
	images := NewImagesWithUploader(&LocalUploader{BaseDir: t.TempDir()}, 1024, 5)
	img, err := images.Save(context.Background(), "x.webp", "image/webp", strings.NewReader("not really an image"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if img.PreviewURL != "" || img.Width != 0 {
		t.Fatalf("expected no preview, got %+v", img)
	}
}

type failingUploader struct{}

func (failingUploader) Upload(context.Context, string, []byte, string) (string, error) {
	return "", errors.New("disk full")
}

func TestSaveUploaderError(t *testing.T) {
	images := NewImagesWithUploader(failingUploader{}, 1024, 5)
	if _, err := images.Save(context.Background(), "a.png", "image/png", strings.NewReader("x")); err == nil {
		t.Fatalf("expected upload error")
	}
}

// Package storage persists uploaded reference images and renders the small
// previews shown next to them.
package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"vidrelay/internal/config"
)

// ErrTooLarge is returned when an upload exceeds the size ceiling.
var ErrTooLarge = errors.New("storage: image exceeds size limit")

// Uploader writes an object under key and returns where it ended up.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// Image describes one accepted upload.
type Image struct {
	FileID     string `json:"file_id"`
	Filename   string `json:"filename"`
	Size       int64  `json:"size"`
	DataURL    string `json:"data_url"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	PreviewURL string `json:"preview_url,omitempty"`
	Location   string `json:"-"`
}

// Images accepts uploads, persists them and renders previews.
type Images struct {
	uploader     Uploader
	maxBytes     int64
	previewWidth int
}

// NewImages picks S3 when a bucket is configured, the local upload directory
// otherwise.
func NewImages(ctx context.Context, cfg config.Config) (*Images, error) {
	var up Uploader = &LocalUploader{BaseDir: cfg.UploadDir}
	if cfg.UploadS3Bucket != "" {
		client, err := newS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		up = &S3Uploader{Client: client, Bucket: cfg.UploadS3Bucket}
	}
	return NewImagesWithUploader(up, cfg.MaxUploadBytes, cfg.PreviewWidth), nil
}

// NewImagesWithUploader is used by tests and callers that bring their own
// destination.
func NewImagesWithUploader(up Uploader, maxBytes int64, previewWidth int) *Images {
	if maxBytes <= 0 {
		maxBytes = 20 * 1024 * 1024
	}
	if previewWidth <= 0 {
		previewWidth = 320
	}
	return &Images{uploader: up, maxBytes: maxBytes, previewWidth: previewWidth}
}

func newS3Client(ctx context.Context, cfg config.Config) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.UploadS3Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.UploadS3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.UploadS3Endpoint)
		}
		o.UsePathStyle = cfg.UploadS3PathStyle
	}), nil
}

// Save reads r up to the size ceiling, stores the bytes under a fresh id plus
// the original extension and returns the descriptor with an inline data URL.
func (s *Images) Save(ctx context.Context, filename, contentType string, r io.Reader) (Image, error) {
	body, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return Image{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(body)) > s.maxBytes {
		return Image{}, ErrTooLarge
	}

	id := uuid.NewString()
	key := sanitizeKey(id + strings.ToLower(filepath.Ext(filename)))
	location, err := s.uploader.Upload(ctx, key, body, contentType)
	if err != nil {
		return Image{}, fmt.Errorf("upload: %w", err)
	}

	img := Image{
		FileID:   id,
		Filename: filename,
		Size:     int64(len(body)),
		DataURL:  dataURL(contentType, body),
		Location: location,
	}
	s.attachPreview(&img, body)
	return img, nil
}

// attachPreview leaves the preview fields empty for formats the decoder does
// not know.
func (s *Images) attachPreview(img *Image, body []byte) {
	src, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return
	}
	b := src.Bounds()
	img.Width, img.Height = b.Dx(), b.Dy()

	thumb := src
	if img.Width > s.previewWidth {
		thumb = imaging.Resize(src, s.previewWidth, 0, imaging.Lanczos)
	}
	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return
	}
	img.PreviewURL = dataURL("image/jpeg", buf.Bytes())
}

func dataURL(contentType string, body []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(body)
}

func sanitizeKey(key string) string {
	key = filepath.Clean(key)
	key = strings.TrimPrefix(key, string(filepath.Separator))
	key = strings.TrimPrefix(key, "./")
	return key
}

// LocalUploader writes into a directory on disk.
type LocalUploader struct {
	BaseDir string
}

func (l *LocalUploader) Upload(_ context.Context, key string, body []byte, _ string) (string, error) {
	path := filepath.Join(l.BaseDir, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create dirs: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// S3Uploader puts objects into one bucket.
type S3Uploader struct {
	Client *s3.Client
	Bucket string
}

func (s *S3Uploader) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.Bucket, key), nil
}

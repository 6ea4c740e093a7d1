package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

const MaxImageSize = 5 * 1024 * 1024

var (
	ErrUploadUnavailable = errors.New("image upload is not configured")
	ErrUnsupportedImage  = errors.New("only jpg, png, and webp images are allowed")
	ErrImageTooLarge     = errors.New("image must be under 5MB")
)

var allowedExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// Uploader stores a file and returns the URL it can be fetched from.
type Uploader interface {
	Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

// ProofObjectName checks an uploaded image and returns a fresh object name
// for it under the day's folder, with the content type to store it as.
func ProofObjectName(day, filename string, size int64) (name, contentType string, err error) {
	ext := strings.ToLower(filepath.Ext(filename))
	contentType, ok := allowedExt[ext]
	if !ok {
		return "", "", ErrUnsupportedImage
	}
	if size > MaxImageSize {
		return "", "", ErrImageTooLarge
	}
	return path.Join("proofs", day, uuid.New().String()+ext), contentType, nil
}

// LocalUploader writes files under Dir; they are served from /uploads.
type LocalUploader struct {
	Dir     string
	BaseURL string
}

func NewLocalUploader(dir, baseURL string) *LocalUploader {
	return &LocalUploader{Dir: dir, BaseURL: strings.TrimSuffix(baseURL, "/")}
}

func (u *LocalUploader) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	dest := filepath.Join(u.Dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("create uploads directory: %w", err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dest)
		return "", fmt.Errorf("save image: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}

	return fmt.Sprintf("%s/uploads/%s", u.BaseURL, name), nil
}

// BucketUploader stores files in a Cloud Storage bucket (Firebase Storage).
type BucketUploader struct {
	bucket *storage.BucketHandle
	name   string
}

func NewBucketUploader(bucket *storage.BucketHandle, bucketName string) *BucketUploader {
	return &BucketUploader{bucket: bucket, name: bucketName}
}

func (u *BucketUploader) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	token := uuid.New().String()
	w := u.bucket.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{"firebaseStorageDownloadTokens": token}

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}

	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		u.name, url.PathEscape(name), token), nil
}

// NoUploader is used when no upload backend is configured.
type NoUploader struct{}

func (NoUploader) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	return "", ErrUploadUnavailable
}

// Package media uploads user images to the blob store and removes the ones they replace.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyLocation indicates the blob store accepted an upload but returned no location.
var ErrEmptyLocation = errors.New("blob store returned empty location")

// BlobStore persists uploaded files and removes them again.
type BlobStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Delete(ctx context.Context, location string) error
}

// File is a staged upload waiting to be sent to the blob store.
type File struct {
	Name string
	Body io.Reader
}

// Uploader sends files to a BlobStore under generated keys with a bounded wait.
type Uploader struct {
	store   BlobStore
	timeout time.Duration
}

// NewUploader constructs an Uploader. A non-positive timeout defaults to one minute.
func NewUploader(store BlobStore, timeout time.Duration) *Uploader {
	if store == nil {
		panic("media: blob store must not be nil")
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Uploader{store: store, timeout: timeout}
}

// Upload stores file under folder and returns its public location.
func (u *Uploader) Upload(ctx context.Context, folder string, file File) (string, error) {
	if file.Body == nil {
		return "", fmt.Errorf("upload %s: missing body", folder)
	}

	uploadCtx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	key := ObjectKey(folder, file.Name)
	location, err := u.store.Save(uploadCtx, key, file.Body)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if strings.TrimSpace(location) == "" {
		return "", fmt.Errorf("upload %s: %w", key, ErrEmptyLocation)
	}
	return location, nil
}

// ObjectKey builds a collision-free key that keeps the uploaded file extension.
func ObjectKey(folder, filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return uuid.NewString() + ext
	}
	return folder + "/" + uuid.NewString() + ext
}

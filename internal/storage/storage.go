// Package storage defines the media collaborator used for avatars and cover
// images.
package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// UploadInput describes one file handed to a Storage.
type UploadInput struct {
	// Folder groups objects, e.g. "avatars".
	Folder      string
	FileName    string
	ContentType string
	Body        io.Reader
	Size        int64
}

// UploadResult is the stored object's key and public URL.
type UploadResult struct {
	Key string
	URL string
}

// Storage uploads and deletes media objects.
type Storage interface {
	Upload(ctx context.Context, in *UploadInput) (*UploadResult, error)
	Delete(ctx context.Context, key string) error
	// KeyFromURL derives the object key from a URL returned by Upload. It
	// returns "" for URLs this storage did not produce.
	KeyFromURL(url string) string
}

// NewKey builds a collision-free object key that keeps the file extension.
func NewKey(folder, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	if len(ext) > 10 {
		ext = ""
	}
	return path.Join(folder, uuid.NewString()+ext)
}

// KeyFromBase strips base and a separating slash from url.
func KeyFromBase(base, url string) string {
	base = strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(url, base) {
		return ""
	}
	return strings.TrimPrefix(url, base)
}

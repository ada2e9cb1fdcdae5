package object

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cropguard/internal/shared/util"
)

// Image is an uploaded photo ready to be stored.
type Image struct {
	OwnerID     string
	FileName    string
	ContentType string
	Extension   string
	Data        []byte
}

// ImageStore persists uploaded photos and returns an opaque storage key.
type ImageStore interface {
	Put(ctx context.Context, img Image) (storageKey string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	// Delete removes a stored image. Deleting a missing key is not an error.
	Delete(ctx context.Context, storageKey string) error
}

// NewKey builds "<owner hash>/<yyyy>/<mm>/<random>_<name>" for an image.
// The owner is hashed so user identifiers never appear in paths.
func NewKey(img Image, now time.Time) (string, error) {
	name := strings.TrimSpace(img.FileName)
	if name == "" {
		name = "capture" + img.Extension
	}
	sanitized, err := util.SanitizeFileName(name)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	if path.Ext(sanitized) == "" && img.Extension != "" {
		sanitized += img.Extension
	}
	now = now.UTC()
	return path.Join(
		util.HashOwnerKey(img.OwnerID),
		now.Format("2006"),
		now.Format("01"),
		randomID()+"_"+sanitized,
	), nil
}

// ValidKey rejects keys that would escape the store root.
func ValidKey(storageKey string) bool {
	clean := path.Clean(strings.TrimSpace(storageKey))
	if clean == "." || clean == "" {
		return false
	}
	return !strings.HasPrefix(clean, "..") && !strings.HasPrefix(clean, "/")
}

func randomID() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

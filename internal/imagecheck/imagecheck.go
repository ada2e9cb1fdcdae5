// Package imagecheck validates uploaded crop photos before they are sent upstream.
package imagecheck

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxBytes matches the upload limit of the web client.
const DefaultMaxBytes int64 = 10 << 20

var (
	// ErrInvalidImage is the sentinel every validation failure wraps.
	ErrInvalidImage = errors.New("invalid image")
	ErrEmpty        = fmt.Errorf("%w: empty payload", ErrInvalidImage)
	ErrTooLarge     = fmt.Errorf("%w: payload too large", ErrInvalidImage)
	ErrNotImage     = fmt.Errorf("%w: not an image", ErrInvalidImage)
)

// Info describes an accepted image.
type Info struct {
	ContentType string
	Extension   string
	SizeBytes   int64
}

// Validator checks size and sniffed content type.
type Validator struct {
	maxBytes int64
}

// New returns a Validator; maxBytes <= 0 uses DefaultMaxBytes.
func New(maxBytes int64) *Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Validator{maxBytes: maxBytes}
}

// MaxBytes reports the configured limit.
func (v *Validator) MaxBytes() int64 {
	return v.maxBytes
}

// Validate accepts any payload whose sniffed type is image/*.
func (v *Validator) Validate(data []byte) (Info, error) {
	if len(data) == 0 {
		return Info{}, ErrEmpty
	}
	if int64(len(data)) > v.maxBytes {
		return Info{}, fmt.Errorf("%w (%d > %d bytes)", ErrTooLarge, len(data), v.maxBytes)
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return Info{}, fmt.Errorf("%w (detected %s)", ErrNotImage, mt.String())
	}
	return Info{
		ContentType: mt.String(),
		Extension:   mt.Extension(),
		SizeBytes:   int64(len(data)),
	}, nil
}

// Validate checks data against DefaultMaxBytes.
func Validate(data []byte) (Info, error) {
	return New(DefaultMaxBytes).Validate(data)
}

// Package imaging decodes photographed meter images submitted as base64
// data URIs. Stored objects are named by UUID elsewhere; nothing in this
// package keeps state between calls.
package imaging

import (
	"encoding/base64"
	"errors"
	"regexp"
)

// ErrInvalidDataURI is returned when the input does not match
// the data:<mime>;base64,<payload> shape.
var ErrInvalidDataURI = errors.New("invalid base64 data URI")

var dataURIPattern = regexp.MustCompile(`^data:([A-Za-z0-9.+-]+/[A-Za-z0-9.+-]+);base64,(.+)$`)

// DecodeDataURI parses a data:<mime>;base64,<payload> string and returns the
// decoded payload bytes and the declared MIME type.
func DecodeDataURI(s string) ([]byte, string, error) {
	matches := dataURIPattern.FindStringSubmatch(s)
	if matches == nil {
		return nil, "", ErrInvalidDataURI
	}

	mimeType := matches[1]
	data, err := base64.StdEncoding.DecodeString(matches[2])
	if err != nil {
		return nil, "", ErrInvalidDataURI
	}
	return data, mimeType, nil
}

// ExtensionForMIME maps an image MIME type to a file extension for storage keys.
func ExtensionForMIME(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".bin"
	}
}

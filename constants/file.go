package constants

import (
	"mime"
	"path/filepath"
	"strings"
)

// AcceptedMimeTypes are the image types the extraction service is known to handle.
// Anything else is still forwarded, with a warning.
var AcceptedMimeTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/heic": {},
}

// AllowedExtensions holds the file extensions picked up by directory batches.
var AllowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"webp": {},
	"heic": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAcceptedMimeType reports whether mt is one of AcceptedMimeTypes (parameters ignored).
func IsAcceptedMimeType(mt string) bool {
	base, _, err := mime.ParseMediaType(mt)
	if err != nil {
		base = strings.ToLower(strings.TrimSpace(mt))
	}
	_, ok := AcceptedMimeTypes[base]
	return ok
}

// MimeTypeForPath guesses the mime type of an image from its file name.
func MimeTypeForPath(path string) string {
	ext := NormalizeExt(filepath.Ext(path))
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	case "heic":
		return "image/heic"
	}
	if mt := mime.TypeByExtension("." + ext); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

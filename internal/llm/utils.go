package llm

import (
	"encoding/base64"
	"strings"
)

// DataURL encodes image as an inline data URI.
func DataURL(image []byte, mimeType string) string {
	mt := strings.TrimSpace(mimeType)
	if mt == "" {
		mt = "application/octet-stream"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(image)
}

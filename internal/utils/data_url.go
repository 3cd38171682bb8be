package utils

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// DefaultImageMime is assumed for bare base64 payloads that carry no type.
const DefaultImageMime = "image/jpeg"

// ParseDataURL splits a data URL into its MIME type and base64 payload. A
// value without the data: scheme is treated as bare base64 of
// DefaultImageMime and reported with ok=false.
func ParseDataURL(value string) (mimeType, payload string, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(value), "data:")
	if !found {
		return DefaultImageMime, strings.TrimSpace(value), false
	}
	mimeType, payload, found = strings.Cut(rest, ";base64,")
	if !found {
		return DefaultImageMime, "", true
	}
	if mimeType = CleanMime(mimeType); mimeType == "" {
		mimeType = DefaultImageMime
	}
	return mimeType, strings.TrimSpace(payload), true
}

// EncodeDataURL builds a base64 data URL, sniffing the type when mimeType is
// empty or generic.
func EncodeDataURL(data []byte, mimeType string) string {
	mimeType = CleanMime(mimeType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = CleanMime(http.DetectContentType(data))
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// CleanMime drops parameters such as charset from a MIME type.
func CleanMime(mimeType string) string {
	v, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(v))
}

package mediatypes

import (
	"path/filepath"
	"strings"
)

// ArtifactKind tags what an encode produced.
type ArtifactKind string

const (
	// KindVideo is a single video file (MP4 output).
	KindVideo ArtifactKind = "video"
	// KindImageSequence is an animated image (GIF output).
	KindImageSequence ArtifactKind = "image-sequence"
)

// VideoExtensions maps file extensions to whether they are accepted as
// encode sources.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
	".ts":   true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	// Outputs
	".mp4": "video/mp4",
	".gif": "image/gif",
	".png": "image/png",
	".jpg": "image/jpeg",

	// Sources
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",
}

// GetMimeType returns the MIME type for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".gif").
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsVideoFile reports whether a file name has an accepted source extension.
func IsVideoFile(name string) bool {
	return VideoExtensions[strings.ToLower(filepath.Ext(name))]
}

// IsBinaryOutput reports whether a content type is an encoded artifact that
// gains nothing from HTTP compression.
func IsBinaryOutput(contentType string) bool {
	return strings.HasPrefix(contentType, "video/") || strings.HasPrefix(contentType, "image/")
}

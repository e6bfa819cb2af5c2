package fileinfo

import (
	"path"
	"strings"

	"github.com/bstardust/trip-backfill/pkg/s3client"
)

// photoExtensions lists the formats that can carry an EXIF segment
var photoExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
	".heic": true,
	".heif": true,
	".png":  true,
	".webp": true,
	".dng":  true,
	".cr2":  true,
	".nef":  true,
	".arw":  true,
}

// IsPhotoFile checks if a file is a photo based on its extension
func IsPhotoFile(filename string) bool {
	return photoExtensions[strings.ToLower(path.Ext(filename))]
}

// IsHidden reports whether any element of a slash separated path is a dot
// file or a macOS resource fork directory.
func IsHidden(p string) bool {
	for _, part := range strings.Split(p, "/") {
		if part == "__MACOSX" || (strings.HasPrefix(part, ".") && part != "." && part != "..") {
			return true
		}
	}
	return false
}

// GetContentType returns the content type for a file
func GetContentType(filename string) string {
	return s3client.DetectContentType(filename)
}

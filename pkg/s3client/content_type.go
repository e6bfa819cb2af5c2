package s3client

import (
	"mime"
	"path"
	"strings"
)

// MIME types for the photo formats a backfill handles
var commonMimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".bmp":  "image/bmp",
	".heic": "image/heic",
	".heif": "image/heif",
	".dng":  "image/x-adobe-dng",
	".cr2":  "image/x-canon-cr2",
	".nef":  "image/x-nikon-nef",
	".arw":  "image/x-sony-arw",
	".json": "application/json",
}

// DetectContentType determines the content type of a file based on its extension
func DetectContentType(filename string) string {
	ext := strings.ToLower(path.Ext(filename))

	if mimeType, ok := commonMimeTypes[ext]; ok {
		return mimeType
	}

	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		return mimeType
	}

	return "application/octet-stream"
}

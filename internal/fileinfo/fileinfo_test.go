package fileinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPhotoFile(t *testing.T) {
	for _, name := range []string{"a.jpg", "B.JPEG", "dir/c.heic", "raw.DNG", "scan.tiff"} {
		assert.True(t, IsPhotoFile(name), name)
	}
	for _, name := range []string{"clip.mp4", "a.jpg.json", "notes.txt", "noext"} {
		assert.False(t, IsPhotoFile(name), name)
	}
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden(".DS_Store"))
	assert.True(t, IsHidden("trip/._IMG_0001.jpg"))
	assert.True(t, IsHidden("__MACOSX/trip/IMG_0001.jpg"))
	assert.False(t, IsHidden("trip/IMG_0001.jpg"))
	assert.False(t, IsHidden("."))
}

func TestGetContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", GetContentType("IMG_0001.jpg"))
}

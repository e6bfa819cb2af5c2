package exif

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/bstardust/trip-backfill/internal/exif/exiftest"
	goexif "github.com/rwcarlsen/goexif/exif"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead_NoMetadata(t *testing.T) {
	cases := map[string][]byte{
		"empty":      nil,
		"one byte":   {0xFF},
		"png":        {0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0},
		"plain jpeg": exiftest.PlainJPEG(),
		"text":       []byte("definitely not a photo"),
		"soi only":   {0xFF, 0xD8},
		"xmp app1": append([]byte{0xFF, 0xD8, 0xFF, 0xE1, 0x00, 0x0A},
			append([]byte("http:/"), 0xFF, 0xD9)...),
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			tags, err := Read(data)
			assert.NoError(t, err)
			assert.Nil(t, tags)
		})
	}
}

func TestRead_LittleEndianJPEG(t *testing.T) {
	data := exiftest.New(binary.LittleEndian).
		ASCII(exiftest.IFD0, exiftest.TagMake, "Canon").
		Short(exiftest.IFD0, 0x0112, 6).
		ASCII(exiftest.Exif, exiftest.TagDateTimeOriginal, "2025:10:05 09:00:00").
		Coordinate(44.3386, "N", 68.2733, "W").
		Rationals(exiftest.GPS, exiftest.TagGPSAltitude, [2]uint32{1205, 10}).
		Byte(exiftest.GPS, exiftest.TagGPSAltitudeRef, 0).
		JPEG()

	tags, err := Read(data)
	require.NoError(t, err)

	cameraMake, ok := tags[Make].ASCII()
	require.True(t, ok)
	assert.Equal(t, "Canon", cameraMake)

	orientation, ok := tags[TagID{IFD0, 0x0112}].Uint()
	require.True(t, ok)
	assert.Equal(t, uint32(6), orientation)

	dt, ok := tags[DateTimeOriginal].ASCII()
	require.True(t, ok)
	assert.Equal(t, "2025:10:05 09:00:00", dt)

	ref, ok := tags[GPSLongitudeRef].ASCII()
	require.True(t, ok)
	assert.Equal(t, "W", ref)

	lat, ok := tags[GPSLatitude].Rationals()
	require.True(t, ok)
	require.Len(t, lat, 3)
	assert.Equal(t, Rational{44, 1}, lat[0])
	assert.Equal(t, Rational{20, 1}, lat[1])

	alt, ok := tags[GPSAltitude].Rational()
	require.True(t, ok)
	assert.Equal(t, Rational{1205, 10}, alt)

	altRef, ok := tags[GPSAltitudeRef].Uint()
	require.True(t, ok)
	assert.Equal(t, uint32(0), altRef)
}

func TestRead_BigEndianTIFF(t *testing.T) {
	data := exiftest.New(binary.BigEndian).
		ASCII(exiftest.IFD0, exiftest.TagDateTime, "2024:02:29 23:59:59").
		Coordinate(33.8688, "S", 151.2093, "E").
		TIFF()

	tags, err := Read(data)
	require.NoError(t, err)

	dt, ok := tags[DateTime].ASCII()
	require.True(t, ok)
	assert.Equal(t, "2024:02:29 23:59:59", dt)

	ref, ok := tags[GPSLatitudeRef].ASCII()
	require.True(t, ok)
	assert.Equal(t, "S", ref)

	lon, ok := tags[GPSLongitude].Rationals()
	require.True(t, ok)
	assert.Equal(t, Rational{151, 1}, lon[0])
}

func TestRead_SignedRational(t *testing.T) {
	b := exiftest.New(binary.LittleEndian)
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint32(raw, uint32(0xFFFFFFFF)) // -1
	binary.LittleEndian.PutUint32(raw[4:], 3)
	data := b.Raw(exiftest.Exif, 0x9204, exiftest.TypeSRational, 1, raw).TIFF()

	tags, err := Read(data)
	require.NoError(t, err)

	v, ok := tags[TagID{IFDExif, 0x9204}].Rational()
	require.True(t, ok)
	assert.Equal(t, Rational{-1, 3}, v)
}

func TestRead_GPSTagsDoNotCollideWithIFD0(t *testing.T) {
	data := exiftest.New(binary.LittleEndian).
		Short(exiftest.IFD0, 0x0001, 7).
		ASCII(exiftest.GPS, exiftest.TagGPSLatitudeRef, "N").
		TIFF()

	tags, err := Read(data)
	require.NoError(t, err)

	assert.Equal(t, KindUint, tags[TagID{IFD0, 0x0001}].Kind())
	assert.Equal(t, KindASCII, tags[GPSLatitudeRef].Kind())
}

func TestRead_UnsupportedTypesSkipped(t *testing.T) {
	data := exiftest.New(binary.LittleEndian).
		Raw(exiftest.Exif, 0x9000, 7, 4, []byte("0232")).
		ASCII(exiftest.Exif, exiftest.TagDateTimeOriginal, "2025:01:01 00:00:00").
		TIFF()

	tags, err := Read(data)
	require.NoError(t, err)

	_, present := tags[TagID{IFDExif, 0x9000}]
	assert.False(t, present)
	assert.Contains(t, tags, DateTimeOriginal)
}

func TestRead_Malformed(t *testing.T) {
	valid := exiftest.New(binary.LittleEndian).
		ASCII(exiftest.IFD0, exiftest.TagMake, "Nikon Corporation").
		TIFF()

	t.Run("entry count overruns buffer", func(t *testing.T) {
		data := append([]byte(nil), valid...)
		binary.LittleEndian.PutUint16(data[8:], 500)
		_, err := Read(data)
		assert.ErrorIs(t, err, ErrMalformedMetadata)
	})

	t.Run("ifd offset beyond buffer", func(t *testing.T) {
		data := append([]byte(nil), valid...)
		binary.LittleEndian.PutUint32(data[4:], 1<<20)
		_, err := Read(data)
		assert.ErrorIs(t, err, ErrMalformedMetadata)
	})

	t.Run("value overruns buffer", func(t *testing.T) {
		data := exiftest.New(binary.LittleEndian).
			Raw(exiftest.IFD0, exiftest.TagMake, exiftest.TypeASCII, 4096, []byte("Sony\x00")).
			TIFF()
		_, err := Read(data)
		assert.ErrorIs(t, err, ErrMalformedMetadata)
	})

	t.Run("bad magic", func(t *testing.T) {
		data := append([]byte(nil), valid...)
		binary.LittleEndian.PutUint16(data[2:], 0x2B)
		_, err := Read(exiftest.WrapJPEG(data))
		assert.ErrorIs(t, err, ErrMalformedMetadata)
	})

	t.Run("bad byte order", func(t *testing.T) {
		data := append([]byte(nil), valid...)
		copy(data, "XX")
		_, err := Read(exiftest.WrapJPEG(data))
		assert.ErrorIs(t, err, ErrMalformedMetadata)
	})

	t.Run("app1 length overruns buffer", func(t *testing.T) {
		data := exiftest.WrapJPEG(valid)
		cut := bytes.Index(data, []byte("Exif\x00\x00")) + 10
		_, err := Read(data[:cut])
		assert.ErrorIs(t, err, ErrMalformedMetadata)
	})

	t.Run("directory cycle", func(t *testing.T) {
		data := exiftest.New(binary.LittleEndian).
			ASCII(exiftest.Exif, exiftest.TagDateTimeOriginal, "2025:01:01 00:00:00").
			TIFF()
		// IFD0 holds one entry: the Exif pointer. Point it back at IFD0.
		binary.LittleEndian.PutUint32(data[8+2+8:], 8)
		_, err := Read(data)
		assert.ErrorIs(t, err, ErrMalformedMetadata)
	})
}

func TestRead_MalformedKeepsEarlierDirectories(t *testing.T) {
	data := exiftest.New(binary.LittleEndian).
		ASCII(exiftest.Exif, exiftest.TagDateTimeOriginal, "2025:10:01 10:00:00").
		ASCII(exiftest.GPS, exiftest.TagGPSLatitudeRef, "N").
		Raw(exiftest.GPS, exiftest.TagGPSLatitude, exiftest.TypeRational, 300, make([]byte, 24)).
		JPEG()

	tags, err := Read(data)
	require.ErrorIs(t, err, ErrMalformedMetadata)

	dt, ok := tags[DateTimeOriginal].ASCII()
	require.True(t, ok)
	assert.Equal(t, "2025:10:01 10:00:00", dt)
	assert.NotContains(t, tags, GPSLatitude)
}

func TestRead_BadEntryIsSkipped(t *testing.T) {
	data := exiftest.New(binary.BigEndian).
		Raw(exiftest.IFD0, exiftest.TagMake, exiftest.TypeASCII, 20, []byte{0, 0, 0xFF, 0xFF}).
		ASCII(exiftest.IFD0, exiftest.TagModel, "Camera 1").
		Raw(exiftest.Exif, exiftest.TagDateTimeOriginal, exiftest.TypeASCII, 20, []byte{0, 0, 0xFF, 0xFF}).
		Coordinate(44.3386, "N", 68.2733, "W").
		TIFF()

	tags, err := Read(data)
	require.ErrorIs(t, err, ErrMalformedMetadata)
	assert.Contains(t, err.Error(), "tag 0x010F")

	assert.NotContains(t, tags, Make)
	assert.NotContains(t, tags, DateTimeOriginal)
	model, ok := tags[Model].ASCII()
	require.True(t, ok)
	assert.Equal(t, "Camera 1", model)
	for _, id := range []TagID{GPSLatitudeRef, GPSLatitude, GPSLongitudeRef, GPSLongitude} {
		assert.Contains(t, tags, id)
	}
}

// The native reader must agree with goexif on well formed files.
func TestRead_AgreesWithGoexif(t *testing.T) {
	fixtures := map[string][]byte{
		"north east": exiftest.Photo("2023:07:14 18:22:05", 48.8584, 2.2945),
		"south west": exiftest.Photo("2019:12:31 23:59:59", -22.9519, -43.2105),
		"big endian": exiftest.WrapJPEG(exiftest.New(binary.BigEndian).
			ASCII(exiftest.Exif, exiftest.TagDateTimeOriginal, "2021:03:04 05:06:07").
			Coordinate(35.3606, "N", 138.7274, "E").
			TIFF()),
	}

	for name, data := range fixtures {
		t.Run(name, func(t *testing.T) {
			x, err := goexif.Decode(bytes.NewReader(data))
			require.NoError(t, err)
			wantLat, wantLon, err := x.LatLong()
			require.NoError(t, err)
			wantTime, err := x.DateTime()
			require.NoError(t, err)

			tags, err := Read(data)
			require.NoError(t, err)

			lat := decodeAxis(t, tags, GPSLatitude, GPSLatitudeRef)
			lon := decodeAxis(t, tags, GPSLongitude, GPSLongitudeRef)
			assert.InDelta(t, wantLat, lat, 1e-9)
			assert.InDelta(t, wantLon, lon, 1e-9)

			s, ok := tags[DateTimeOriginal].ASCII()
			require.True(t, ok)
			got, err := ParseDateTime(s)
			require.NoError(t, err)
			assert.Equal(t, wantTime.Format(DateTimeLayout), FormatDateTime(got))
		})
	}
}

func decodeAxis(t *testing.T, tags Tags, id, refID TagID) float64 {
	t.Helper()
	dms, ok := tags[id].Rationals()
	require.True(t, ok)
	ref, ok := tags[refID].ASCII()
	require.True(t, ok)
	require.Len(t, ref, 1)
	v, err := DecodeCoordinate(dms, ref[0])
	require.NoError(t, err)
	return v
}

func FuzzRead(f *testing.F) {
	f.Add(exiftest.Photo("2025:10:01 10:00:00", 44.3386, -68.2733))
	f.Add(exiftest.PlainJPEG())
	f.Add(exiftest.New(binary.BigEndian).ASCII(exiftest.IFD0, exiftest.TagMake, "x").TIFF())

	f.Fuzz(func(t *testing.T, data []byte) {
		tags, err := Read(data)
		if err == nil && tags == nil {
			return
		}
		for id, v := range tags {
			if v.Kind() == KindInvalid {
				t.Fatalf("tag %s decoded without a kind", id)
			}
		}
	})
}

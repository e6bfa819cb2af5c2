// Package exiftest builds JPEG and TIFF fixtures carrying EXIF tags for tests.
package exiftest

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"
)

// Dir selects the directory an entry is written to
type Dir int

const (
	IFD0 Dir = iota
	Exif
	GPS
)

// Tag numbers used by the fixtures
const (
	TagMake              = 0x010F
	TagModel             = 0x0110
	TagDateTime          = 0x0132
	TagDateTimeOriginal  = 0x9003
	TagDateTimeDigitized = 0x9004
	TagGPSLatitudeRef    = 0x0001
	TagGPSLatitude       = 0x0002
	TagGPSLongitudeRef   = 0x0003
	TagGPSLongitude      = 0x0004
	TagGPSAltitudeRef    = 0x0005
	TagGPSAltitude       = 0x0006

	TypeByte      = 1
	TypeASCII     = 2
	TypeShort     = 3
	TypeLong      = 4
	TypeRational  = 5
	TypeSRational = 10

	tagExifPointer = 0x8769
	tagGPSPointer  = 0x8825
)

type entry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

// Builder assembles a TIFF stream with IFD0, an Exif IFD and a GPS IFD
type Builder struct {
	order binary.ByteOrder
	dirs  [3][]entry
}

// New returns a builder writing in the given byte order
func New(order binary.ByteOrder) *Builder {
	return &Builder{order: order}
}

// Raw adds an entry verbatim. count is written as given even when it does not
// match len(data), which lets tests produce inconsistent segments.
func (b *Builder) Raw(dir Dir, tag, typ uint16, count uint32, data []byte) *Builder {
	b.dirs[dir] = append(b.dirs[dir], entry{tag: tag, typ: typ, count: count, data: data})
	return b
}

// ASCII adds a NUL terminated string
func (b *Builder) ASCII(dir Dir, tag uint16, s string) *Builder {
	data := append([]byte(s), 0)
	return b.Raw(dir, tag, TypeASCII, uint32(len(data)), data)
}

// Byte adds a single BYTE
func (b *Builder) Byte(dir Dir, tag uint16, v uint8) *Builder {
	return b.Raw(dir, tag, TypeByte, 1, []byte{v})
}

// Short adds a single SHORT
func (b *Builder) Short(dir Dir, tag uint16, v uint16) *Builder {
	data := make([]byte, 2)
	b.order.PutUint16(data, v)
	return b.Raw(dir, tag, TypeShort, 1, data)
}

// Rationals adds unsigned rationals given as numerator/denominator pairs
func (b *Builder) Rationals(dir Dir, tag uint16, vals ...[2]uint32) *Builder {
	data := make([]byte, 8*len(vals))
	for i, v := range vals {
		b.order.PutUint32(data[i*8:], v[0])
		b.order.PutUint32(data[i*8+4:], v[1])
	}
	return b.Raw(dir, tag, TypeRational, uint32(len(vals)), data)
}

// Coordinate adds GPS latitude and longitude with their references
func (b *Builder) Coordinate(lat float64, latRef string, lon float64, lonRef string) *Builder {
	l := DMS(lat)
	g := DMS(lon)
	return b.ASCII(GPS, TagGPSLatitudeRef, latRef).
		Rationals(GPS, TagGPSLatitude, l[0], l[1], l[2]).
		ASCII(GPS, TagGPSLongitudeRef, lonRef).
		Rationals(GPS, TagGPSLongitude, g[0], g[1], g[2])
}

// TIFF lays out the directories and returns the encoded stream
func (b *Builder) TIFF() []byte {
	var dirs [3][]entry
	for d := range b.dirs {
		dirs[d] = append([]entry(nil), b.dirs[d]...)
	}
	pointerData := func() []byte { return make([]byte, 4) }
	if len(dirs[Exif]) > 0 {
		dirs[IFD0] = append(dirs[IFD0], entry{tag: tagExifPointer, typ: TypeLong, count: 1, data: pointerData()})
	}
	if len(dirs[GPS]) > 0 {
		dirs[IFD0] = append(dirs[IFD0], entry{tag: tagGPSPointer, typ: TypeLong, count: 1, data: pointerData()})
	}
	for d := range dirs {
		sort.SliceStable(dirs[d], func(i, j int) bool { return dirs[d][i].tag < dirs[d][j].tag })
	}

	var offsets [3]uint32
	off := uint32(8)
	for d := range dirs {
		if d != int(IFD0) && len(dirs[d]) == 0 {
			continue
		}
		offsets[d] = off
		off += uint32(2 + entrySize*len(dirs[d]) + 4)
	}

	for i := range dirs[IFD0] {
		e := &dirs[IFD0][i]
		switch e.tag {
		case tagExifPointer:
			b.order.PutUint32(e.data, offsets[Exif])
		case tagGPSPointer:
			b.order.PutUint32(e.data, offsets[GPS])
		}
	}

	dataStart := off
	var data bytes.Buffer
	valueOffsets := make(map[*entry]uint32)
	for d := range dirs {
		for i := range dirs[d] {
			e := &dirs[d][i]
			if len(e.data) <= 4 {
				continue
			}
			valueOffsets[e] = dataStart + uint32(data.Len())
			data.Write(e.data)
			if data.Len()%2 == 1 {
				data.WriteByte(0)
			}
		}
	}

	var out bytes.Buffer
	if b.order == binary.BigEndian {
		out.WriteString("MM")
	} else {
		out.WriteString("II")
	}
	b.put16(&out, 0x2A)
	b.put32(&out, 8)

	for d := range dirs {
		if d != int(IFD0) && len(dirs[d]) == 0 {
			continue
		}
		b.put16(&out, uint16(len(dirs[d])))
		for i := range dirs[d] {
			e := &dirs[d][i]
			b.put16(&out, e.tag)
			b.put16(&out, e.typ)
			b.put32(&out, e.count)
			if vo, ok := valueOffsets[e]; ok {
				b.put32(&out, vo)
			} else {
				field := make([]byte, 4)
				copy(field, e.data)
				out.Write(field)
			}
		}
		b.put32(&out, 0)
	}
	out.Write(data.Bytes())
	return out.Bytes()
}

// JPEG wraps the TIFF stream in an APP1 segment of a minimal JPEG
func (b *Builder) JPEG() []byte {
	return WrapJPEG(b.TIFF())
}

// WrapJPEG embeds a TIFF stream in SOI, APP0, APP1, SOS and EOI markers
func WrapJPEG(tiff []byte) []byte {
	var out bytes.Buffer
	out.Write([]byte{0xFF, 0xD8})

	jfif := []byte{'J', 'F', 'I', 'F', 0, 1, 1, 0, 0, 1, 0, 1, 0, 0}
	out.Write([]byte{0xFF, 0xE0})
	binary.Write(&out, binary.BigEndian, uint16(2+len(jfif)))
	out.Write(jfif)

	out.Write([]byte{0xFF, 0xE1})
	binary.Write(&out, binary.BigEndian, uint16(2+6+len(tiff)))
	out.WriteString("Exif\x00\x00")
	out.Write(tiff)

	out.Write(PlainJPEG()[2:])
	return out.Bytes()
}

// PlainJPEG returns a JPEG stream without any metadata segment
func PlainJPEG() []byte {
	return []byte{
		0xFF, 0xD8,
		0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0, 1, 1, 0, 0, 1, 0, 1, 0, 0,
		0xFF, 0xDA, 0x00, 0x08, 0x01, 0x01, 0x00, 0x00, 0x3F, 0x00,
		0x12, 0x34, 0x56, 0x78,
		0xFF, 0xD9,
	}
}

// Photo is the common fixture: a JPEG with an optional capture time and an
// optional coordinate. Negative latitudes and longitudes get S and W refs.
func Photo(dateTimeOriginal string, coord ...float64) []byte {
	b := New(binary.LittleEndian).ASCII(IFD0, TagMake, "Test").ASCII(IFD0, TagModel, "Camera 1")
	if dateTimeOriginal != "" {
		b.ASCII(Exif, TagDateTimeOriginal, dateTimeOriginal)
	}
	if len(coord) == 2 {
		latRef, lonRef := "N", "E"
		lat, lon := coord[0], coord[1]
		if lat < 0 {
			latRef, lat = "S", -lat
		}
		if lon < 0 {
			lonRef, lon = "W", -lon
		}
		b.Coordinate(lat, latRef, lon, lonRef)
	}
	return b.JPEG()
}

// DMS splits a non-negative decimal degree value into degree, minute and
// second rationals with seconds kept to 1/10000.
func DMS(deg float64) [3][2]uint32 {
	d := math.Floor(deg)
	minutes := (deg - d) * 60
	m := math.Floor(minutes)
	s := math.Round((minutes - m) * 60 * 10000)
	return [3][2]uint32{{uint32(d), 1}, {uint32(m), 1}, {uint32(s), 10000}}
}

const entrySize = 12

func (b *Builder) put16(buf *bytes.Buffer, v uint16) {
	p := make([]byte, 2)
	b.order.PutUint16(p, v)
	buf.Write(p)
}

func (b *Builder) put32(buf *bytes.Buffer, v uint32) {
	p := make([]byte, 4)
	b.order.PutUint32(p, v)
	buf.Write(p)
}

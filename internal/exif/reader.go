package exif

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerAPP1 = 0xE1
	markerTEM  = 0x01

	tiffMagic = 0x002A
	entrySize = 12

	exifIFDPointer = 0x8769
	gpsIFDPointer  = 0x8825
)

// TIFF field types understood by the reader
const (
	typeByte      = 1
	typeASCII     = 2
	typeShort     = 3
	typeLong      = 4
	typeRational  = 5
	typeSRational = 10
)

var typeSizes = map[uint16]uint64{
	typeByte:      1,
	typeASCII:     1,
	typeShort:     2,
	typeLong:      4,
	typeRational:  8,
	typeSRational: 8,
}

var exifHeader = []byte("Exif\x00\x00")

// Read extracts the tags of the metadata segment in data, which is either a
// JPEG stream carrying an APP1 Exif segment or a bare TIFF stream.
//
// A buffer without a metadata segment yields (nil, nil). When the segment is
// present but its offsets or counts contradict the buffer, Read returns an
// error wrapping ErrMalformedMetadata together with every tag decoded before
// the inconsistency was found.
func Read(data []byte) (Tags, error) {
	tiff, err := locateTIFF(data)
	if err != nil || tiff == nil {
		return nil, err
	}
	return readTIFF(tiff)
}

func malformed(format string, v ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedMetadata, fmt.Sprintf(format, v...))
}

func isTIFFHeader(b []byte) bool {
	if len(b) < 4 {
		return false
	}
	return bytes.Equal(b[:4], []byte{'I', 'I', 0x2A, 0x00}) ||
		bytes.Equal(b[:4], []byte{'M', 'M', 0x00, 0x2A})
}

// locateTIFF returns the TIFF stream embedded in data, or nil when data has
// no recognisable metadata segment.
func locateTIFF(data []byte) ([]byte, error) {
	if isTIFFHeader(data) {
		return data, nil
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != markerSOI {
		return nil, nil
	}

	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			return nil, nil
		}
		marker := data[i+1]
		switch {
		case marker == 0xFF:
			// fill byte
			i++
			continue
		case marker == markerSOS || marker == markerEOI:
			return nil, nil
		case marker == markerTEM || (marker >= 0xD0 && marker <= 0xD7):
			i += 2
			continue
		}

		segLen := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		body := i + 4
		isExif := marker == markerAPP1 && body+len(exifHeader) <= len(data) &&
			bytes.Equal(data[body:body+len(exifHeader)], exifHeader)

		if isExif {
			end := i + 2 + segLen
			if segLen < 2+len(exifHeader) || end > len(data) {
				return nil, malformed("APP1 segment of %d bytes at offset %d overruns %d byte buffer", segLen, i, len(data))
			}
			return data[body+len(exifHeader) : end], nil
		}

		if segLen < 2 {
			return nil, nil
		}
		i += 2 + segLen
	}
	return nil, nil
}

type pointer struct {
	offset uint32
	dir    IFD
}

type ifdReader struct {
	buf     []byte
	order   binary.ByteOrder
	tags    Tags
	visited map[uint32]bool
	// err is the first problem found below the directory structure
	err error
}

// fail records err unless an earlier one is already held
func (r *ifdReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func readTIFF(b []byte) (Tags, error) {
	if len(b) < 8 {
		return nil, malformed("TIFF header truncated at %d bytes", len(b))
	}

	var order binary.ByteOrder
	switch string(b[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, malformed("unknown byte order %q", b[:2])
	}
	if magic := order.Uint16(b[2:4]); magic != tiffMagic {
		return nil, malformed("bad TIFF magic 0x%04X", magic)
	}

	r := &ifdReader{
		buf:     b,
		order:   order,
		tags:    Tags{},
		visited: make(map[uint32]bool),
	}
	if err := r.walk(order.Uint32(b[4:8]), IFD0); err != nil {
		return r.tags, err
	}
	return r.tags, r.err
}

// walk decodes one directory and then the Exif and GPS directories it
// points to. Only IFD0 pointers are followed. A bad entry or a broken
// sub-directory is recorded and skipped; the returned error means this
// directory itself could not be read.
func (r *ifdReader) walk(offset uint32, dir IFD) error {
	if r.visited[offset] {
		return malformed("%s at offset %d already visited", dir, offset)
	}
	r.visited[offset] = true

	start := uint64(offset)
	size := uint64(len(r.buf))
	if start+2 > size {
		return malformed("%s offset %d beyond %d byte segment", dir, offset, size)
	}
	n := uint64(r.order.Uint16(r.buf[start:]))
	if start+2+n*entrySize > size {
		return malformed("%s declares %d entries, overrunning %d byte segment", dir, n, size)
	}

	var subs []pointer
	for i := uint64(0); i < n; i++ {
		e := r.buf[start+2+i*entrySize : start+2+(i+1)*entrySize]
		tag := r.order.Uint16(e[0:2])
		typ := r.order.Uint16(e[2:4])
		count := r.order.Uint32(e[4:8])

		if dir == IFD0 && (tag == exifIFDPointer || tag == gpsIFDPointer) {
			sub := IFDExif
			if tag == gpsIFDPointer {
				sub = IFDGPS
			}
			subs = append(subs, pointer{offset: r.order.Uint32(e[8:12]), dir: sub})
			continue
		}

		v, ok, err := r.decode(typ, count, e[8:12])
		if err != nil {
			r.fail(fmt.Errorf("%s tag 0x%04X: %w", dir, tag, err))
			continue
		}
		if ok {
			r.tags[TagID{IFD: dir, Tag: tag}] = v
		}
	}

	for _, p := range subs {
		if err := r.walk(p.offset, p.dir); err != nil {
			r.fail(err)
		}
	}
	return nil
}

// decode reads one entry's value. Unsupported types and empty values are
// skipped (ok == false) without error.
func (r *ifdReader) decode(typ uint16, count uint32, field []byte) (Value, bool, error) {
	unit, known := typeSizes[typ]
	if !known || count == 0 {
		return Value{}, false, nil
	}

	total := uint64(count) * unit
	var raw []byte
	if total <= 4 {
		raw = field[:total]
	} else {
		off := uint64(r.order.Uint32(field))
		if off+total > uint64(len(r.buf)) {
			return Value{}, false, malformed("%d byte value at offset %d overruns %d byte segment", total, off, len(r.buf))
		}
		raw = r.buf[off : off+total]
	}

	switch typ {
	case typeByte:
		return UintValue(uint32(raw[0])), true, nil
	case typeShort:
		return UintValue(uint32(r.order.Uint16(raw))), true, nil
	case typeLong:
		return UintValue(r.order.Uint32(raw)), true, nil
	case typeASCII:
		if i := bytes.IndexByte(raw, 0); i >= 0 {
			raw = raw[:i]
		}
		return ASCIIValue(string(raw)), true, nil
	case typeRational, typeSRational:
		rats := make([]Rational, count)
		for i := range rats {
			p := raw[i*8 : i*8+8]
			if typ == typeRational {
				rats[i] = Rational{Num: int64(r.order.Uint32(p)), Den: int64(r.order.Uint32(p[4:]))}
			} else {
				rats[i] = Rational{Num: int64(int32(r.order.Uint32(p))), Den: int64(int32(r.order.Uint32(p[4:])))}
			}
		}
		if count == 1 {
			return RationalValue(rats[0]), true, nil
		}
		return RationalsValue(rats), true, nil
	}
	return Value{}, false, nil
}

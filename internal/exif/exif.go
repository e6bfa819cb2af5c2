// internal/exif/exif.go
package exif

import (
	"errors"
	"fmt"
	"strings"
)

// Errors reported by the tag reader and the field decoders.
var (
	ErrMalformedMetadata      = errors.New("malformed metadata")
	ErrInvalidRational        = errors.New("invalid rational")
	ErrInvalidHemisphere      = errors.New("invalid hemisphere reference")
	ErrInvalidTimestampFormat = errors.New("invalid timestamp format")
)

// IFD identifies the image file directory a tag was read from
type IFD uint8

const (
	IFD0 IFD = iota
	IFDExif
	IFDGPS
)

func (d IFD) String() string {
	switch d {
	case IFD0:
		return "IFD0"
	case IFDExif:
		return "ExifIFD"
	case IFDGPS:
		return "GPSIFD"
	default:
		return fmt.Sprintf("IFD(%d)", uint8(d))
	}
}

// TagID identifies a tag. GPS tag numbers collide with other directories,
// so the directory is part of the identity.
type TagID struct {
	IFD IFD
	Tag uint16
}

func (t TagID) String() string {
	return fmt.Sprintf("%s/0x%04X", t.IFD, t.Tag)
}

// Tags consumed by this module
var (
	Make             = TagID{IFD0, 0x010F}
	Model            = TagID{IFD0, 0x0110}
	DateTimeOriginal = TagID{IFDExif, 0x9003}
	GPSLatitudeRef   = TagID{IFDGPS, 0x0001}
	GPSLatitude      = TagID{IFDGPS, 0x0002}
	GPSLongitudeRef  = TagID{IFDGPS, 0x0003}
	GPSLongitude     = TagID{IFDGPS, 0x0004}
	GPSAltitudeRef   = TagID{IFDGPS, 0x0005}
	GPSAltitude      = TagID{IFDGPS, 0x0006}
)

// Kind is the variant held by a Value
type Kind uint8

const (
	KindInvalid Kind = iota
	KindUint
	KindRational
	KindASCII
	KindRationals
)

func (k Kind) String() string {
	switch k {
	case KindUint:
		return "uint"
	case KindRational:
		return "rational"
	case KindASCII:
		return "ascii"
	case KindRationals:
		return "rationals"
	default:
		return "invalid"
	}
}

// Rational is a numerator/denominator pair. Both TIFF RATIONAL and
// SRATIONAL fit in it.
type Rational struct {
	Num int64
	Den int64
}

// Float returns the rational as a float64. A zero denominator is an error,
// never Inf or NaN.
func (r Rational) Float() (float64, error) {
	if r.Den == 0 {
		return 0, fmt.Errorf("%w: %d/0", ErrInvalidRational, r.Num)
	}
	return float64(r.Num) / float64(r.Den), nil
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Value is a decoded tag value. Exactly one variant is set, selected by Kind.
type Value struct {
	kind Kind
	u    uint32
	s    string
	rats []Rational
}

func UintValue(v uint32) Value {
	return Value{kind: KindUint, u: v}
}

func RationalValue(r Rational) Value {
	return Value{kind: KindRational, rats: []Rational{r}}
}

func ASCIIValue(s string) Value {
	return Value{kind: KindASCII, s: s}
}

func RationalsValue(rs []Rational) Value {
	return Value{kind: KindRationals, rats: append([]Rational(nil), rs...)}
}

// Kind reports which variant v holds
func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) Uint() (uint32, bool) {
	if v.kind != KindUint {
		return 0, false
	}
	return v.u, true
}

func (v Value) Rational() (Rational, bool) {
	if v.kind != KindRational {
		return Rational{}, false
	}
	return v.rats[0], true
}

func (v Value) ASCII() (string, bool) {
	if v.kind != KindASCII {
		return "", false
	}
	return v.s, true
}

// Rationals returns a copy of the rational array
func (v Value) Rationals() ([]Rational, bool) {
	if v.kind != KindRationals {
		return nil, false
	}
	return append([]Rational(nil), v.rats...), true
}

func (v Value) String() string {
	switch v.kind {
	case KindUint:
		return fmt.Sprintf("%d", v.u)
	case KindRational:
		return v.rats[0].String()
	case KindASCII:
		return fmt.Sprintf("%q", v.s)
	case KindRationals:
		parts := make([]string, len(v.rats))
		for i, r := range v.rats {
			parts[i] = r.String()
		}
		return "[" + strings.Join(parts, " ") + "]"
	default:
		return "<invalid>"
	}
}

// Tags maps tag identifiers to their decoded values. A nil Tags means the
// input carried no metadata segment.
type Tags map[TagID]Value

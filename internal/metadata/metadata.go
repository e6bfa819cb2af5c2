package metadata

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bstardust/trip-backfill/internal/exif"
	"github.com/bstardust/trip-backfill/internal/logger"
)

// Record is what could be recovered from one photo. Absent fields are nil.
type Record struct {
	ID         string      `json:"id"`
	Coordinate *GeoData    `json:"coordinate,omitempty"`
	CapturedAt *time.Time  `json:"capturedAt,omitempty"`
	Altitude   *float64    `json:"altitude,omitempty"`
	Camera     *CameraData `json:"camera,omitempty"`
}

// GeoData represents geographical data
type GeoData struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CameraData represents camera information
type CameraData struct {
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`
}

// Extractor turns raw file bytes into a Record. It never fails: every
// problem with an individual field is logged and the field is left absent.
type Extractor struct{}

// NewExtractor creates a new metadata extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract builds the record for one file
func (e *Extractor) Extract(id string, data []byte) Record {
	rec := Record{ID: id}

	tags, err := exif.Read(data)
	if err != nil {
		// Read hands back whatever it decoded before giving up.
		logger.Debug("%s: %v (salvaged %d tags)", id, err, len(tags))
	}
	if len(tags) == 0 {
		return rec
	}

	if c, err := coordinate(tags); err != nil {
		logger.Debug("%s: dropping coordinate: %v", id, err)
	} else {
		rec.Coordinate = c
	}

	if t, err := capturedAt(tags); err != nil {
		logger.Debug("%s: dropping capture time: %v", id, err)
	} else {
		rec.CapturedAt = t
	}

	if a, err := altitude(tags); err != nil {
		logger.Debug("%s: dropping altitude: %v", id, err)
	} else {
		rec.Altitude = a
	}

	rec.Camera = camera(tags)
	return rec
}

// coordinate returns nil, nil when any of the four GPS tags is missing.
func coordinate(tags exif.Tags) (*GeoData, error) {
	latDMS, ok1 := tags[exif.GPSLatitude].Rationals()
	lonDMS, ok2 := tags[exif.GPSLongitude].Rationals()
	latRef, ok3 := ref(tags, exif.GPSLatitudeRef)
	lonRef, ok4 := ref(tags, exif.GPSLongitudeRef)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, nil
	}

	if latRef != 'N' && latRef != 'S' {
		return nil, fmt.Errorf("latitude: %w: %q", exif.ErrInvalidHemisphere, latRef)
	}
	if lonRef != 'E' && lonRef != 'W' {
		return nil, fmt.Errorf("longitude: %w: %q", exif.ErrInvalidHemisphere, lonRef)
	}

	lat, err := exif.DecodeCoordinate(latDMS, latRef)
	if err != nil {
		return nil, fmt.Errorf("latitude: %w", err)
	}
	lon, err := exif.DecodeCoordinate(lonDMS, lonRef)
	if err != nil {
		return nil, fmt.Errorf("longitude: %w", err)
	}
	return &GeoData{Latitude: lat, Longitude: lon}, nil
}

func ref(tags exif.Tags, id exif.TagID) (byte, bool) {
	s, ok := tags[id].ASCII()
	s = strings.TrimSpace(s)
	if !ok || s == "" {
		return 0, false
	}
	return s[0], true
}

// capturedAt reads DateTimeOriginal only. DateTimeDigitized and IFD0
// DateTime record scanning and editing, not when the photo was taken.
func capturedAt(tags exif.Tags) (*time.Time, error) {
	v, present := tags[exif.DateTimeOriginal]
	if !present {
		return nil, nil
	}
	s, ok := v.ASCII()
	if !ok {
		return nil, fmt.Errorf("%s holds %s, want ascii", exif.DateTimeOriginal, v.Kind())
	}
	t, err := exif.ParseDateTime(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", exif.DateTimeOriginal, err)
	}
	return &t, nil
}

func altitude(tags exif.Tags) (*float64, error) {
	r, ok := tags[exif.GPSAltitude].Rational()
	if !ok {
		return nil, nil
	}
	a, err := r.Float()
	if err != nil {
		return nil, err
	}
	// 1 means below sea level
	if below, _ := tags[exif.GPSAltitudeRef].Uint(); below == 1 {
		a = -a
	}
	return &a, nil
}

func camera(tags exif.Tags) *CameraData {
	mk, _ := tags[exif.Make].ASCII()
	model, _ := tags[exif.Model].ASCII()
	mk, model = strings.TrimSpace(mk), strings.TrimSpace(model)
	if mk == "" && model == "" {
		return nil
	}
	return &CameraData{Make: mk, Model: model}
}

// HasCoordinate reports whether the record carries a usable location
func (r Record) HasCoordinate() bool {
	return r.Coordinate != nil
}

// ToMap converts the record to a map for S3 object metadata
func (r Record) ToMap() map[string]string {
	result := make(map[string]string)

	if r.CapturedAt != nil {
		result["photo-taken-time"] = exif.FormatDateTime(*r.CapturedAt)
	}
	if r.Coordinate != nil {
		result["geo-latitude"] = strconv.FormatFloat(r.Coordinate.Latitude, 'f', 6, 64)
		result["geo-longitude"] = strconv.FormatFloat(r.Coordinate.Longitude, 'f', 6, 64)
	}
	if r.Altitude != nil {
		result["geo-altitude"] = strconv.FormatFloat(*r.Altitude, 'f', 1, 64)
	}
	if r.Camera != nil {
		if r.Camera.Make != "" {
			result["camera-make"] = r.Camera.Make
		}
		if r.Camera.Model != "" {
			result["camera-model"] = r.Camera.Model
		}
	}

	return result
}

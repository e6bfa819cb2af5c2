package exif

import "fmt"

// DecodeCoordinate converts a degrees/minutes/seconds triple and a hemisphere
// reference (N, S, E or W) into signed decimal degrees. It does not care
// which axis the triple belongs to.
func DecodeCoordinate(dms []Rational, ref byte) (float64, error) {
	if len(dms) != 3 {
		return 0, fmt.Errorf("%w: want degrees, minutes and seconds, got %d values", ErrInvalidRational, len(dms))
	}

	var sign float64
	switch ref {
	case 'N', 'E':
		sign = 1
	case 'S', 'W':
		sign = -1
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidHemisphere, ref)
	}

	var parts [3]float64
	for i, r := range dms {
		f, err := r.Float()
		if err != nil {
			return 0, err
		}
		parts[i] = f
	}

	return sign * (parts[0] + parts[1]/60 + parts[2]/3600), nil
}

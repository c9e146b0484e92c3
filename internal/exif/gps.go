package exif

import (
	goexif "github.com/rwcarlsen/goexif/exif"
)

// DecimalDegrees converts a degrees/minutes/seconds coordinate plus its
// hemisphere reference to decimal degrees. South and West references
// negate the result.
func DecimalDegrees(degrees, minutes, seconds float64, ref string) float64 {
	decimal := degrees + minutes/60.0 + seconds/3600.0
	if ref == "S" || ref == "W" {
		return -decimal
	}
	return decimal
}

// extractGPS pulls the GPS IFD fields out of a decoded EXIF block.
// Every field is optional; a partially populated GPS block fills what it
// can and leaves the rest nil.
func extractGPS(x *goexif.Exif, meta *Metadata) {
	if lat := dmsField(x, goexif.GPSLatitude, goexif.GPSLatitudeRef); lat != nil {
		meta.Latitude = lat
	}
	if lon := dmsField(x, goexif.GPSLongitude, goexif.GPSLongitudeRef); lon != nil {
		meta.Longitude = lon
	}

	if alt := altitudeField(x); alt != nil {
		meta.Altitude = alt
	}

	meta.LocationName = stringField(x, goexif.GPSAreaInformation)
}

// dmsField reads a three-rational DMS coordinate tag and its hemisphere
// reference tag, returning nil when either is absent or malformed.
func dmsField(x *goexif.Exif, coord, ref goexif.FieldName) *float64 {
	coordTag, err := x.Get(coord)
	if err != nil {
		return nil
	}
	refTag, err := x.Get(ref)
	if err != nil {
		return nil
	}
	refVal, err := refTag.StringVal()
	if err != nil {
		return nil
	}

	parts := make([]float64, 3)
	for i := range parts {
		num, den, err := coordTag.Rat2(i)
		if err != nil || den == 0 {
			return nil
		}
		parts[i] = float64(num) / float64(den)
	}

	decimal := DecimalDegrees(parts[0], parts[1], parts[2], refVal)
	return &decimal
}

// altitudeField reads GPSAltitude in meters. GPSAltitudeRef 1 means
// below sea level.
func altitudeField(x *goexif.Exif) *float64 {
	tag, err := x.Get(goexif.GPSAltitude)
	if err != nil {
		return nil
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return nil
	}
	alt := float64(num) / float64(den)

	if refTag, err := x.Get(goexif.GPSAltitudeRef); err == nil {
		if ref, err := refTag.Int(0); err == nil && ref == 1 {
			alt = -alt
		}
	}

	return &alt
}

package catalog

import "time"

// Photo is one cataloged file. Everything except tag associations is
// immutable after import; re-extraction goes through ReplaceMetadata.
type Photo struct {
	ID           int64      `json:"id"`
	Filename     string     `json:"filename"`
	Filepath     string     `json:"filepath"`
	FileSize     int64      `json:"fileSize"`
	DateAdded    time.Time  `json:"dateAdded"`
	DateTaken    *time.Time `json:"dateTaken,omitempty"`
	CameraMake   *string    `json:"cameraMake,omitempty"`
	CameraModel  *string    `json:"cameraModel,omitempty"`
	LensModel    *string    `json:"lensModel,omitempty"`
	FocalLength  *float64   `json:"focalLength,omitempty"`
	Aperture     *float64   `json:"aperture,omitempty"`
	ShutterSpeed *string    `json:"shutterSpeed,omitempty"`
	ISO          *int       `json:"iso,omitempty"`
	Flash        *string    `json:"flash,omitempty"`
	Orientation  int        `json:"orientation"`
	Width        *int       `json:"width,omitempty"`
	Height       *int       `json:"height,omitempty"`
	GPSLatitude  *float64   `json:"gpsLatitude,omitempty"`
	GPSLongitude *float64   `json:"gpsLongitude,omitempty"`
	GPSAltitude  *float64   `json:"gpsAltitude,omitempty"`
	GPSLocation  *string    `json:"gpsLocationName,omitempty"`
	MetadataJSON string     `json:"-"`
	Tags         []string   `json:"tags,omitempty"`
}

// Tag names are unique and case-sensitive: "Beach" and "beach" are two
// different tags.
type Tag struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	ItemCount int       `json:"itemCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// TagOpResult is the per-photo outcome of a batch tag operation.
type TagOpResult struct {
	PhotoID int64  `json:"photoId"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// Info describes the catalog's on-disk location and size.
type Info struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"sizeBytes"`
}

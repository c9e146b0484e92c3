package orient

import (
	"image"

	"github.com/disintegration/imaging"
)

// Transform maps decoded pixels into the arrangement the EXIF
// orientation intends for display.
type Transform func(image.Image) image.Image

// identity returns the image unchanged.
func identity(img image.Image) image.Image { return img }

// ForCode returns the transform for an EXIF orientation code.
//
//	1  identity
//	2  mirror horizontal
//	3  rotate 180
//	4  mirror vertical
//	5  mirror horizontal + rotate 90 CW
//	6  rotate 90 CW
//	7  mirror horizontal + rotate 90 CCW
//	8  rotate 90 CCW
//
// Absent or out-of-range codes yield the identity transform.
func ForCode(code int) Transform {
	switch code {
	case 2:
		return func(img image.Image) image.Image { return imaging.FlipH(img) }
	case 3:
		return func(img image.Image) image.Image { return imaging.Rotate180(img) }
	case 4:
		return func(img image.Image) image.Image { return imaging.FlipV(img) }
	case 5:
		return func(img image.Image) image.Image { return imaging.Transpose(img) }
	case 6:
		// imaging rotates counter-clockwise; 270 CCW == 90 CW
		return func(img image.Image) image.Image { return imaging.Rotate270(img) }
	case 7:
		return func(img image.Image) image.Image { return imaging.Transverse(img) }
	case 8:
		return func(img image.Image) image.Image { return imaging.Rotate90(img) }
	default:
		return identity
	}
}

// Apply runs the transform for code over img.
func Apply(img image.Image, code int) image.Image {
	return ForCode(code)(img)
}

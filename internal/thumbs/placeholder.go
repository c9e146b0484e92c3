package thumbs

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
)

var (
	placeholderMu    sync.Mutex
	placeholderCache = map[int][]byte{}
)

// Placeholder returns the stand-in thumbnail for photos whose real
// thumbnail is not ready or cannot be produced: a gray square with a
// checkered frame. Byte-identical across calls for the same box, so
// callers can recognize it by comparison.
func Placeholder(box int) []byte {
	if box <= 0 {
		box = DefaultBox
	}

	placeholderMu.Lock()
	defer placeholderMu.Unlock()

	if data, ok := placeholderCache[box]; ok {
		return data
	}

	const frame = 8
	light := color.NRGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF}
	dark := color.NRGBA{R: 0xB0, G: 0xB0, B: 0xB0, A: 0xFF}

	img := image.NewNRGBA(image.Rect(0, 0, box, box))
	for y := 0; y < box; y++ {
		for x := 0; x < box; x++ {
			inFrame := x < frame || y < frame || x >= box-frame || y >= box-frame
			if inFrame && (x/frame+y/frame)%2 == 0 {
				img.SetNRGBA(x, y, dark)
			} else {
				img.SetNRGBA(x, y, light)
			}
		}
	}

	var buf bytes.Buffer
	// Encode cannot fail for a valid in-memory NRGBA written to a buffer.
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		panic("placeholder encode: " + err.Error())
	}

	data := buf.Bytes()
	placeholderCache[box] = data
	return data
}

// IsPlaceholder reports whether data is the placeholder for the box.
func IsPlaceholder(data []byte, box int) bool {
	return bytes.Equal(data, Placeholder(box))
}

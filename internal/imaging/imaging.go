// Package imaging normalizes uploaded listing photos: it validates the format
// by sniffing bytes, downscales oversized images and re-encodes as JPEG.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// MaxDimension is the maximum width or height for stored photos.
const MaxDimension = 1280

// JPEGQuality is the compression quality for JPEG output.
const JPEGQuality = 85

// AllowedMIME lists the accepted input MIME types.
var AllowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// ProcessResult contains the processed photo data.
type ProcessResult struct {
	Data []byte
	MIME string
}

// Process reads photo data, validates the format by sniffing bytes,
// downscales if larger than MaxDimension, and re-encodes with compression.
// Always outputs JPEG for consistency and smaller file sizes.
func Process(r io.Reader) (*ProcessResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading photo data: %w", err)
	}

	// Sniff actual MIME type from bytes (not trusting client headers).
	detected := http.DetectContentType(data)
	if !AllowedMIME[detected] {
		return nil, fmt.Errorf("unsupported photo format: %s (only JPEG, PNG and WebP accepted)", detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding photo: %w", err)
	}

	img = downscale(img, MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	return &ProcessResult{
		Data: buf.Bytes(),
		MIME: "image/jpeg",
	}, nil
}

// downscale resizes the image so neither dimension exceeds maxDim, preserving
// aspect ratio with Catmull-Rom interpolation. Returns the original image if
// already within bounds.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	if w <= maxDim && h <= maxDim {
		return img
	}

	scale := float64(maxDim) / float64(w)
	if h > w {
		scale = float64(maxDim) / float64(h)
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test PNG: %v", err)
	}
	return buf.Bytes()
}

func TestProcessOutputsJPEG(t *testing.T) {
	data := encodePNG(t, 100, 80)

	result, err := Process(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", result.MIME)
	}

	img, err := jpeg.Decode(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 80 {
		t.Errorf("small image should not be resized, got %v", img.Bounds())
	}
}

func TestProcessDownscales(t *testing.T) {
	data := encodePNG(t, MaxDimension*2, MaxDimension)

	result, err := Process(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if img.Bounds().Dx() != MaxDimension {
		t.Errorf("expected width %d, got %d", MaxDimension, img.Bounds().Dx())
	}
	if img.Bounds().Dy() != MaxDimension/2 {
		t.Errorf("expected height %d, got %d", MaxDimension/2, img.Bounds().Dy())
	}
}

func TestProcessRejectsNonImage(t *testing.T) {
	_, err := Process(bytes.NewReader([]byte("definitely not an image")))
	if err == nil {
		t.Error("expected error for non-image data")
	}
}

package frame

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// JPEGQuality is used for every encoded frame.
const JPEGQuality = 90

// Decode decodes an image, applies its EXIF orientation and reports the source format.
func Decode(data []byte) (image.Image, string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	return img, format, nil
}

// Pad scales img to fit inside width×height keeping its aspect ratio and
// centres it on a black canvas of exactly that size. Small images are enlarged.
func Pad(img image.Image, width, height int) *image.NRGBA {
	canvas := imaging.New(width, height, color.Black)
	if img.Bounds().Empty() {
		return canvas
	}

	fitted := imaging.Fit(img, width, height, imaging.CatmullRom)
	if b := fitted.Bounds(); b.Dx() < width && b.Dy() < height {
		// Fit only shrinks
		fitted = imaging.Resize(img, width, 0, imaging.CatmullRom)
		if fitted.Bounds().Dy() > height {
			fitted = imaging.Resize(img, 0, height, imaging.CatmullRom)
		}
	}

	return imaging.PasteCenter(canvas, fitted)
}

// EncodeJPEG encodes img as a JPEG.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Package imaging turns uploaded pictures into small inline JPEG data URLs.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"
	"net/http"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// MaxUploadBytes bounds the size of an uploaded file
	MaxUploadBytes = 5 << 20
	// MaxEdge is the longest side of a stored image, in pixels
	MaxEdge = 800
	// Quality is the JPEG quality of stored images
	Quality = 70
	// MaxPixels bounds the decoded size of an upload, checked before decoding
	MaxPixels = 25_000_000

	dataURLPrefix = "data:image/jpeg;base64,"
)

var (
	ErrEmpty         = errors.New("image is empty")
	ErrTooLarge      = fmt.Errorf("image is larger than %d MB", MaxUploadBytes>>20)
	ErrTooManyPixels = fmt.Errorf("image is larger than %d megapixels", MaxPixels/1_000_000)
	ErrNotImage      = errors.New("file is not an image")
)

// Process validates data, downscales it so its longer edge is at most MaxEdge and
// returns it re-encoded as a JPEG data URL
func Process(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if len(data) > MaxUploadBytes {
		return "", ErrTooLarge
	}
	if !strings.HasPrefix(http.DetectContentType(data), "image/") {
		return "", ErrNotImage
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", ErrNotImage
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return "", ErrTooManyPixels
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Downscale(src, MaxEdge), &jpeg.Options{Quality: Quality}); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Downscale returns img resized to fit within maxEdge, flattened onto white.
// Images already within bounds keep their size.
func Downscale(img image.Image, maxEdge int) image.Image {
	b := img.Bounds()
	w, h := Dimensions(b.Dx(), b.Dy(), maxEdge)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// Dimensions scales w x h so the longer edge is at most maxEdge, keeping the aspect ratio
func Dimensions(w, h, maxEdge int) (int, int) {
	if w <= maxEdge && h <= maxEdge {
		return w, h
	}
	if w >= h {
		return maxEdge, max(1, int(math.Round(float64(h)*float64(maxEdge)/float64(w))))
	}
	return max(1, int(math.Round(float64(w)*float64(maxEdge)/float64(h)))), maxEdge
}

// DecodeDataURL returns the bytes of a data URL produced by Process
func DecodeDataURL(url string) ([]byte, error) {
	if !strings.HasPrefix(url, dataURLPrefix) {
		return nil, errors.New("not a JPEG data URL")
	}
	return base64.StdEncoding.DecodeString(strings.TrimPrefix(url, dataURLPrefix))
}

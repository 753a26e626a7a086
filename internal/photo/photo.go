// Package photo normalizes uploaded item photos.
package photo

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

const (
	// MaxUploadBytes caps the size of an accepted upload.
	MaxUploadBytes = 8 << 20
	// MaxSide is the longest edge of a stored photo, in pixels.
	MaxSide = 1024
	// Quality is the JPEG quality of stored photos.
	Quality = 85
	// StoredMIME is the content type of every stored photo.
	StoredMIME = "image/jpeg"
)

var (
	// ErrUnsupported is returned for uploads that are not JPEG or PNG.
	ErrUnsupported = errors.New("photo must be a JPEG or PNG image")
	// ErrTooLarge is returned for uploads over MaxUploadBytes.
	ErrTooLarge = errors.New("photo is too large")
)

var accepted = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
}

// Normalize reads an uploaded image and returns it as a JPEG whose longest
// side is at most MaxSide. The format is detected from the content.
func Normalize(r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading photo: %w", err)
	}
	if len(raw) > MaxUploadBytes {
		return nil, ErrTooLarge
	}
	if _, ok := accepted[http.DetectContentType(raw)]; !ok {
		return nil, ErrUnsupported
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, Fit(img, MaxSide), &jpeg.Options{Quality: Quality}); err != nil {
		return nil, fmt.Errorf("encoding photo: %w", err)
	}
	return out.Bytes(), nil
}

// Fit scales img down so that neither side exceeds maxSide, keeping the
// aspect ratio. Images already within bounds are returned unchanged.
func Fit(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSide && h <= maxSide {
		return img
	}

	nw, nh := maxSide, maxSide
	if w >= h {
		nh = max(1, h*maxSide/w)
	} else {
		nw = max(1, w*maxSide/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

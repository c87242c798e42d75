// Package transform re-encodes fetched images into the canonical delivery
// profile. It is pure: no network, storage, or database access, so every
// profile is testable in isolation.
package transform

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	pkgerrors "github.com/cartavio/imagesync-backend/pkg/errors"
)

// Profile describes one output rendition.
type Profile struct {
	Name    string
	MaxSize int
	Quality int
}

// The canonical profiles. Sizes are bounding boxes; sources smaller than the
// box are never upscaled.
var (
	Thumbnail = Profile{Name: "thumbnail", MaxSize: 300, Quality: 80}
	Gallery   = Profile{Name: "gallery", MaxSize: 1200, Quality: 80}
	Hero      = Profile{Name: "hero", MaxSize: 1920, Quality: 85}
	Detail    = Profile{Name: "detail", MaxSize: 1600, Quality: 92}
)

const contentType = "image/jpeg"

// Output is one encoded rendition.
type Output struct {
	Profile     Profile
	Bytes       []byte
	ContentType string
	Width       int
	Height      int
}

// Transform decodes src and re-encodes it to the given profile.
func Transform(src []byte, profile Profile) (*Output, error) {
	img, err := decode(src)
	if err != nil {
		return nil, err
	}
	return encode(img, profile)
}

// Variants produces one rendition per profile from a single decode.
func Variants(src []byte, profiles ...Profile) ([]Output, error) {
	img, err := decode(src)
	if err != nil {
		return nil, err
	}

	outputs := make([]Output, 0, len(profiles))
	for _, profile := range profiles {
		out, err := encode(img, profile)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, *out)
	}
	return outputs, nil
}

func decode(src []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDecode, err, "decoding source image")
	}
	return img, nil
}

func encode(img image.Image, profile Profile) (*Output, error) {
	if profile.MaxSize <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("profile %q has no size", profile.Name))
	}

	bounds := img.Bounds()
	resized := img
	if bounds.Dx() > profile.MaxSize || bounds.Dy() > profile.MaxSize {
		resized = imaging.Fit(img, profile.MaxSize, profile.MaxSize, imaging.Lanczos)
	}

	quality := profile.Quality
	if quality <= 0 {
		quality = 80
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeEncode, err, "encoding "+profile.Name)
	}

	outBounds := resized.Bounds()
	return &Output{
		Profile:     profile,
		Bytes:       buf.Bytes(),
		ContentType: contentType,
		Width:       outBounds.Dx(),
		Height:      outBounds.Dy(),
	}, nil
}

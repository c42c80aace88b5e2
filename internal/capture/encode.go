// Package capture turns camera frames and image files into the canonical
// encoded image payload and tracks a single capture attempt.
package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// ErrInvalidImageSource is returned when a source cannot be read or decoded as an image.
var ErrInvalidImageSource = errors.New("invalid image source")

// SourceKind tells where a captured image came from.
type SourceKind string

const (
	SourceCamera SourceKind = "camera"
	SourceFile   SourceKind = "file"
)

// Source is a raw image source accepted by Encoder.
type Source interface {
	kind() SourceKind
}

// CameraFrame is a single decoded frame grabbed from a camera.
type CameraFrame struct {
	Image image.Image
}

func (CameraFrame) kind() SourceKind { return SourceCamera }

// FileBlob is the raw content of an uploaded image file.
type FileBlob struct {
	Name string
	Data []byte
}

func (FileBlob) kind() SourceKind { return SourceFile }

// LoadFile reads an image file from disk into a FileBlob.
func LoadFile(path string) (FileBlob, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided image path
	if err != nil {
		return FileBlob{}, fmt.Errorf("%w: could not read %s: %w", ErrInvalidImageSource, path, err)
	}
	return FileBlob{Name: filepath.Base(path), Data: data}, nil
}

// CapturedImage holds the canonical encoded payload of one captured image.
// It is replaced wholesale on retake, never mutated.
type CapturedImage struct {
	Payload   string
	Source    SourceKind
	MediaType string
}

// Encoder converts image sources into data URI payloads.
type Encoder struct {
	// MaxDimension bounds width and height; larger images are downscaled.
	// Zero disables resizing.
	MaxDimension int
	// Quality is the JPEG quality used when re-encoding.
	Quality int
}

// NewEncoder creates an encoder. Non-positive quality falls back to 85.
func NewEncoder(maxDimension, quality int) *Encoder {
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return &Encoder{MaxDimension: maxDimension, Quality: quality}
}

// Encode turns a source into a CapturedImage. Camera frames are always
// JPEG-encoded. Files keep their original bytes unless they exceed
// MaxDimension, in which case they are downscaled to JPEG.
func (e *Encoder) Encode(ctx context.Context, src Source) (*CapturedImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch s := src.(type) {
	case CameraFrame:
		return e.encodeFrame(s)
	case *CameraFrame:
		if s == nil {
			return nil, fmt.Errorf("%w: nil camera frame", ErrInvalidImageSource)
		}
		return e.encodeFrame(*s)
	case FileBlob:
		return e.encodeFile(s)
	case *FileBlob:
		if s == nil {
			return nil, fmt.Errorf("%w: nil file", ErrInvalidImageSource)
		}
		return e.encodeFile(*s)
	default:
		return nil, fmt.Errorf("%w: unsupported source %T", ErrInvalidImageSource, src)
	}
}

func (e *Encoder) encodeFrame(frame CameraFrame) (*CapturedImage, error) {
	if frame.Image == nil || frame.Image.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty camera frame", ErrInvalidImageSource)
	}
	data, err := e.encodeJPEG(e.fit(frame.Image))
	if err != nil {
		return nil, err
	}
	return &CapturedImage{
		Payload:   EncodeDataURI(mediaTypeJPEG, data),
		Source:    SourceCamera,
		MediaType: mediaTypeJPEG,
	}, nil
}

func (e *Encoder) encodeFile(blob FileBlob) (*CapturedImage, error) {
	if len(blob.Data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidImageSource, blob.Name)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(blob.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: could not decode %s: %w", ErrInvalidImageSource, blob.Name, err)
	}

	if !e.exceeds(cfg.Width, cfg.Height) {
		// Make sure the whole image decodes, not only its header.
		if _, _, err := image.Decode(bytes.NewReader(blob.Data)); err != nil {
			return nil, fmt.Errorf("%w: could not decode %s: %w", ErrInvalidImageSource, blob.Name, err)
		}
		mediaType := "image/" + format
		return &CapturedImage{
			Payload:   EncodeDataURI(mediaType, blob.Data),
			Source:    SourceFile,
			MediaType: mediaType,
		}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(blob.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: could not decode %s: %w", ErrInvalidImageSource, blob.Name, err)
	}
	data, err := e.encodeJPEG(e.fit(img))
	if err != nil {
		return nil, err
	}
	return &CapturedImage{
		Payload:   EncodeDataURI(mediaTypeJPEG, data),
		Source:    SourceFile,
		MediaType: mediaTypeJPEG,
	}, nil
}

func (e *Encoder) exceeds(width, height int) bool {
	return e.MaxDimension > 0 && (width > e.MaxDimension || height > e.MaxDimension)
}

// fit resizes an image to fit within MaxDimension while keeping aspect ratio.
func (e *Encoder) fit(img image.Image) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if !e.exceeds(width, height) {
		return img
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = e.MaxDimension
		newHeight = max(1, int(float64(height)*float64(e.MaxDimension)/float64(width)))
	} else {
		newHeight = e.MaxDimension
		newWidth = max(1, int(float64(width)*float64(e.MaxDimension)/float64(height)))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return resized
}

func (e *Encoder) encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.Quality}); err != nil {
		return nil, fmt.Errorf("%w: failed to encode image: %w", ErrInvalidImageSource, err)
	}
	return buf.Bytes(), nil
}

const mediaTypeJPEG = "image/jpeg"

// EncodeDataURI builds a base64 data URI for the given media type and bytes.
func EncodeDataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

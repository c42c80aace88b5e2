package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
)

// ErrNoCamera is returned when no camera is configured or reachable.
var ErrNoCamera = fmt.Errorf("%w: no camera available", ErrInvalidImageSource)

// Camera yields live frames.
type Camera interface {
	Snapshot(ctx context.Context) (image.Image, error)
}

// maxSnapshotSize caps how much of a snapshot response is read.
const maxSnapshotSize = 32 << 20

// HTTPCamera grabs still frames from an IP camera snapshot endpoint
// (e.g. http://cam.local/snapshot.jpg).
type HTTPCamera struct {
	URL    string
	Client *http.Client
}

// NewHTTPCamera returns nil when url is empty so callers can treat an
// unconfigured camera as absent.
func NewHTTPCamera(url string) *HTTPCamera {
	if url == "" {
		return nil
	}
	return &HTTPCamera{URL: url, Client: http.DefaultClient}
}

func (c *HTTPCamera) Snapshot(ctx context.Context) (image.Image, error) {
	if c == nil || c.URL == "" {
		return nil, ErrNoCamera
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: could not create snapshot request: %w", ErrNoCamera, err)
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req) //nolint:gosec // camera URL comes from configuration
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoCamera, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: snapshot failed with status %d", ErrNoCamera, resp.StatusCode)
	}

	img, _, err := image.Decode(io.LimitReader(resp.Body, maxSnapshotSize))
	if err != nil {
		return nil, fmt.Errorf("%w: could not decode snapshot: %w", ErrInvalidImageSource, err)
	}
	return img, nil
}

// Acquirer produces one raw image source for a capture attempt.
type Acquirer interface {
	Acquire(ctx context.Context) (Source, error)
}

// CameraAcquirer grabs a frame from a camera.
type CameraAcquirer struct {
	Camera Camera
}

func (a CameraAcquirer) Acquire(ctx context.Context) (Source, error) {
	if a.Camera == nil {
		return nil, ErrNoCamera
	}
	img, err := a.Camera.Snapshot(ctx)
	if err != nil {
		if errors.Is(err, ErrInvalidImageSource) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidImageSource, err)
	}
	return CameraFrame{Image: img}, nil
}

// FileAcquirer reads an image file from disk.
type FileAcquirer struct {
	Path string
}

func (a FileAcquirer) Acquire(context.Context) (Source, error) {
	if a.Path == "" {
		return nil, fmt.Errorf("%w: no file selected", ErrInvalidImageSource)
	}
	return LoadFile(a.Path)
}

// BlobAcquirer hands over an already loaded file.
type BlobAcquirer struct {
	Blob FileBlob
}

func (a BlobAcquirer) Acquire(context.Context) (Source, error) {
	return a.Blob, nil
}

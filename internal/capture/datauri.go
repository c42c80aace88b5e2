package capture

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPayload is returned by ParseDataURI for payloads that are not valid base64 images.
var ErrInvalidPayload = errors.New("invalid image payload")

// ParseDataURI splits a canonical payload into media type and raw bytes.
// A bare base64 string without the "data:" prefix is accepted and reported
// with an empty media type.
func ParseDataURI(payload string) (string, []byte, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", nil, fmt.Errorf("%w: empty", ErrInvalidPayload)
	}

	mediaType := ""
	encoded := payload
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		header, body, found := strings.Cut(rest, ",")
		if !found {
			return "", nil, fmt.Errorf("%w: missing data separator", ErrInvalidPayload)
		}
		mt, isBase64 := strings.CutSuffix(header, ";base64")
		if !isBase64 {
			return "", nil, fmt.Errorf("%w: only base64 data URIs are supported", ErrInvalidPayload)
		}
		if !strings.HasPrefix(mt, "image/") {
			return "", nil, fmt.Errorf("%w: media type %q is not an image", ErrInvalidPayload, mt)
		}
		mediaType = mt
		encoded = body
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("%w: no image data", ErrInvalidPayload)
	}
	return mediaType, data, nil
}

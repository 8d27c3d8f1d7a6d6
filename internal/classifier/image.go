package classifier

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// decodeImage checks that data is a decodable image and wraps it for the
// model. Formats without a registered decoder (for example HEIC) are passed
// through as-is, since the model may still understand them.
func decodeImage(data []byte, mimeType string) (*Image, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image payload")
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	switch {
	case err == nil:
		if detected := "image/" + format; format != "" && detected != mimeType {
			mimeType = detected
		}
	case errors.Is(err, image.ErrFormat) && !decodableType(mimeType):
		// unknown to the stdlib registry; let the model decide
	default:
		return nil, fmt.Errorf("invalid %s data: %w", mimeType, err)
	}

	return &Image{MimeType: mimeType, Data: data}, nil
}

func decodableType(mimeType string) bool {
	switch mimeType {
	case "image/png", "image/jpeg", "image/gif", "image/bmp", "image/tiff", "image/webp":
		return true
	}
	return false
}

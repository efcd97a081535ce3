package llm

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// Image is raw image content exchanged with a model. Providers transport it
// as base64, either inline (Anthropic, Gemini) or wrapped in a data URL
// (OpenAI), so the bytes are kept unencoded until serialization.
type Image struct {
	Data     []byte
	MIMEType string
}

// NewImage wraps raw bytes with an explicit MIME type.
func NewImage(data []byte, mimeType string) *Image {
	return &Image{Data: data, MIMEType: mimeType}
}

// DetectImage wraps raw bytes, sniffing the MIME type from the content.
// Returns an error if the bytes are not a recognizable image.
func DetectImage(data []byte) (*Image, error) {
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("content type %q is not an image", mimeType)
	}
	return &Image{Data: data, MIMEType: mimeType}, nil
}

// LoadImage reads and sniffs an image file from disk.
func LoadImage(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	img, err := DetectImage(data)
	if err != nil {
		return nil, fmt.Errorf("reading image %s: %w", path, err)
	}
	return img, nil
}

// Base64 returns the standard-encoded image payload.
func (i *Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL returns the image as an RFC 2397 data URL.
func (i *Image) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", i.MIMEType, i.Base64())
}

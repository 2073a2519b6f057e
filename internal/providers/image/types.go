package image

import (
	"context"
	"encoding/base64"
	"path/filepath"
	"strings"
)

// InlineImage is an image sent by value to a provider.
type InlineImage struct {
	Filename string
	MIME     string
	Data     []byte
}

// DataURL encodes the image as a base64 data URL.
func (i InlineImage) DataURL() string {
	mime := i.MIME
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// VisionRequest asks a vision-capable chat model about one or more images.
type VisionRequest struct {
	System    string
	Prompt    string
	Images    []InlineImage
	MaxTokens int
}

// Output is a produced image, either hosted at URL or returned inline.
type Output struct {
	URL   string
	Data  []byte
	Model string
}

// Empty reports whether the provider returned nothing usable.
func (o Output) Empty() bool {
	return strings.TrimSpace(o.URL) == "" && len(o.Data) == 0
}

// EditRequest merges several reference images under a text instruction.
type EditRequest struct {
	Images   []InlineImage
	Prompt   string
	Size     string
	Fidelity string
}

// VisionClient answers free-text questions about images.
type VisionClient interface {
	Describe(ctx context.Context, req VisionRequest) (string, error)
}

// Generator renders an image from a prompt.
type Generator interface {
	GenerateImage(ctx context.Context, prompt string) (Output, error)
}

// Editor edits reference images under an instruction.
type Editor interface {
	EditImages(ctx context.Context, req EditRequest) (Output, error)
}

// Swapper transplants the face of target onto source and returns a result URL.
type Swapper interface {
	Swap(ctx context.Context, source, target InlineImage) (string, error)
}

// MIMEFromPath maps a file extension to the mime type providers expect.
// Unknown extensions are sent as JPEG.
func MIMEFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	default:
		return "image/jpeg"
	}
}

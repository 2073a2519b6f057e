package imagegen

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

const maskSigma = 15

// LocalBlend cross-fades the dog image into the face region of the human
// image without any network call. Level is used as the blend factor.
type LocalBlend struct {
	store ArtifactStore
}

func NewLocalBlend(store ArtifactStore) *LocalBlend {
	return &LocalBlend{store: store}
}

func (b *LocalBlend) Name() string { return "local_blend" }

func (b *LocalBlend) Composite(ctx context.Context, req CompositeRequest) (string, error) {
	human, err := b.decode(req.HumanPath)
	if err != nil {
		return "", fmt.Errorf("local blend: human: %w", err)
	}
	dog, err := b.decode(req.DogPath)
	if err != nil {
		return "", fmt.Errorf("local blend: dog head: %w", err)
	}
	out := BlendFaces(human, dog, float64(req.Level))
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return "", fmt.Errorf("local blend: encode: %w", err)
	}
	return b.store.WriteFrom(ctx, req.OutputPath, &buf)
}

func (b *LocalBlend) decode(key string) (image.Image, error) {
	data, err := b.store.Read(key)
	if err != nil {
		return nil, err
	}
	return imaging.Decode(bytes.NewReader(data))
}

// FaceBox is the assumed face region: 60% of the width and 40% of the
// height, centred horizontally, 10% from the top.
func FaceBox(bounds image.Rectangle) image.Rectangle {
	w, h := bounds.Dx(), bounds.Dy()
	fw, fh := int(float64(w)*0.6), int(float64(h)*0.4)
	x := (w - fw) / 2
	y := int(float64(h) * 0.1)
	return image.Rect(x, y, x+fw, y+fh)
}

// BlendFaces resizes dog to the human's size and mixes it into the face box
// at factor, feathered by a blurred elliptical mask.
func BlendFaces(human, dog image.Image, factor float64) *image.NRGBA {
	switch {
	case factor < 0:
		factor = 0
	case factor > 1:
		factor = 1
	}
	base := imaging.Clone(human)
	w, h := base.Rect.Dx(), base.Rect.Dy()
	scaled := imaging.Resize(dog, w, h, imaging.Lanczos)

	face := FaceBox(base.Rect)
	mask := faceMask(w, h, face)

	blended := imaging.Clone(base)
	for y := face.Min.Y; y < face.Max.Y; y++ {
		for x := face.Min.X; x < face.Max.X; x++ {
			i := blended.PixOffset(x, y)
			for c := 0; c < 4; c++ {
				hv := float64(base.Pix[i+c])
				dv := float64(scaled.Pix[i+c])
				blended.Pix[i+c] = uint8(hv*(1-factor) + dv*factor + 0.5)
			}
		}
	}

	out := imaging.Clone(base)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m := uint32(mask.Pix[mask.PixOffset(x, y)])
			if m == 0 {
				continue
			}
			i := out.PixOffset(x, y)
			for c := 0; c < 4; c++ {
				t := uint32(blended.Pix[i+c])
				hv := uint32(base.Pix[i+c])
				out.Pix[i+c] = uint8((t*m + hv*(255-m) + 127) / 255)
			}
		}
	}
	return out
}

// faceMask fills an ellipse around the padded face box and feathers it.
// The red channel of the result carries the mask value.
func faceMask(w, h int, face image.Rectangle) *image.NRGBA {
	pad := min(face.Dx(), face.Dy()) / 10
	x0, y0 := float64(face.Min.X-pad), float64(face.Min.Y-pad)
	x1, y1 := float64(face.Max.X+pad), float64(face.Max.Y+pad)
	cx, cy := (x0+x1)/2, (y0+y1)/2
	rx, ry := (x1-x0)/2, (y1-y0)/2

	mask := imaging.New(w, h, color.Black)
	for y := 0; y < h; y++ {
		dy := (float64(y) + 0.5 - cy) / ry
		for x := 0; x < w; x++ {
			dx := (float64(x) + 0.5 - cx) / rx
			if dx*dx+dy*dy <= 1 {
				i := mask.PixOffset(x, y)
				mask.Pix[i], mask.Pix[i+1], mask.Pix[i+2] = 255, 255, 255
			}
		}
	}
	return imaging.Blur(mask, maskSigma)
}

var _ Compositor = (*LocalBlend)(nil)

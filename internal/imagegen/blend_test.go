package imagegen

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"testing"
)

var (
	humanColor = color.NRGBA{R: 10, G: 120, B: 200, A: 255}
	dogColor   = color.NRGBA{R: 230, G: 180, B: 40, A: 255}
)

func TestFaceBox(t *testing.T) {
	got := FaceBox(image.Rect(0, 0, 400, 400))
	want := image.Rect(80, 40, 320, 200)
	if got != want {
		t.Fatalf("FaceBox = %v, want %v", got, want)
	}
}

func TestBlendFacesFactorZeroKeepsHuman(t *testing.T) {
	human := solidImage(400, 400, humanColor)
	out := BlendFaces(human, solidImage(400, 400, dogColor), 0)
	if !bytes.Equal(out.Pix, human.Pix) {
		t.Fatal("factor 0 changed human pixels")
	}
}

func TestBlendFacesFactorOneCoreIsDog(t *testing.T) {
	out := BlendFaces(solidImage(400, 400, humanColor), solidImage(200, 300, dogColor), 1)
	if got := out.NRGBAAt(200, 120); got != dogColor {
		t.Fatalf("core pixel = %v, want %v", got, dogColor)
	}
	if got := out.NRGBAAt(5, 395); got != humanColor {
		t.Fatalf("corner pixel = %v, want %v", got, humanColor)
	}
}

func TestBlendFacesHalfway(t *testing.T) {
	out := BlendFaces(solidImage(400, 400, humanColor), solidImage(400, 400, dogColor), 0.5)
	got := out.NRGBAAt(200, 120)
	want := color.NRGBA{R: 120, G: 150, B: 120, A: 255}
	if got != want {
		t.Fatalf("core pixel = %v, want %v", got, want)
	}
}

func TestBlendFacesDeterministic(t *testing.T) {
	human := solidImage(120, 90, humanColor)
	for y := 0; y < 90; y++ {
		human.SetNRGBA(y, y, color.NRGBA{R: uint8(y), A: 255})
	}
	dog := solidImage(64, 64, dogColor)
	a := BlendFaces(human, dog, 0.3)
	b := BlendFaces(human, dog, 0.3)
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Fatal("blend is not deterministic")
	}
}

func TestLocalBlendWritesPNG(t *testing.T) {
	store := newMemStore()
	store.put("h.png", solidPNG(64, 48, humanColor))
	store.put("d.png", solidPNG(32, 32, dogColor))
	blend := NewLocalBlend(store)
	path, err := blend.Composite(context.Background(), CompositeRequest{
		HumanPath: "h.png", DogPath: "d.png", Level: LevelSubtle, OutputPath: "out.png",
	})
	if err != nil {
		t.Fatalf("Composite error: %v", err)
	}
	data, _ := store.Read(path)
	img := mustDecode(t, data)
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
		t.Fatalf("bounds = %v, want 64x48", img.Bounds())
	}
}

func TestLocalBlendMissingInput(t *testing.T) {
	blend := NewLocalBlend(newMemStore())
	if _, err := blend.Composite(context.Background(), CompositeRequest{HumanPath: "h.png", DogPath: "d.png", OutputPath: "o.png"}); err == nil {
		t.Fatal("expected error for missing inputs")
	}
}

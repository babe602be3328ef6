package enhance

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/formscan/formscan/internal/config"
	"github.com/formscan/formscan/internal/types"
)

func testConfig() config.EnhanceConfig {
	return config.EnhanceConfig{
		CheckboxThreshold: 180,
		RadioThreshold:    200,
		Contrast:          1.0,
		RadioContrast:     2.0,
		DilateRadius:      1,
		EdgeBlend:         0.3,
	}
}

// testPage draws a simple page: white background, a black filled square
// (a ticked checkbox) and a mid-gray circleish blob (a light radio fill).
func testPage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	for y := 10; y < 20; y++ {
		for x := 10; x < 20; x++ {
			img.Set(x, y, color.Black)
		}
	}
	for y := 30; y < 40; y++ {
		for x := 30; x < 40; x++ {
			img.Set(x, y, color.Gray{Y: 190})
		}
	}
	return img
}

func allVariants() []types.RenderingVariant {
	return []types.RenderingVariant{
		types.VariantOriginal,
		types.VariantContrast,
		types.VariantBinarizedCheckbox,
		types.VariantBinarizedRadio,
		types.VariantEdgeEnhanced,
		types.VariantInverted,
	}
}

func TestVariantsProducesAllRequested(t *testing.T) {
	e := New(testConfig(), nil)
	names := allVariants()

	out, err := e.Variants(testPage(64, 64), 1, names)
	if err != nil {
		t.Fatalf("Variants: %v", err)
	}
	if len(out) != len(names) {
		t.Fatalf("got %d renderings, want %d", len(out), len(names))
	}
	for i, r := range out {
		if r.Variant != names[i] {
			t.Errorf("rendering %d variant = %s, want %s", i, r.Variant, names[i])
		}
		if r.Page != 1 {
			t.Errorf("rendering %d page = %d, want 1", i, r.Page)
		}
		if len(r.PNG) == 0 {
			t.Errorf("rendering %s has no data", r.Variant)
		}
	}
}

func TestVariantsPreserveGeometry(t *testing.T) {
	e := New(testConfig(), nil)
	out, err := e.Variants(testPage(48, 72), 3, allVariants())
	if err != nil {
		t.Fatalf("Variants: %v", err)
	}
	for _, r := range out {
		if r.Width != 48 || r.Height != 72 {
			t.Errorf("%s: got %dx%d, want 48x72", r.Variant, r.Width, r.Height)
		}
		img, err := Decode(r.PNG)
		if err != nil {
			t.Fatalf("decoding %s: %v", r.Variant, err)
		}
		b := img.Bounds()
		if b.Dx() != 48 || b.Dy() != 72 {
			t.Errorf("%s decoded: got %dx%d, want 48x72", r.Variant, b.Dx(), b.Dy())
		}
	}
}

func TestVariantsDeterministic(t *testing.T) {
	e := New(testConfig(), nil)
	page := testPage(64, 64)

	first, err := e.Variants(page, 1, allVariants())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := e.Variants(page, 1, allVariants())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	for i := range first {
		if !bytes.Equal(first[i].PNG, second[i].PNG) {
			t.Errorf("%s not deterministic", first[i].Variant)
		}
	}
}

func TestCheckboxVariantBinarizes(t *testing.T) {
	e := New(testConfig(), nil)
	out, err := e.Variants(testPage(64, 64), 1, []types.RenderingVariant{types.VariantBinarizedCheckbox})
	if err != nil {
		t.Fatalf("Variants: %v", err)
	}
	img, err := Decode(out[0].PNG)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Every pixel must end up pure black or pure white.
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if !((r == 0 && g == 0 && bl == 0) || (r == 0xffff && g == 0xffff && bl == 0xffff)) {
				t.Fatalf("pixel (%d,%d) not binarized: %v", x, y, img.At(x, y))
			}
		}
	}
}

func TestUnknownVariantRejected(t *testing.T) {
	e := New(testConfig(), nil)
	_, err := e.Variants(testPage(16, 16), 1, []types.RenderingVariant{"sepia"})
	if err == nil {
		t.Fatal("expected error for unknown variant")
	}
}

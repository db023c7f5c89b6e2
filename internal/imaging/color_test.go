package imaging

import (
	"image"
	"image/color"
	"testing"
)

// createInMemoryImage creates an in-memory test image
func createInMemoryImage(width, height int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// createPatternImage creates an image with different colors in each quadrant
func createPatternImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c color.NRGBA
			if x < width/2 && y < height/2 {
				c = color.NRGBA{255, 0, 0, 255} // Red top-left
			} else if x >= width/2 && y < height/2 {
				c = color.NRGBA{0, 255, 0, 255} // Green top-right
			} else if x < width/2 && y >= height/2 {
				c = color.NRGBA{0, 0, 255, 255} // Blue bottom-left
			} else {
				c = color.NRGBA{} // Transparent bottom-right
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestParseBackground(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  color.NRGBA
	}{
		{"scanner form", "FFFFFF", color.NRGBA{255, 255, 255, 255}},
		{"with hash", "#F0E0D0", color.NRGBA{0xF0, 0xE0, 0xD0, 255}},
		{"lowercase", "80ff40", color.NRGBA{0x80, 0xFF, 0x40, 255}},
		{"shorthand", "#fff", color.NRGBA{255, 255, 255, 255}},
		{"surrounding space", "  000000\n", color.NRGBA{0, 0, 0, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBackground(tt.input)
			if err != nil {
				t.Fatalf("ParseBackground(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseBackground(%q): got %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseBackground_Invalid(t *testing.T) {
	for _, input := range []string{"", "   ", "GGGGGG", "12345", "#1234567"} {
		if _, err := ParseBackground(input); err == nil {
			t.Errorf("ParseBackground(%q): expected error", input)
		}
	}
}

func TestHexColor(t *testing.T) {
	tests := []struct {
		color color.Color
		want  string
	}{
		{color.NRGBA{255, 128, 64, 255}, "#ff8040"},
		{color.NRGBA{0, 0, 0, 255}, "#000000"},
		{color.White, "#ffffff"},
	}

	for _, tt := range tests {
		if got := HexColor(tt.color); got != tt.want {
			t.Errorf("HexColor(%v): got %s, want %s", tt.color, got, tt.want)
		}
	}
}

func TestFlatten(t *testing.T) {
	img := createPatternImage(10, 10)
	bg := color.NRGBA{R: 0xF0, G: 0xE0, B: 0xD0, A: 255}

	flat := Flatten(img, bg)

	if got := flat.Bounds(); got != image.Rect(0, 0, 10, 10) {
		t.Errorf("bounds: got %v, want (0,0)-(10,10)", got)
	}
	if got := flat.NRGBAAt(1, 1); got != (color.NRGBA{255, 0, 0, 255}) {
		t.Errorf("opaque pixel: got %v, want red", got)
	}
	if got := flat.NRGBAAt(8, 8); got != bg {
		t.Errorf("transparent pixel: got %v, want background %v", got, bg)
	}

	// The source keeps its transparency.
	if a := img.NRGBAAt(8, 8).A; a != 0 {
		t.Errorf("input modified: alpha %d", a)
	}
}

func TestFlatten_ForcesOpaqueBackground(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))

	flat := Flatten(img, color.NRGBA{R: 10, G: 20, B: 30, A: 0})

	if got := flat.NRGBAAt(2, 2); got != (color.NRGBA{10, 20, 30, 255}) {
		t.Errorf("got %v, want opaque (10,20,30)", got)
	}
}

func TestFlatten_NonZeroOrigin(t *testing.T) {
	src := createPatternImage(20, 20)
	sub := src.SubImage(image.Rect(10, 0, 20, 10))

	flat := Flatten(sub, DefaultBackground)

	if got := flat.Bounds(); got != image.Rect(0, 0, 10, 10) {
		t.Errorf("bounds: got %v, want (0,0)-(10,10)", got)
	}
	if got := flat.NRGBAAt(0, 0); got != (color.NRGBA{0, 255, 0, 255}) {
		t.Errorf("pixel (0,0): got %v, want green", got)
	}
}

package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
)

// DefaultGridColor is the tile boundary color used when none is given.
var DefaultGridColor = color.NRGBA{R: 255, A: 255}

// DrawTileGrid draws tile boundaries over an image of one pyramid level.
//
// Lines are drawn every tileSize pixels in both directions. When labels is
// set, each cell is tagged with its "column,row" address in its top-left
// corner. The input is not modified.
func DrawTileGrid(img image.Image, tileSize int, labels bool, lineColor color.NRGBA) (*image.NRGBA, error) {
	if tileSize <= 0 {
		return nil, fmt.Errorf("tile size must be positive, got %d", tileSize)
	}

	result := imaging.Clone(img)
	bounds := result.Bounds()
	line := &image.Uniform{C: lineColor}

	for x := tileSize; x < bounds.Dx(); x += tileSize {
		draw.Draw(result, image.Rect(x, 0, x+1, bounds.Dy()), line, image.Point{}, draw.Over)
	}
	for y := tileSize; y < bounds.Dy(); y += tileSize {
		draw.Draw(result, image.Rect(0, y, bounds.Dx(), y+1), line, image.Point{}, draw.Over)
	}

	if labels {
		fg := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
		bg := color.NRGBA{A: 180}
		for row, y := 0, 0; y < bounds.Dy(); row, y = row+1, y+tileSize {
			for col, x := 0, 0; x < bounds.Dx(); col, x = col+1, x+tileSize {
				drawLabel(result, x+2, y+2, fmt.Sprintf("%d,%d", col, row), fg, bg)
			}
		}
	}

	return result, nil
}

// glyphs is a 3x5 pixel font covering tile addresses.
var glyphs = map[rune][]string{
	'0': {"111", "101", "101", "101", "111"},
	'1': {"010", "110", "010", "010", "111"},
	'2': {"111", "001", "111", "100", "111"},
	'3': {"111", "001", "111", "001", "111"},
	'4': {"101", "101", "111", "001", "001"},
	'5': {"111", "100", "111", "001", "111"},
	'6': {"111", "100", "111", "101", "111"},
	'7': {"111", "001", "001", "001", "001"},
	'8': {"111", "101", "111", "101", "111"},
	'9': {"111", "101", "111", "001", "111"},
	',': {"000", "000", "000", "010", "010"},
}

// drawLabel draws text on a filled box with its top-left corner at (x, y).
func drawLabel(img *image.NRGBA, x, y int, text string, fg, bg color.NRGBA) {
	const charWidth, labelHeight = 4, 7

	box := image.Rect(x-1, y-1, x+len(text)*charWidth, y+labelHeight).Intersect(img.Bounds())
	draw.Draw(img, box, &image.Uniform{C: bg}, image.Point{}, draw.Over)

	cx := x
	for _, ch := range text {
		for row, bits := range glyphs[ch] {
			for col, bit := range bits {
				p := image.Pt(cx+col, y+row)
				if bit == '1' && p.In(img.Bounds()) {
					img.SetNRGBA(p.X, p.Y, fg)
				}
			}
		}
		cx += charWidth
	}
}

package deepzoom

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// MaxLevelImageSide bounds the width and height accepted by LevelImage.
const MaxLevelImageSide = 8192

// LevelImage assembles a whole pyramid level from its tiles.
//
// Each tile is read with Tile, its overlap is cut away, and the remainder is
// pasted at (column*TileSize, row*TileSize). The result therefore shows
// exactly what a viewer displays at that level. Levels wider or taller than
// MaxLevelImageSide are rejected.
func (g *Generator) LevelImage(level int) (*image.NRGBA, error) {
	if err := g.checkLevel(level); err != nil {
		return nil, err
	}
	dims := g.zDimensions[level]
	if dims.X > MaxLevelImageSide || dims.Y > MaxLevelImageSide {
		return nil, fmt.Errorf("level %d is %dx%d, larger than %d pixels per side",
			level, dims.X, dims.Y, MaxLevelImageSide)
	}

	canvas := imaging.New(dims.X, dims.Y, color.NRGBA{})
	tiles := g.tDimensions[level]
	for row := 0; row < tiles.Y; row++ {
		for col := 0; col < tiles.X; col++ {
			tile, err := g.Tile(level, image.Pt(col, row))
			if err != nil {
				return nil, err
			}
			own, outer := g.tileBounds(level, image.Pt(col, row))
			inner := own.Sub(outer.Min)
			canvas = imaging.Paste(canvas, imaging.Crop(tile, inner), own.Min)
		}
	}
	return canvas, nil
}

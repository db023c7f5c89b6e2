// Package export writes a DeepZoom pyramid to disk in the layout static
// viewers such as OpenSeadragon load directly:
//
//	<dir>/<name>.dzi
//	<dir>/<name>_files/<level>/<column>_<row>.<format>
//
// Tiles are encoded by a bounded pool of workers; the region reads behind
// them are serialized by the slide handle.
package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/slide-tiles-mcp/internal/deepzoom"
	"github.com/ironsheep/slide-tiles-mcp/internal/imaging"
	"github.com/ironsheep/slide-tiles-mcp/internal/logging"
)

// Options configures Export.
type Options struct {
	// Format is the tile format: jpeg, png or bmp. Defaults to jpeg.
	Format string

	// Quality is the JPEG quality. Out of range values use the encoder
	// default.
	Quality int

	// Workers bounds the number of tiles in flight. Defaults to the number
	// of CPUs.
	Workers int

	// Progress, if set, is called after each tile is written with the
	// number of tiles done so far. It may be called from several
	// goroutines.
	Progress func(done, total int)
}

// Result summarizes a finished export.
type Result struct {
	// Descriptor is the path of the written .dzi file.
	Descriptor string `json:"descriptor"`

	// Levels is the number of level directories written.
	Levels int `json:"levels"`

	// Tiles is the number of tile files written.
	Tiles int `json:"tiles"`

	// Bytes is the total size of the tile files.
	Bytes int64 `json:"bytes"`
}

// Export writes every tile of gen and its descriptor under dir.
//
// The first failing tile cancels the remaining work and its error is
// returned; files already written are left in place. Cancelling ctx stops
// the export between tiles.
func Export(ctx context.Context, gen *deepzoom.Generator, dir, name string, opts Options) (*Result, error) {
	if name == "" {
		return nil, fmt.Errorf("export name must not be empty")
	}
	if opts.Format == "" {
		opts.Format = imaging.FormatJPEG
	}
	format, err := imaging.NormalizeFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	start := time.Now()
	tilesDir := filepath.Join(dir, name+"_files")
	levelTiles := gen.LevelTiles()
	for level := range levelTiles {
		if err := os.MkdirAll(filepath.Join(tilesDir, strconv.Itoa(level)), 0755); err != nil {
			return nil, fmt.Errorf("failed to create level directory: %w", err)
		}
	}

	dzi, err := gen.DZI(format)
	if err != nil {
		return nil, err
	}
	dziPath := filepath.Join(dir, name+".dzi")
	if err := os.WriteFile(dziPath, []byte(dzi), 0644); err != nil {
		return nil, fmt.Errorf("failed to write descriptor: %w", err)
	}

	total := gen.TileCount()
	bg := gen.Background()
	var done atomic.Int64
	var written atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

schedule:
	for level, tiles := range levelTiles {
		level := level
		logging.Debugf("exporting level %d: %dx%d tiles", level, tiles.X, tiles.Y)
		for row := 0; row < tiles.Y; row++ {
			for col := 0; col < tiles.X; col++ {
				if gctx.Err() != nil {
					break schedule
				}
				address := image.Pt(col, row)
				g.Go(func() error {
					if err := gctx.Err(); err != nil {
						return err
					}
					tile, err := gen.Tile(level, address)
					if err != nil {
						return fmt.Errorf("tile %d/%d_%d: %w", level, address.X, address.Y, err)
					}
					var buf bytes.Buffer
					if err := imaging.Encode(&buf, tile, format, opts.Quality, bg); err != nil {
						return fmt.Errorf("tile %d/%d_%d: %w", level, address.X, address.Y, err)
					}
					path := filepath.Join(tilesDir, strconv.Itoa(level), fmt.Sprintf("%d_%d.%s", address.X, address.Y, format))
					if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
						return fmt.Errorf("failed to write tile: %w", err)
					}
					written.Add(int64(buf.Len()))
					n := done.Add(1)
					if opts.Progress != nil {
						opts.Progress(int(n), total)
					}
					return nil
				})
			}
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	// Scheduling may have stopped on a cancelled parent before any tile failed.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{
		Descriptor: dziPath,
		Levels:     len(levelTiles),
		Tiles:      int(done.Load()),
		Bytes:      written.Load(),
	}
	logging.Infof("exported %s tiles in %d levels (%s) to %s in %s",
		humanize.Comma(int64(res.Tiles)), res.Levels, humanize.Bytes(uint64(res.Bytes)),
		dir, time.Since(start).Round(time.Millisecond))
	return res, nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/ironsheep/slide-tiles-mcp/internal/config"
	"github.com/ironsheep/slide-tiles-mcp/internal/deepzoom"
	"github.com/ironsheep/slide-tiles-mcp/internal/export"
	"github.com/ironsheep/slide-tiles-mcp/internal/logging"
	"github.com/ironsheep/slide-tiles-mcp/internal/server"
	"github.com/ironsheep/slide-tiles-mcp/internal/slide"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("slide-tiles-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printUsage(os.Stdout)
			return
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	closeLog, err := logging.Setup(logging.Options{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		MaxSize: cfg.Log.MaxSize,
		MaxAge:  cfg.Log.MaxAge,
	})
	if err != nil {
		log.Fatalf("Logging error: %v", err)
	}
	defer closeLog()

	if len(os.Args) > 1 && os.Args[1] == "export" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		err := runExport(ctx, os.Args[2:], cfg, os.Stderr)
		stop()
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		if err != nil {
			closeLog()
			log.Fatalf("Export failed: %v", err)
		}
		return
	}

	logging.Debugf("Slide MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)

	srv := server.New(cfg, Version)
	defer srv.Close()
	if err := srv.Run(); err != nil {
		closeLog()
		log.Fatalf("Server error: %v", err)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "slide-tiles-mcp - MCP server for whole-slide images and DeepZoom tiles")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  slide-tiles-mcp [options]                      Run the MCP server on stdin/stdout")
	fmt.Fprintln(w, "  slide-tiles-mcp export [flags] <slide> <outdir> Write a DeepZoom pyramid to disk")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  --version, -v    Print version information")
	fmt.Fprintln(w, "  --help, -h       Print this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment variables:")
	fmt.Fprintf(w, "  %s=<file>      YAML or TOML configuration file\n", config.EnvConfig)
	fmt.Fprintf(w, "  %s=debug    Enable debug logging\n", config.EnvLogLevel)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'slide-tiles-mcp export -h' for export flags.")
	fmt.Fprintln(w, "The server communicates via MCP protocol over stdin/stdout.")
	fmt.Fprintln(w, "Configure it in your MCP client (e.g., Claude Desktop).")
}

// runExport implements the export subcommand. Flag defaults come from cfg.
func runExport(ctx context.Context, args []string, cfg *config.Config, stderr io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: slide-tiles-mcp export [flags] <slide> <outdir>")
		fmt.Fprintln(stderr)
		fs.PrintDefaults()
	}

	name := fs.String("name", "", "descriptor base name (default: slide file name without extension)")
	tileSize := fs.Int("tile-size", cfg.DeepZoom.TileSize, "tile edge length in pixels, excluding overlap")
	overlap := fs.Int("overlap", cfg.DeepZoom.Overlap, "extra pixels on each interior tile edge")
	limitBounds := fs.Bool("limit-bounds", cfg.DeepZoom.LimitBounds, "restrict the pyramid to the slide's non-empty bounds")
	format := fs.String("format", cfg.DeepZoom.Format, "tile format: jpeg, png or bmp")
	quality := fs.Int("quality", cfg.DeepZoom.Quality, "JPEG quality, 1-100")
	workers := fs.Int("workers", cfg.Export.Workers, "tiles encoded in parallel")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return fmt.Errorf("export needs a slide and an output directory, got %d arguments", fs.NArg())
	}
	path, outDir := fs.Arg(0), fs.Arg(1)
	if *name == "" {
		*name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	s, err := slide.Open(path)
	if err != nil {
		return err
	}
	defer s.Close()

	gen, err := deepzoom.New(s, deepzoom.Options{
		TileSize:    *tileSize,
		Overlap:     *overlap,
		LimitBounds: *limitBounds,
	})
	if err != nil {
		return err
	}
	logging.Infof("%s: %d levels, %d tiles", gen, gen.LevelCount(), gen.TileCount())

	_, err = export.Export(ctx, gen, outDir, *name, export.Options{
		Format:   *format,
		Quality:  *quality,
		Workers:  *workers,
		Progress: progressLogger(gen.TileCount()),
	})
	return err
}

// progressLogger logs every tenth of the way through an export.
func progressLogger(tiles int) func(done, total int) {
	step := max(1, tiles/10)
	return func(done, total int) {
		if done%step == 0 || done == total {
			logging.Infof("exported %d/%d tiles (%d%%)", done, total, done*100/total)
		}
	}
}

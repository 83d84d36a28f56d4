package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/ryoh827/imgmeta/internal/metadata"
	"github.com/ryoh827/imgmeta/internal/orientation"
	"github.com/ryoh827/imgmeta/internal/source"
)

type config struct {
	input     string
	output    string
	fileType  string
	enableXMP bool
	pretty    bool
	orient    bool
	debug     bool
	timeout   time.Duration
	maxBytes  int64
}

func main() {
	var cfg config
	flag.StringVar(&cfg.input, "input", "", "path, http(s) URL or data URI of the image")
	flag.StringVar(&cfg.output, "output", "", "where to write the oriented image (with -orient)")
	flag.StringVar(&cfg.fileType, "file-type", metadata.DefaultFileType, "MIME type of the oriented image")
	flag.BoolVar(&cfg.enableXMP, "xmp", false, "decode the XMP packet")
	flag.BoolVar(&cfg.pretty, "pretty", false, "print EXIF tags as text instead of JSON")
	flag.BoolVar(&cfg.orient, "orient", false, "write the image rotated upright to -output")
	flag.BoolVar(&cfg.debug, "debug", false, "log skipped tags and blocks")
	flag.DurationVar(&cfg.timeout, "timeout", 30*time.Second, "time limit for loading the image")
	flag.Int64Var(&cfg.maxBytes, "max-bytes", source.DefaultMaxBytes, "largest image accepted over http")
	flag.Parse()

	if cfg.input == "" {
		fmt.Fprintln(os.Stderr, "--input is required")
		os.Exit(1)
	}
	if cfg.orient && cfg.output == "" {
		fmt.Fprintln(os.Stderr, "--output is required with --orient")
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "imgmeta: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	opts := metadata.Options{
		EnableXMP: cfg.enableXMP,
		FileType:  cfg.fileType,
		Logger:    logger,
	}
	src := source.Router{
		File:    source.FileSource{},
		HTTP:    source.HTTPSource{Client: &http.Client{Timeout: cfg.timeout}, MaxBytes: cfg.maxBytes},
		DataURI: source.DataURISource{},
	}

	var md *metadata.ImageMetadata
	if cfg.orient {
		img, err := orientation.Renderer{Source: src, Options: opts}.Orient(ctx, cfg.input)
		if err != nil {
			return fmt.Errorf("orient image: %w", err)
		}
		if err := os.WriteFile(cfg.output, img.Data, 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		logger.Info("wrote image",
			slog.String("path", cfg.output),
			slog.Int("width", img.Width),
			slog.Int("height", img.Height),
			slog.Bool("rotated", img.Rendered),
		)
		md = img.Metadata
	} else {
		var err error
		_, md, err = metadata.ExtractSource(ctx, src, cfg.input, opts)
		if err != nil {
			if errors.Is(err, source.ErrInvalidImageFormat) {
				return fmt.Errorf("unsupported input %q: %w", cfg.input, err)
			}
			return fmt.Errorf("failed to extract metadata: %w", err)
		}
	}

	if warnings := md.Warnings(); warnings != nil {
		logger.Warn("metadata partially decoded", slog.Any("error", warnings))
	}

	if cfg.pretty {
		fmt.Print(md.Pretty())
		return nil
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(md); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}

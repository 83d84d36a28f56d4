// Package metadata assembles the EXIF, IPTC and XMP content of a JPEG into a
// single result.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/ryoh827/imgmeta/internal/exif"
	"github.com/ryoh827/imgmeta/internal/iptc"
	"github.com/ryoh827/imgmeta/internal/jpeg"
	"github.com/ryoh827/imgmeta/internal/source"
	"github.com/ryoh827/imgmeta/internal/xmp"
)

// Extract decodes the metadata of a JPEG buffer. It fails only when data is
// not a JPEG; an EXIF, IPTC or XMP block that cannot be decoded is left empty
// and reported by Warnings. The returned metadata does not retain data except
// for the thumbnail bytes.
func Extract(data []byte, opts Options) (*ImageMetadata, error) {
	if err := jpeg.CheckSOI(data); err != nil {
		return nil, err
	}

	logger := opts.logger()
	md := &ImageMetadata{
		EXIF: exif.Directory{},
		IPTC: iptc.Fields{},
	}

	var warnings error
	if err := md.readEXIF(data, logger); err != nil {
		logger.Debug("exif not decoded", slog.Any("error", err))
		warnings = multierror.Append(warnings, multierror.Prefix(err, "exif:"))
	}
	if err := md.readIPTC(data); err != nil {
		logger.Debug("iptc not decoded", slog.Any("error", err))
		warnings = multierror.Append(warnings, multierror.Prefix(err, "iptc:"))
	}
	if opts.EnableXMP {
		if err := md.readXMP(data, logger); err != nil {
			logger.Debug("xmp not decoded", slog.Any("error", err))
			warnings = multierror.Append(warnings, multierror.Prefix(err, "xmp:"))
		}
	}
	md.warnings = warnings

	return md, nil
}

// ExtractSource loads the image referenced by ref and extracts its metadata.
// It returns the loaded bytes alongside the metadata.
func ExtractSource(ctx context.Context, src source.Source, ref string, opts Options) ([]byte, *ImageMetadata, error) {
	data, err := source.Load(ctx, src, ref)
	if err != nil {
		return nil, nil, err
	}

	md, err := Extract(data, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("extract %s: %w", ref, err)
	}
	return data, md, nil
}

func (md *ImageMetadata) readEXIF(data []byte, logger *slog.Logger) error {
	start, found, err := jpeg.FindExif(data)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	result, err := exif.Decode(data, start, logger)
	if err != nil {
		return err
	}
	md.EXIF = result.Tags
	md.Thumbnail = result.Thumbnail
	return result.Warnings
}

func (md *ImageMetadata) readIPTC(data []byte) error {
	r, found, err := jpeg.FindIRB(data)
	if err != nil || !found {
		return err
	}

	fields, err := iptc.Decode(data, r)
	if err != nil {
		return err
	}
	md.IPTC = fields
	return nil
}

func (md *ImageMetadata) readXMP(data []byte, logger *slog.Logger) error {
	packet, err := xmp.Decode(data, logger)
	if errors.Is(err, xmp.ErrNoPacket) {
		return nil
	}
	if err != nil {
		return err
	}
	md.XMP = packet
	return nil
}

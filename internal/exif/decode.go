// Package exif decodes the TIFF structure carried by a JPEG APP1 "Exif"
// segment into named tag values.
package exif

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/ryoh827/imgmeta/internal/cursor"
	"github.com/ryoh827/imgmeta/internal/tags"
)

const (
	typeByte      = 1
	typeASCII     = 2
	typeShort     = 3
	typeLong      = 4
	typeRational  = 5
	typeUndefined = 7
	typeSLong     = 9
	typeSRational = 10

	exifHeaderLength = 6
	tiffIdentifier   = 0x002A
	entrySize        = 12
	minFirstIFD      = 8
)

var (
	ErrNotExifData           = errors.New("not exif data")
	ErrUnknownByteOrder      = errors.New("unknown tiff byte order")
	ErrInvalidTiffMagic      = errors.New("invalid tiff magic")
	ErrInvalidFirstIfdOffset = errors.New("invalid first ifd offset")

	errUnsupportedType = errors.New("unsupported field type")
)

var exifSignature = []byte("Exif")

// Result is the outcome of decoding one Exif payload.
type Result struct {
	// Tags merges IFD0 with the Exif and GPS sub-directories.
	Tags      Directory
	Thumbnail *Thumbnail
	// Warnings aggregates the sub-directories that were dropped.
	Warnings error
}

type decoder struct {
	cur       cursor.Cursor
	order     binary.ByteOrder
	tiffStart int
	logger    *slog.Logger
}

// Decode validates the Exif and TIFF headers found at start and decodes IFD0,
// its Exif and GPS sub-directories and the IFD1 thumbnail. Only header
// failures and an unreadable IFD0 are returned as errors; tags and
// sub-directories that cannot be read are dropped.
func Decode(data []byte, start int, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := cursor.New(data)
	if !c.HasPrefix(start, exifSignature) {
		return Result{}, fmt.Errorf("%w at offset %d", ErrNotExifData, start)
	}

	tiffStart := start + exifHeaderLength
	mark, err := c.Uint16(tiffStart, binary.BigEndian)
	if err != nil {
		return Result{}, fmt.Errorf("read byte order: %w", err)
	}

	var order binary.ByteOrder
	switch mark {
	case 0x4949:
		order = binary.LittleEndian
	case 0x4D4D:
		order = binary.BigEndian
	default:
		return Result{}, fmt.Errorf("%w: %#04x", ErrUnknownByteOrder, mark)
	}

	magic, err := c.Uint16(tiffStart+2, order)
	if err != nil {
		return Result{}, fmt.Errorf("read tiff magic: %w", err)
	}
	if magic != tiffIdentifier {
		return Result{}, fmt.Errorf("%w: %#04x", ErrInvalidTiffMagic, magic)
	}

	firstIFD, err := c.Uint32(tiffStart+4, order)
	if err != nil {
		return Result{}, fmt.Errorf("read first ifd offset: %w", err)
	}
	if firstIFD < minFirstIFD {
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidFirstIfdOffset, firstIFD)
	}

	d := decoder{cur: c, order: order, tiffStart: tiffStart, logger: logger}

	ifd0, err := d.abs(firstIFD)
	if err != nil {
		return Result{}, fmt.Errorf("ifd0: %w", err)
	}
	dir, err := d.readTags(ifd0, tags.TIFF)
	if err != nil {
		return Result{}, fmt.Errorf("ifd0: %w", err)
	}

	result := Result{Tags: dir}

	if ptr, ok := dir["ExifIFDPointer"].(Uint); ok && ptr != 0 {
		sub, err := d.readSubIFD(uint32(ptr), tags.EXIF)
		if err != nil {
			result.Warnings = multierror.Append(result.Warnings, fmt.Errorf("exif ifd: %w", err))
		} else {
			normalizeExif(sub)
			merge(dir, sub)
		}
	}

	if ptr, ok := dir["GPSInfoIFDPointer"].(Uint); ok && ptr != 0 {
		sub, err := d.readSubIFD(uint32(ptr), tags.GPS)
		if err != nil {
			result.Warnings = multierror.Append(result.Warnings, fmt.Errorf("gps ifd: %w", err))
		} else {
			normalizeGPS(sub)
			merge(dir, sub)
		}
	}

	thumb, err := d.readThumbnail(ifd0)
	if err != nil {
		result.Warnings = multierror.Append(result.Warnings, fmt.Errorf("ifd1: %w", err))
	}
	result.Thumbnail = thumb

	return result, nil
}

func (d decoder) readSubIFD(rel uint32, table tags.Table) (Directory, error) {
	start, err := d.abs(rel)
	if err != nil {
		return nil, err
	}
	return d.readTags(start, table)
}

// abs converts an offset relative to the TIFF header into a buffer offset.
func (d decoder) abs(rel uint32) (int, error) {
	off := int64(d.tiffStart) + int64(rel)
	if off > int64(d.cur.Len()) {
		return 0, fmt.Errorf("%w: offset %d length %d", cursor.ErrOutOfBounds, off, d.cur.Len())
	}
	return int(off), nil
}

// readTags decodes the directory at dirStart. Entries whose code is not in
// table, or whose value cannot be read, are skipped.
func (d decoder) readTags(dirStart int, table tags.Table) (Directory, error) {
	count, err := d.cur.Uint16(dirStart, d.order)
	if err != nil {
		return nil, fmt.Errorf("read entry count: %w", err)
	}
	if _, err := d.cur.Slice(dirStart+2, int(count)*entrySize); err != nil {
		return nil, fmt.Errorf("read %d entries: %w", count, err)
	}

	dir := make(Directory, count)
	for i := 0; i < int(count); i++ {
		entry := dirStart + 2 + i*entrySize
		code, _ := d.cur.Uint16(entry, d.order)

		name, ok := table.Lookup(code)
		if !ok {
			continue
		}

		value, err := d.readValue(entry)
		if err != nil {
			d.logger.Debug("skip exif tag", slog.String("tag", name), slog.Any("error", err))
			continue
		}
		dir[name] = value
	}

	return dir, nil
}

func (d decoder) readValue(entry int) (Value, error) {
	fieldType, _ := d.cur.Uint16(entry+2, d.order)
	count, _ := d.cur.Uint32(entry+4, d.order)

	switch fieldType {
	case typeByte, typeUndefined:
		if count == 1 {
			b, err := d.cur.Uint8(entry + 8)
			return Uint(b), err
		}
		raw, err := d.values(entry, count, 1)
		if err != nil {
			return nil, err
		}
		return Bytes(bytes.Clone(raw)), nil

	case typeASCII:
		raw, err := d.values(entry, count, 1)
		if err != nil {
			return nil, err
		}
		if len(raw) == 0 {
			return String(""), nil
		}
		// count includes the terminating NUL
		return String(cursor.Latin1(raw[:len(raw)-1])), nil

	case typeShort:
		if count == 1 {
			v, err := d.cur.Uint16(entry+8, d.order)
			return Uint(v), err
		}
		raw, err := d.values(entry, count, 2)
		if err != nil {
			return nil, err
		}
		out := make(Uints, count)
		for i := range out {
			out[i] = uint32(d.order.Uint16(raw[2*i:]))
		}
		return out, nil

	case typeLong:
		if count == 1 {
			v, err := d.cur.Uint32(entry+8, d.order)
			return Uint(v), err
		}
		raw, err := d.values(entry, count, 4)
		if err != nil {
			return nil, err
		}
		out := make(Uints, count)
		for i := range out {
			out[i] = d.order.Uint32(raw[4*i:])
		}
		return out, nil

	case typeSLong:
		if count == 1 {
			v, err := d.cur.Int32(entry+8, d.order)
			return Int(v), err
		}
		raw, err := d.values(entry, count, 4)
		if err != nil {
			return nil, err
		}
		out := make(Ints, count)
		for i := range out {
			out[i] = int32(d.order.Uint32(raw[4*i:]))
		}
		return out, nil

	case typeRational:
		raw, err := d.values(entry, count, 8)
		if err != nil {
			return nil, err
		}
		out := make(Rationals, count)
		for i := range out {
			out[i] = newRational(d.order.Uint32(raw[8*i:]), d.order.Uint32(raw[8*i+4:]))
		}
		if count == 1 {
			return out[0], nil
		}
		return out, nil

	case typeSRational:
		raw, err := d.values(entry, count, 8)
		if err != nil {
			return nil, err
		}
		out := make(Floats, count)
		for i := range out {
			numerator := int32(d.order.Uint32(raw[8*i:]))
			denominator := int32(d.order.Uint32(raw[8*i+4:]))
			out[i] = float64(numerator) / float64(denominator)
		}
		if count == 1 {
			return Float(out[0]), nil
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: %d", errUnsupportedType, fieldType)
	}
}

// values returns the count*size bytes of an entry's value. Values of up to
// four bytes live in the entry itself; larger ones are referenced by an
// offset relative to the TIFF header.
func (d decoder) values(entry int, count uint32, size uint64) ([]byte, error) {
	total := uint64(count) * size
	if total > uint64(d.cur.Len()) {
		return nil, fmt.Errorf("%w: %d values of %d bytes", cursor.ErrOutOfBounds, count, size)
	}
	if total <= 4 {
		return d.cur.Slice(entry+8, int(total))
	}

	rel, err := d.cur.Uint32(entry+8, d.order)
	if err != nil {
		return nil, err
	}
	off, err := d.abs(rel)
	if err != nil {
		return nil, err
	}
	return d.cur.Slice(off, int(total))
}

func merge(dst, src Directory) {
	for name, value := range src {
		dst[name] = value
	}
}

// Package cursor provides a bounds-checked view over a byte buffer.
package cursor

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/text/encoding/charmap"
)

var ErrOutOfBounds = errors.New("read out of bounds")

// Cursor reads fixed-width values at arbitrary offsets of a borrowed buffer.
// It never copies the buffer and never reads past its end.
type Cursor struct {
	buf []byte
}

func New(buf []byte) Cursor {
	return Cursor{buf: buf}
}

func (c Cursor) Len() int {
	return len(c.buf)
}

// Bytes returns the underlying buffer.
func (c Cursor) Bytes() []byte {
	return c.buf
}

func (c Cursor) check(offset, width int) error {
	if offset < 0 || width < 0 || offset > len(c.buf) || width > len(c.buf)-offset {
		return fmt.Errorf("%w: offset %d width %d length %d", ErrOutOfBounds, offset, width, len(c.buf))
	}
	return nil
}

func (c Cursor) Uint8(offset int) (uint8, error) {
	if err := c.check(offset, 1); err != nil {
		return 0, err
	}
	return c.buf[offset], nil
}

func (c Cursor) Uint16(offset int, order binary.ByteOrder) (uint16, error) {
	if err := c.check(offset, 2); err != nil {
		return 0, err
	}
	return order.Uint16(c.buf[offset:]), nil
}

func (c Cursor) Int16(offset int, order binary.ByteOrder) (int16, error) {
	v, err := c.Uint16(offset, order)
	return int16(v), err
}

func (c Cursor) Uint32(offset int, order binary.ByteOrder) (uint32, error) {
	if err := c.check(offset, 4); err != nil {
		return 0, err
	}
	return order.Uint32(c.buf[offset:]), nil
}

func (c Cursor) Int32(offset int, order binary.ByteOrder) (int32, error) {
	v, err := c.Uint32(offset, order)
	return int32(v), err
}

// Slice returns the window [offset, offset+length) without copying.
func (c Cursor) Slice(offset, length int) ([]byte, error) {
	if err := c.check(offset, length); err != nil {
		return nil, err
	}
	return c.buf[offset : offset+length : offset+length], nil
}

// String decodes length bytes as Latin-1: every byte becomes the code point of
// the same value, so ASCII signatures compare as written. A negative length
// yields the empty string.
func (c Cursor) String(offset, length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	raw, err := c.Slice(offset, length)
	if err != nil {
		return "", err
	}
	return Latin1(raw), nil
}

// HasPrefix reports whether sig occurs at offset.
func (c Cursor) HasPrefix(offset int, sig []byte) bool {
	raw, err := c.Slice(offset, len(sig))
	return err == nil && bytes.Equal(raw, sig)
}

// Index returns the first offset >= from where sig occurs, or -1.
func (c Cursor) Index(from int, sig []byte) int {
	if from < 0 || from > len(c.buf) {
		return -1
	}
	i := bytes.Index(c.buf[from:], sig)
	if i < 0 {
		return -1
	}
	return from + i
}

// Latin1 converts ISO 8859-1 bytes to a Go string.
func Latin1(raw []byte) string {
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		// every byte is a valid ISO 8859-1 code point
		return string(raw)
	}
	return string(decoded)
}

// Package iptc decodes the IPTC application record carried in a Photoshop
// image resource block.
package iptc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/ryoh827/imgmeta/internal/cursor"
	"github.com/ryoh827/imgmeta/internal/jpeg"
	"github.com/ryoh827/imgmeta/internal/tags"
)

const (
	tagMarker         = 0x1C
	applicationRecord = 0x02
)

// Fields maps a field name to its values in encounter order. A field seen
// once encodes to JSON as a string, a repeated field as an array.
type Fields map[string][]string

// Get returns the first value of name.
func (f Fields) Get(name string) (string, bool) {
	values := f[name]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func (f Fields) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(f))
	for name, values := range f {
		if len(values) == 1 {
			out[name] = values[0]
			continue
		}
		out[name] = values
	}
	return json.Marshal(out)
}

// Decode scans r one byte at a time for 1C 02 dataset markers. Datasets with
// a known number are decoded as Latin-1 text of the signed 16-bit size that
// follows; a negative size yields the empty string. A read past the end of
// data discards everything decoded so far.
func Decode(data []byte, r jpeg.Range) (Fields, error) {
	c := cursor.New(data)
	fields := Fields{}

	for pos := r.Start; pos < r.Start+r.Length; pos++ {
		marker, err := c.Uint8(pos)
		if err != nil {
			return Fields{}, fmt.Errorf("iptc record at %d: %w", pos, err)
		}
		if marker != tagMarker {
			continue
		}
		record, err := c.Uint8(pos + 1)
		if err != nil {
			return Fields{}, fmt.Errorf("iptc record at %d: %w", pos, err)
		}
		if record != applicationRecord {
			continue
		}

		dataset, err := c.Uint8(pos + 2)
		if err != nil {
			return Fields{}, fmt.Errorf("iptc dataset at %d: %w", pos, err)
		}
		name, ok := tags.IPTCFields[dataset]
		if !ok {
			continue
		}

		size, err := c.Int16(pos+3, binary.BigEndian)
		if err != nil {
			return Fields{}, fmt.Errorf("iptc %s size: %w", name, err)
		}
		value, err := c.String(pos+5, int(size))
		if err != nil {
			return Fields{}, fmt.Errorf("iptc %s value: %w", name, err)
		}

		fields[name] = append(fields[name], value)
	}

	return fields, nil
}

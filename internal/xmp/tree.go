package xmp

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const textKey = "#text"

type element struct {
	name     string
	attrs    []xml.Attr
	children []*element
	text     strings.Builder
}

// parse builds the element tree with prefixes kept verbatim, so "tiff:Make"
// stays "tiff:Make" whatever URI the prefix is bound to.
func parse(packet string) (*element, error) {
	dec := xml.NewDecoder(strings.NewReader(packet))

	var (
		root  *element
		stack []*element
	)
	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch tok := tok.(type) {
		case xml.StartElement:
			e := &element{name: qualified(tok.Name), attrs: append([]xml.Attr(nil), tok.Attr...)}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, e)
			} else if root != nil {
				return nil, fmt.Errorf("second root element %q", e.name)
			} else {
				root = e
			}
			stack = append(stack, e)

		case xml.EndElement:
			name := qualified(tok.Name)
			if len(stack) == 0 || stack[len(stack)-1].name != name {
				return nil, fmt.Errorf("unexpected end element %q", name)
			}
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(tok)
			}
		}
	}

	if len(stack) > 0 {
		return nil, fmt.Errorf("element %q is not closed", stack[len(stack)-1].name)
	}
	if root == nil {
		return nil, errors.New("empty document")
	}
	return root, nil
}

// value converts e into a string when it has neither attributes nor child
// elements, and into a map otherwise. Attributes and children share the map;
// a repeated key becomes a []any in document order.
func (e *element) value() any {
	if len(e.attrs) == 0 && len(e.children) == 0 {
		return e.text.String()
	}

	m := make(map[string]any, len(e.attrs)+len(e.children))
	for _, attr := range e.attrs {
		add(m, qualified(attr.Name), attr.Value)
	}
	for _, child := range e.children {
		add(m, child.name, child.value())
	}
	if text := strings.TrimSpace(e.text.String()); text != "" {
		add(m, textKey, text)
	}
	return m
}

func add(m map[string]any, key string, v any) {
	existing, ok := m[key]
	if !ok {
		m[key] = v
		return
	}
	if list, ok := existing.([]any); ok {
		m[key] = append(list, v)
		return
	}
	m[key] = []any{existing, v}
}

func qualified(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}

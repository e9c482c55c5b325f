// Package xmlview reads a single project file into an element tree annotated
// with precise source ranges.
//
// Why not a third-party XML library?
//
// The rest of the system needs exact line/column spans for every element so
// editor features can map positions back to declarations. The tree-shaped XML
// libraries in the ecosystem discard position information during decoding, so
// this package drives encoding/xml's token stream directly and records the
// decoder position around every start and end tag. The resulting ranges use
// hcl.Range, which the whole codebase shares as its span type.
package xmlview

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
)

// Element is a single XML element: tag, attributes, direct text content and
// the source range from the opening '<' to the closing '>'.
type Element struct {
	Tag      string
	Attrs    map[string]string
	Text     string
	Range    hcl.Range
	Parent   *Element
	Children []*Element
}

// Attr returns the value of the named attribute and whether it was present.
func (e *Element) Attr(name string) (string, bool) {
	v, ok := e.Attrs[name]
	return v, ok
}

// Document is the parsed form of one project file.
type Document struct {
	Path string
	Root *Element
}

// ParseFile reads and parses the file at path.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project file %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse parses src into a Document. The path is used only for range
// attribution and error messages.
func Parse(path string, src []byte) (*Document, error) {
	dec := xml.NewDecoder(bytes.NewReader(src))

	var root *Element
	var stack []*Element

	for {
		// The decoder sits exactly at the start of the next token once any
		// preceding character data has been consumed, so the pre-token
		// position is the '<' of a start or end tag.
		startLine, startCol := dec.InputPos()
		startByte := int(dec.InputOffset())

		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to parse XML in %s: %w", path, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{
				Tag:   t.Name.Local,
				Attrs: make(map[string]string, len(t.Attr)),
				Range: hcl.Range{
					Filename: path,
					Start:    hcl.Pos{Line: startLine, Column: startCol, Byte: startByte},
				},
			}
			for _, a := range t.Attr {
				el.Attrs[a.Name.Local] = a.Value
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("multiple root elements in %s", path)
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				el.Parent = parent
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unbalanced end tag </%s> in %s", t.Name.Local, path)
			}
			el := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			endLine, endCol := dec.InputPos()
			el.Range.End = hcl.Pos{Line: endLine, Column: endCol, Byte: int(dec.InputOffset())}
			el.Text = strings.TrimSpace(el.Text)

		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}

		default:
			// Comments, directives and processing instructions carry no
			// build meaning.
		}
	}

	if root == nil {
		return nil, fmt.Errorf("no root element in %s", path)
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("unclosed element <%s> in %s", stack[len(stack)-1].Tag, path)
	}

	return &Document{Path: path, Root: root}, nil
}

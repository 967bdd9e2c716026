// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package stanza

import (
	"encoding/xml"
	"errors"
	"strings"

	"mellium.im/xmlstream"
)

// ErrUnexpectedToken is returned when decoding encounters a token that
// cannot start an element.
var ErrUnexpectedToken = errors.New("stanza: unexpected token while decoding element")

// ReadElement decodes the next element from the token stream into a tree.
// Character data, comments, and processing instructions before the first
// start element are skipped.
func ReadElement(r xml.TokenReader) (*Element, error) {
	for {
		tok, err := r.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return readFrom(r, t)
		case xml.CharData, xml.Comment, xml.ProcInst, xml.Directive:
			continue
		default:
			return nil, ErrUnexpectedToken
		}
	}
}

// Parse decodes a single element from its string form.
// It is primarily a convenience for tests and diagnostics.
func Parse(s string) (*Element, error) {
	return ReadElement(xml.NewDecoder(strings.NewReader(s)))
}

func readFrom(r xml.TokenReader, start xml.StartElement) (*Element, error) {
	el := &Element{Name: start.Name, Attr: copyAttr(start.Attr)}
	for {
		tok, err := r.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := readFrom(r, t)
			if err != nil {
				return nil, err
			}
			el.Children = append(el.Children, child)
		case xml.CharData:
			el.Text += string(t)
		case xml.EndElement:
			return el, nil
		}
	}
}

// copyAttr copies attributes, dropping namespace declarations: the decoder
// already resolved them into element names and the encoder re-emits them.
func copyAttr(attr []xml.Attr) []xml.Attr {
	out := make([]xml.Attr, 0, len(attr))
	for _, a := range attr {
		if a.Name.Local == "xmlns" || a.Name.Space == "xmlns" {
			continue
		}
		out = append(out, a)
	}
	return out
}

// TokenReader satisfies the xmlstream.Marshaler interface.
func (e *Element) TokenReader() xml.TokenReader {
	var inner xml.TokenReader
	readers := make([]xml.TokenReader, 0, len(e.Children)+1)
	if e.Text != "" {
		readers = append(readers, xmlstream.Token(xml.CharData(e.Text)))
	}
	for _, c := range e.Children {
		readers = append(readers, c.TokenReader())
	}
	if len(readers) > 0 {
		inner = xmlstream.MultiReader(readers...)
	}
	return xmlstream.Wrap(inner, xml.StartElement{Name: e.Name, Attr: e.Attr})
}

// WriteXML satisfies the xmlstream.WriterTo interface.
// It is like MarshalXML except it writes tokens to w.
func (e *Element) WriteXML(w xmlstream.TokenWriter) (n int, err error) {
	return xmlstream.Copy(w, e.TokenReader())
}

// MarshalXML satisfies the xml.Marshaler interface.
func (e *Element) MarshalXML(enc *xml.Encoder, _ xml.StartElement) error {
	_, err := e.WriteXML(enc)
	if err != nil {
		return err
	}
	return enc.Flush()
}

// UnmarshalXML satisfies the xml.Unmarshaler interface.
func (e *Element) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	el, err := readFrom(d, start)
	if err != nil {
		return err
	}
	*e = *el
	return nil
}

// String renders the element as XML for logging and test failure output.
func (e *Element) String() string {
	var b strings.Builder
	enc := xml.NewEncoder(&b)
	if _, err := e.WriteXML(enc); err != nil {
		return "<!" + err.Error() + "!>"
	}
	if err := enc.Flush(); err != nil {
		return "<!" + err.Error() + "!>"
	}
	return b.String()
}

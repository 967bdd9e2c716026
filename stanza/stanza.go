// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package stanza provides the generic element tree that stanzas are
// exchanged as, structural queries over such trees, stanza kind
// classification, and extraction of XMPP error details.
//
// The stanza transport is expected to deliver fully parsed Element values
// and to accept Element values for sending; this package provides the codec
// between Element trees and XML token streams.
package stanza

import (
	"encoding/xml"
	"strings"
)

// Namespaces used throughout the protocol core, provided as a convenience.
const (
	NSClient  = "jabber:client"
	NSServer  = "jabber:server"
	NSStanzas = "urn:ietf:params:xml:ns:xmpp-stanzas"
	NSDelay   = "urn:xmpp:delay"
)

// Kind is the classification of a top level stream element.
type Kind uint8

// The stanza kinds.
// Anything that is not an iq, message, or presence element is KindOther.
const (
	KindOther Kind = iota
	KindIQ
	KindMessage
	KindPresence
)

// KindOf classifies a stanza by its tag name alone.
func KindOf(name xml.Name) Kind {
	switch name.Local {
	case "iq":
		return KindIQ
	case "message":
		return KindMessage
	case "presence":
		return KindPresence
	}
	return KindOther
}

// Element is one node of a parsed XML tree.
// Attr holds ordinary attributes only; namespace declarations are resolved
// into Name.Space during decoding and re-emitted on marshaling.
type Element struct {
	Name     xml.Name
	Attr     []xml.Attr
	Text     string
	Children []*Element
}

// New constructs an element with the given name.
func New(name xml.Name, attr ...xml.Attr) *Element {
	return &Element{Name: name, Attr: attr}
}

// Kind classifies the element as a stanza kind.
func (e *Element) Kind() Kind {
	return KindOf(e.Name)
}

// Append adds the given children in order and returns the element for
// chaining while building outgoing stanzas.
// Nil children are skipped so optional parts can be passed unconditionally.
func (e *Element) Append(children ...*Element) *Element {
	for _, c := range children {
		if c != nil {
			e.Children = append(e.Children, c)
		}
	}
	return e
}

// SetAttr sets or replaces the attribute with the given local name.
func (e *Element) SetAttr(local, value string) *Element {
	for i, a := range e.Attr {
		if a.Name.Local == local && a.Name.Space == "" {
			e.Attr[i].Value = value
			return e
		}
	}
	e.Attr = append(e.Attr, xml.Attr{Name: xml.Name{Local: local}, Value: value})
	return e
}

// SetText replaces the character data of the element.
func (e *Element) SetText(text string) *Element {
	e.Text = text
	return e
}

// Attribute returns the value of the attribute with the given local name, or
// the empty string if it is absent.
func (e *Element) Attribute(local string) string {
	for _, a := range e.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// ID returns the stanza's id attribute.
func (e *Element) ID() string { return e.Attribute("id") }

// Type returns the stanza's type attribute.
func (e *Element) Type() string { return e.Attribute("type") }

// To returns the stanza's to attribute.
func (e *Element) To() string { return e.Attribute("to") }

// From returns the stanza's from attribute.
func (e *Element) From() string { return e.Attribute("from") }

// Child returns the first direct child with the given local name regardless
// of namespace, or nil.
func (e *Element) Child(local string) *Element {
	for _, c := range e.Children {
		if c.Name.Local == local {
			return c
		}
	}
	return nil
}

// ChildNS returns the first direct child with the given namespace and local
// name, or nil.
func (e *Element) ChildNS(space, local string) *Element {
	for _, c := range e.Children {
		if c.Name.Space == space && c.Name.Local == local {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns all direct children with the given local name.
func (e *Element) ChildrenNamed(local string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		if c.Name.Local == local {
			out = append(out, c)
		}
	}
	return out
}

// ChildrenNS returns all direct children with the given namespace and local
// name.
func (e *Element) ChildrenNS(space, local string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		if c.Name.Space == space && c.Name.Local == local {
			out = append(out, c)
		}
	}
	return out
}

// HasChildNS reports whether a direct child with the given namespace and
// local name exists.
func (e *Element) HasChildNS(space, local string) bool {
	return e.ChildNS(space, local) != nil
}

// ChildText returns the trimmed character data of the first direct child
// with the given local name, or the empty string.
func (e *Element) ChildText(local string) string {
	c := e.Child(local)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Text)
}

// Search returns the first direct child for which pred returns true, or nil.
func (e *Element) Search(pred func(*Element) bool) *Element {
	for _, c := range e.Children {
		if pred(c) {
			return c
		}
	}
	return nil
}

// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package ngxchat

import "github.com/pazznetwork/ngx-chat-sub002/stanza"

// HandlerFunc is called for every inbound stanza matching its filter.
// Returning false signals that the stanza was not fully handled; propagation
// to later handlers continues regardless of the return value, since several
// plugins may need to see the same stanza.
type HandlerFunc func(el *stanza.Element) (handled bool, err error)

// Filter selects the stanzas a handler is invoked for.
// The zero value matches every stanza.
type Filter struct {
	// Local matches the stanza's tag name ("iq", "message", "presence").
	Local string

	// Space matches either the stanza's own namespace or the namespace of
	// any direct child, so a handler can select stanzas by their payload
	// (e.g. a muc#user child on a presence).
	Space string

	// Type matches the stanza's type attribute.
	Type string
}

// Match reports whether el passes the filter.
func (f Filter) Match(el *stanza.Element) bool {
	if f.Local != "" && el.Name.Local != f.Local {
		return false
	}
	if f.Type != "" && el.Type() != f.Type {
		return false
	}
	if f.Space != "" && el.Name.Space != f.Space {
		found := false
		for _, c := range el.Children {
			if c.Name.Space == f.Space {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

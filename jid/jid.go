// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package jid implements XMPP addresses (Jabber IDs) as described in
// RFC 7622.
//
// A JID is an immutable value made up of an optional localpart, a required
// domainpart, and an optional resourcepart, written as
// localpart@domainpart/resourcepart.
// All parts are stored in canonical form: the domainpart is converted to its
// Unicode form and lower-cased, the localpart and resourcepart are enforced
// with the precis UsernameCaseMapped and OpaqueString profiles.
package jid

import (
	"encoding/xml"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
	"golang.org/x/text/secure/precis"
)

// Errors returned by malformed JIDs.
var (
	ErrNoDomain     = errors.New("jid: domainpart must not be empty")
	ErrEmptyPart    = errors.New("jid: localpart or resourcepart must not be empty if present")
	ErrInvalidUTF8  = errors.New("jid: part contains invalid UTF-8")
	ErrLongPart     = errors.New("jid: part must be smaller than 1024 bytes")
	ErrInvalidParse = errors.New("jid: could not parse address")
)

// JID represents an XMPP address.
// The zero value is an empty, invalid address.
type JID struct {
	Localpart    string
	Domainpart   string
	Resourcepart string
}

// New constructs a JID from its three parts, applying canonicalization rules
// to each part.
func New(localpart, domainpart, resourcepart string) (JID, error) {
	if !utf8.ValidString(localpart) || !utf8.ValidString(domainpart) || !utf8.ValidString(resourcepart) {
		return JID{}, ErrInvalidUTF8
	}

	domainpart = strings.TrimSuffix(domainpart, ".")
	if domainpart == "" {
		return JID{}, ErrNoDomain
	}
	domainpart, err := idna.ToUnicode(domainpart)
	if err != nil {
		return JID{}, err
	}
	domainpart = strings.ToLower(domainpart)

	if localpart != "" {
		localpart, err = precis.UsernameCaseMapped.String(localpart)
		if err != nil {
			return JID{}, err
		}
	}
	if resourcepart != "" {
		resourcepart, err = precis.OpaqueString.String(resourcepart)
		if err != nil {
			return JID{}, err
		}
	}
	for _, part := range []string{localpart, domainpart, resourcepart} {
		if len(part) > 1023 {
			return JID{}, ErrLongPart
		}
	}
	return JID{
		Localpart:    localpart,
		Domainpart:   domainpart,
		Resourcepart: resourcepart,
	}, nil
}

// Parse constructs a JID from its string representation.
func Parse(s string) (JID, error) {
	localpart, domainpart, resourcepart, err := splitString(s)
	if err != nil {
		return JID{}, err
	}
	return New(localpart, domainpart, resourcepart)
}

// MustParse is like Parse but panics if the address cannot be parsed.
// It simplifies initialization from known-good constant strings.
func MustParse(s string) JID {
	j, err := Parse(s)
	if err != nil {
		panic(`jid: Parse(` + s + `): ` + err.Error())
	}
	return j
}

func splitString(s string) (localpart, domainpart, resourcepart string, err error) {
	// Remove the resourcepart, if any, before splitting off the localpart:
	// '@' and '/' are both legal inside a resourcepart.
	if sep := strings.Index(s, "/"); sep != -1 {
		resourcepart = s[sep+1:]
		s = s[:sep]
		if resourcepart == "" {
			return "", "", "", ErrEmptyPart
		}
	}
	if sep := strings.Index(s, "@"); sep != -1 {
		localpart = s[:sep]
		s = s[sep+1:]
		if localpart == "" {
			return "", "", "", ErrEmptyPart
		}
	}
	if s == "" {
		return "", "", "", ErrNoDomain
	}
	return localpart, s, resourcepart, nil
}

// Bare returns a copy of the JID with the resourcepart removed.
func (j JID) Bare() JID {
	j.Resourcepart = ""
	return j
}

// Domain returns a copy of the JID with only the domainpart set.
func (j JID) Domain() JID {
	return JID{Domainpart: j.Domainpart}
}

// WithResource returns a copy of the JID with the resourcepart replaced by
// resourcepart after canonicalization.
func (j JID) WithResource(resourcepart string) (JID, error) {
	return New(j.Localpart, j.Domainpart, resourcepart)
}

// Equal reports whether j and other are structurally equal on all three
// parts.
func (j JID) Equal(other JID) bool {
	return j.Localpart == other.Localpart &&
		j.Domainpart == other.Domainpart &&
		j.Resourcepart == other.Resourcepart
}

// IsZero reports whether the JID is the empty value.
func (j JID) IsZero() bool {
	return j == JID{}
}

// String converts the JID back to its presentation form.
func (j JID) String() string {
	var b strings.Builder
	if j.Localpart != "" {
		b.WriteString(j.Localpart)
		b.WriteByte('@')
	}
	b.WriteString(j.Domainpart)
	if j.Resourcepart != "" {
		b.WriteByte('/')
		b.WriteString(j.Resourcepart)
	}
	return b.String()
}

// MarshalXMLAttr satisfies the xml.MarshalerAttr interface.
// Zero JIDs marshal to no attribute at all.
func (j JID) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	if j.IsZero() {
		return xml.Attr{}, nil
	}
	return xml.Attr{Name: name, Value: j.String()}, nil
}

// UnmarshalXMLAttr satisfies the xml.UnmarshalerAttr interface.
func (j *JID) UnmarshalXMLAttr(attr xml.Attr) error {
	if attr.Value == "" {
		*j = JID{}
		return nil
	}
	parsed, err := Parse(attr.Value)
	if err != nil {
		return err
	}
	*j = parsed
	return nil
}

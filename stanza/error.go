// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package stanza

import (
	"encoding/xml"
	"strconv"
	"strings"
)

// ErrorType describes how a stanza error should be acted upon.
type ErrorType string

const (
	// Cancel indicates that the error cannot be remedied and the operation
	// should not be retried.
	Cancel ErrorType = "cancel"

	// Auth indicates that an operation should be retried after providing
	// credentials.
	Auth ErrorType = "auth"

	// Continue indicates that the operation can proceed (the condition was
	// only a warning).
	Continue ErrorType = "continue"

	// Modify indicates that the operation can be retried after changing the
	// data sent.
	Modify ErrorType = "modify"

	// Wait indicates that an error is temporary and may be retried.
	Wait ErrorType = "wait"
)

// Condition is a defined stanza error condition carried as a namespaced
// child of the <error/> element.
type Condition string

// Stanza error conditions defined in RFC 6120 §8.3.3.
const (
	BadRequest            Condition = "bad-request"
	Conflict              Condition = "conflict"
	FeatureNotImplemented Condition = "feature-not-implemented"
	Forbidden             Condition = "forbidden"
	Gone                  Condition = "gone"
	InternalServerError   Condition = "internal-server-error"
	ItemNotFound          Condition = "item-not-found"
	JIDMalformed          Condition = "jid-malformed"
	NotAcceptable         Condition = "not-acceptable"
	NotAllowed            Condition = "not-allowed"
	NotAuthorized         Condition = "not-authorized"
	PolicyViolation       Condition = "policy-violation"
	RecipientUnavailable  Condition = "recipient-unavailable"
	Redirect              Condition = "redirect"
	RegistrationRequired  Condition = "registration-required"
	RemoteServerNotFound  Condition = "remote-server-not-found"
	RemoteServerTimeout   Condition = "remote-server-timeout"
	ResourceConstraint    Condition = "resource-constraint"
	ServiceUnavailable    Condition = "service-unavailable"
	SubscriptionRequired  Condition = "subscription-required"
	UndefinedCondition    Condition = "undefined-condition"
	UnexpectedRequest     Condition = "unexpected-request"
)

// Error is the structured form of a stanza-level <error/> payload.
// It satisfies the error interface so protocol failures can be returned
// directly from the operation that triggered them.
type Error struct {
	// Code is the legacy numeric error code, zero when absent.
	Code int

	Type      ErrorType
	Condition Condition

	// Text is the optional human readable description.
	Text string
}

// Error satisfies the error interface.
func (e Error) Error() string {
	var b strings.Builder
	if e.Condition != "" {
		b.WriteString(string(e.Condition))
	} else {
		b.WriteString("unknown stanza error")
	}
	if e.Type != "" {
		b.WriteString(" (")
		b.WriteString(string(e.Type))
		b.WriteString(")")
	}
	if e.Text != "" {
		b.WriteString(": ")
		b.WriteString(e.Text)
	}
	return b.String()
}

// UnmarshalError extracts structured error detail from a stanza carrying an
// <error/> child.
// The second return value reports whether an error payload was present.
func UnmarshalError(el *Element) (Error, bool) {
	errEl := el.Child("error")
	if errEl == nil {
		if el.Name.Local == "error" {
			errEl = el
		} else {
			return Error{}, false
		}
	}

	e := Error{Type: ErrorType(errEl.Attribute("type"))}
	if code := errEl.Attribute("code"); code != "" {
		if n, err := strconv.Atoi(code); err == nil {
			e.Code = n
		}
	}
	for _, child := range errEl.Children {
		if child.Name.Space != NSStanzas {
			continue
		}
		if child.Name.Local == "text" {
			e.Text = strings.TrimSpace(child.Text)
			continue
		}
		e.Condition = Condition(child.Name.Local)
	}
	return e, true
}

// NewError builds an <error/> element suitable for attaching to a stanza.
func NewError(typ ErrorType, condition Condition, text string) *Element {
	el := New(xml.Name{Local: "error"})
	if typ != "" {
		el.SetAttr("type", string(typ))
	}
	el.Append(New(xml.Name{Space: NSStanzas, Local: string(condition)}))
	if text != "" {
		el.Append(New(xml.Name{Space: NSStanzas, Local: "text"}).SetText(text))
	}
	return el
}

// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package ngxchat

import "github.com/pazznetwork/ngx-chat-sub002/stanza"

// Transport is the stanza transport collaborator: it frames and writes one
// element tree per call onto the underlying stream.
// Inbound elements travel the other way through Session.Receive, called by
// the transport owner in stream order.
type Transport interface {
	WriteElement(el *stanza.Element) error
}

// AuthRequest carries the credentials the (out of scope) login layer uses
// to establish a stream before handing the session over to this core.
type AuthRequest struct {
	Domain   string
	Username string
	Password string

	// Service is the optional explicit endpoint, e.g. a WebSocket URL.
	Service string
}

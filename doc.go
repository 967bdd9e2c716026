// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package ngxchat implements the connection service of an XMPP chat client:
// it owns the single ordered stanza stream, assigns outgoing stanza IDs,
// correlates IQ responses with their requests, and dispatches every inbound
// stanza to the registered protocol plugins.
//
// The transport level socket and XML tokenizing are external collaborators:
// a Transport accepts parsed element trees to send, and the transport owner
// feeds received element trees into Session.Receive.
//
// Protocol functionality is layered on top as plugins (see the roster, muc,
// mucsub, and messages packages) that register stanza handlers on the
// session and maintain the domain model in the chat package.
package ngxchat // import "github.com/pazznetwork/ngx-chat-sub002"

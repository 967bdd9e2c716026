// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package stanza

import (
	"encoding/xml"

	"github.com/pazznetwork/ngx-chat-sub002/jid"
)

// IQType is the value of an IQ stanza's type attribute.
type IQType string

const (
	// GetIQ is used to query another entity for information.
	GetIQ IQType = "get"

	// SetIQ is used to provide data to another entity or replace existing
	// values.
	SetIQ IQType = "set"

	// ResultIQ is sent in response to a successful get or set IQ.
	ResultIQ IQType = "result"

	// ErrorIQ reports that an error occurred during the processing of a get
	// or set IQ.
	ErrorIQ IQType = "error"
)

// MessageType is the value of a message stanza's type attribute.
type MessageType string

const (
	// NormalMessage is a standalone message.
	NormalMessage MessageType = "normal"

	// ChatMessage is sent in the context of a one-to-one conversation.
	ChatMessage MessageType = "chat"

	// GroupChatMessage is sent in the context of a multi-user chat.
	GroupChatMessage MessageType = "groupchat"

	// ErrorMessage is returned when an error occurs delivering a message.
	ErrorMessage MessageType = "error"
)

// PresenceType is the value of a presence stanza's type attribute.
type PresenceType string

const (
	// AvailablePresence is an empty presence type and indicates that an
	// entity is available.
	AvailablePresence PresenceType = ""

	// UnavailablePresence indicates that an entity is no longer available.
	UnavailablePresence PresenceType = "unavailable"

	// SubscribePresence is a request to subscribe to an entity's presence.
	SubscribePresence PresenceType = "subscribe"

	// SubscribedPresence accepts a subscription request.
	SubscribedPresence PresenceType = "subscribed"

	// UnsubscribePresence unsubscribes from an entity's presence.
	UnsubscribePresence PresenceType = "unsubscribe"

	// UnsubscribedPresence denies or cancels a subscription.
	UnsubscribedPresence PresenceType = "unsubscribed"
)

// NewIQ builds an iq stanza with the given type.
// The id attribute is left unset; the connection service assigns one when
// the stanza is sent with response correlation.
func NewIQ(typ IQType, to jid.JID) *Element {
	el := New(xml.Name{Local: "iq"})
	el.SetAttr("type", string(typ))
	if !to.IsZero() {
		el.SetAttr("to", to.String())
	}
	return el
}

// NewMessage builds a message stanza with the given type.
func NewMessage(typ MessageType, to jid.JID) *Element {
	el := New(xml.Name{Local: "message"})
	if typ != "" {
		el.SetAttr("type", string(typ))
	}
	if !to.IsZero() {
		el.SetAttr("to", to.String())
	}
	return el
}

// NewPresence builds a presence stanza with the given type.
// An empty type means available.
func NewPresence(typ PresenceType, to jid.JID) *Element {
	el := New(xml.Name{Local: "presence"})
	if typ != "" {
		el.SetAttr("type", string(typ))
	}
	if !to.IsZero() {
		el.SetAttr("to", to.String())
	}
	return el
}

// Text builds a namespace-less child element holding character data, such as
// <body>, <subject>, <status>, or <reason>.
func Text(local, text string) *Element {
	return New(xml.Name{Local: local}).SetText(text)
}

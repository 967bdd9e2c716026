// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package xmpptest provides fakes for testing sessions and plugins without a
// server.
package xmpptest

import (
	"context"
	"fmt"
	"sync"

	ngxchat "github.com/pazznetwork/ngx-chat-sub002"
	"github.com/pazznetwork/ngx-chat-sub002/jid"
	"github.com/pazznetwork/ngx-chat-sub002/stanza"
)

// Responder inspects an outgoing stanza and optionally scripts the server's
// reply. Returning nil passes the stanza to the next responder.
type Responder func(el *stanza.Element) *stanza.Element

// IQResult builds a responder answering every IQ get and set with an empty
// result, optionally carrying the given payload children.
func IQResult(payload ...*stanza.Element) Responder {
	return func(el *stanza.Element) *stanza.Element {
		if el.Kind() != stanza.KindIQ {
			return nil
		}
		switch stanza.IQType(el.Type()) {
		case stanza.GetIQ, stanza.SetIQ:
		default:
			return nil
		}
		resp := stanza.NewIQ(stanza.ResultIQ, jid.JID{}).SetAttr("id", el.ID())
		return resp.Append(payload...)
	}
}

// Transport is an in-memory transport that records written stanzas and can
// script replies, delivered synchronously through the bound session.
type Transport struct {
	mu         sync.Mutex
	session    *ngxchat.Session
	sent       []*stanza.Element
	responders []Responder
}

// NewSession wires a session to a fresh scripted transport.
func NewSession(opts ...ngxchat.Option) (*ngxchat.Session, *Transport) {
	t := &Transport{}
	s := ngxchat.NewSession(t, opts...)
	t.session = s
	return s, t
}

// Respond appends a responder consulted for every written stanza.
func (t *Transport) Respond(fn Responder) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responders = append(t.responders, fn)
}

// WriteElement implements ngxchat.Transport.
func (t *Transport) WriteElement(el *stanza.Element) error {
	t.mu.Lock()
	t.sent = append(t.sent, el)
	responders := make([]Responder, len(t.responders))
	copy(responders, t.responders)
	session := t.session
	t.mu.Unlock()

	for _, fn := range responders {
		if reply := fn(el); reply != nil {
			session.Receive(reply)
			break
		}
	}
	return nil
}

// Sent returns all stanzas written so far.
func (t *Transport) Sent() []*stanza.Element {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*stanza.Element, len(t.sent))
	copy(out, t.sent)
	return out
}

// Last returns the most recently written stanza.
func (t *Transport) Last() *stanza.Element {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sent) == 0 {
		return nil
	}
	return t.sent[len(t.sent)-1]
}

type handlerEntry struct {
	id     uint64
	filter ngxchat.Filter
	fn     ngxchat.HandlerFunc
}

// Conn is a fake ngxchat.Connection for plugin unit tests.
// IQ requests are answered by the registered responders, or with an empty
// result when none match.
type Conn struct {
	// Addr is the address reported by LocalAddr.
	Addr jid.JID

	// OnSend, when set, observes every stanza passed to Send after it is
	// recorded. Tests use it to deliver scripted reflections for presence
	// round-trips.
	OnSend func(el *stanza.Element)

	mu         sync.Mutex
	sent       []*stanza.Element
	responders []Responder
	handlers   []handlerEntry
	nextHand   uint64
	nextID     uint64
}

// NewConn returns a fake connection for the given local address.
func NewConn(addr jid.JID) *Conn {
	return &Conn{Addr: addr}
}

// Respond appends a responder consulted for every IQ request.
func (c *Conn) Respond(fn Responder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responders = append(c.responders, fn)
}

// Send implements ngxchat.Connection.
func (c *Conn) Send(el *stanza.Element) error {
	c.mu.Lock()
	c.sent = append(c.sent, el)
	onSend := c.OnSend
	c.mu.Unlock()
	if onSend != nil {
		onSend(el)
	}
	return nil
}

// SendIQ implements ngxchat.Connection.
func (c *Conn) SendIQ(ctx context.Context, el *stanza.Element) (*stanza.Element, error) {
	if el.Kind() != stanza.KindIQ {
		return nil, ngxchat.ErrNotIQ
	}
	c.mu.Lock()
	if el.ID() == "" {
		c.nextID++
		el.SetAttr("id", fmt.Sprintf("test-%d", c.nextID))
	}
	c.sent = append(c.sent, el)
	responders := make([]Responder, len(c.responders))
	copy(responders, c.responders)
	c.mu.Unlock()

	switch stanza.IQType(el.Type()) {
	case stanza.GetIQ, stanza.SetIQ:
	default:
		return nil, nil
	}

	for _, fn := range responders {
		if reply := fn(el); reply != nil {
			if stanza.IQType(reply.Type()) == stanza.ErrorIQ {
				if stErr, ok := stanza.UnmarshalError(reply); ok {
					return nil, stErr
				}
			}
			return reply, nil
		}
	}
	return stanza.NewIQ(stanza.ResultIQ, jid.JID{}).SetAttr("id", el.ID()), nil
}

// Handle implements ngxchat.Connection.
func (c *Conn) Handle(f ngxchat.Filter, h ngxchat.HandlerFunc) (cancel func()) {
	c.mu.Lock()
	id := c.nextHand
	c.nextHand++
	c.handlers = append(c.handlers, handlerEntry{id: id, filter: f, fn: h})
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, e := range c.handlers {
			if e.id == id {
				c.handlers = append(c.handlers[:i], c.handlers[i+1:]...)
				return
			}
		}
	}
}

// LocalAddr implements ngxchat.Connection.
func (c *Conn) LocalAddr() jid.JID {
	return c.Addr
}

// Deliver dispatches one inbound stanza to all matching handlers in
// registration order, the way the session does.
func (c *Conn) Deliver(el *stanza.Element) (handled bool, err error) {
	c.mu.Lock()
	handlers := make([]handlerEntry, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	for _, e := range handlers {
		if !e.filter.Match(el) {
			continue
		}
		ok, herr := e.fn(el)
		handled = handled || ok
		if err == nil {
			err = herr
		}
	}
	return handled, err
}

// Sent returns all stanzas sent so far.
func (c *Conn) Sent() []*stanza.Element {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*stanza.Element, len(c.sent))
	copy(out, c.sent)
	return out
}

// Last returns the most recently sent stanza.
func (c *Conn) Last() *stanza.Element {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return nil
	}
	return c.sent[len(c.sent)-1]
}

// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package messages implements the message plugin: delivery, carbon and
// archive unwrapping, and normalization into per-recipient message stores.
//
// The plugin carries no state of its own beyond archive paging cursors; it
// is a router between the stanza stream and the stores owned by Contact and
// Room.
package messages

import (
	"context"
	"encoding/xml"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	ngxchat "github.com/pazznetwork/ngx-chat-sub002"
	"github.com/pazznetwork/ngx-chat-sub002/chat"
	"github.com/pazznetwork/ngx-chat-sub002/jid"
	"github.com/pazznetwork/ngx-chat-sub002/obs"
	"github.com/pazznetwork/ngx-chat-sub002/stanza"
)

// Namespaces spoken by the message plugin.
const (
	NSMAM = "urn:xmpp:mam:2"
	NSRSM = "http://jabber.org/protocol/rsm"

	nsXData       = "jabber:x:data"
	nsCarbons     = "urn:xmpp:carbons:2"
	nsForward     = "urn:xmpp:forward:0"
	nsPubSubEvent = "http://jabber.org/protocol/pubsub#event"
	nsMUCUser     = "http://jabber.org/protocol/muc#user"
	nsConference  = "jabber:x:conference"
)

// ContactResolver resolves the contact a 1:1 message belongs to.
// The roster plugin satisfies it.
type ContactResolver interface {
	GetOrCreateContact(addr jid.JID, name string) *chat.Contact
}

// RoomPlugin handles the room side of message traffic.
// The muc plugin satisfies it.
type RoomPlugin interface {
	HandleRoomMessage(el *stanza.Element, ts time.Time, delayed, fromArchive bool) (bool, error)
	SendGroupMessage(room jid.JID, body string) error
}

// ContactMessage is one message delivered into a contact's timeline.
type ContactMessage struct {
	Contact *chat.Contact
	Message chat.Message
}

// Option configures the plugin.
type Option func(*Plugin)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Plugin) {
		p.logger = l
	}
}

// WithPageSize overrides the archive page size.
func WithPageSize(n int) Option {
	return func(p *Plugin) {
		p.pageSize = n
	}
}

// Plugin is the message plugin.
type Plugin struct {
	conn     ngxchat.Connection
	logger   *slog.Logger
	contacts ContactResolver
	rooms    RoomPlugin
	pageSize int

	mu      sync.Mutex
	cursors map[string]archiveCursor

	received *obs.Stream[ContactMessage]
}

// New creates the plugin; register it on a session with AddPlugin.
func New(contacts ContactResolver, rooms RoomPlugin, opts ...Option) *Plugin {
	p := &Plugin{
		logger:   slog.Default(),
		contacts: contacts,
		rooms:    rooms,
		pageSize: defaultPageSize,
		cursors:  make(map[string]archiveCursor),
		received: obs.NewStream[ContactMessage](),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register implements ngxchat.Plugin.
func (p *Plugin) Register(conn ngxchat.Connection) {
	p.conn = conn
	conn.Handle(ngxchat.Filter{Local: "message"}, p.handleMessage)
}

// OnOnline implements ngxchat.Plugin.
func (p *Plugin) OnOnline(ctx context.Context) error {
	return p.enableCarbons(ctx)
}

// OnOffline implements ngxchat.Plugin: archive paging cursors reset.
func (p *Plugin) OnOffline() {
	p.mu.Lock()
	p.cursors = make(map[string]archiveCursor)
	p.mu.Unlock()
}

// Received is the stream of live inbound 1:1 messages.
// Archive backfill and outbound echoes do not emit here.
func (p *Plugin) Received() *obs.Stream[ContactMessage] { return p.received }

// enableCarbons asks the server to copy this user's messages across devices.
func (p *Plugin) enableCarbons(ctx context.Context) error {
	iq := stanza.NewIQ(stanza.SetIQ, jid.JID{}).
		Append(stanza.New(xml.Name{Space: nsCarbons, Local: "enable"}))
	_, err := p.conn.SendIQ(ctx, iq)
	return err
}

// SendMessage sends a trimmed body to the recipient.
// An empty body after trimming is a no-op. For a contact a local echo is
// appended before any server copy arrives; the copy carries the same ID and
// is dropped by the store dedup check on arrival.
func (p *Plugin) SendMessage(recipient chat.Recipient, body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}
	if _, isRoom := recipient.(*chat.Room); isRoom {
		return p.rooms.SendGroupMessage(recipient.RecipientJID(), body)
	}

	id := uuid.NewString()
	msg := stanza.NewMessage(stanza.ChatMessage, recipient.RecipientJID()).
		SetAttr("id", id).
		Append(stanza.Text("body", body))
	if err := p.conn.Send(msg); err != nil {
		return err
	}
	return recipient.Messages().Add(chat.Message{
		ID:        id,
		Direction: chat.DirectionOut,
		Body:      body,
		Time:      time.Now(),
		State:     chat.StateSent,
	})
}

// handleMessage runs the normalization pipeline on one inbound message
// stanza.
func (p *Plugin) handleMessage(el *stanza.Element) (bool, error) {
	// Delivery failures are not content.
	if stanza.MessageType(el.Type()) == stanza.ErrorMessage {
		p.logger.Debug("skipping error message", "from", el.Attribute("from"), "id", el.ID())
		return true, nil
	}

	if carbon := carbonWrapper(el); carbon != nil {
		return p.handleForwardedBatch(carbon, false)
	}
	if result := el.ChildNS(NSMAM, "result"); result != nil {
		return p.handleForwardedBatch(result, true)
	}
	if event := el.ChildNS(nsPubSubEvent, "event"); event != nil {
		return p.handlePubSubEvent(event)
	}
	return p.normalize(el, time.Now(), false, false, false)
}

// carbonWrapper returns the carbons wrapper element, nil when the message is
// not carbon-copied.
func carbonWrapper(el *stanza.Element) *stanza.Element {
	if received := el.ChildNS(nsCarbons, "received"); received != nil {
		return received
	}
	return el.ChildNS(nsCarbons, "sent")
}

// handleForwardedBatch normalizes every forwarded message below the wrapper.
// A malformed sibling does not abort the remaining ones; the overall result
// is handled only if every sibling was handled.
func (p *Plugin) handleForwardedBatch(wrapper *stanza.Element, fromArchive bool) (bool, error) {
	forwards := wrapper.ChildrenNS(nsForward, "forwarded")
	if len(forwards) == 0 {
		return false, nil
	}
	handled := true
	var errs []error
	for _, fwd := range forwards {
		inner := fwd.Child("message")
		if inner == nil {
			handled = false
			errs = append(errs, errors.New("messages: forwarded wrapper without message"))
			continue
		}
		ts, delayed := forwardTimestamp(fwd, inner)
		ok, err := p.normalize(inner, ts, delayed, fromArchive, true)
		handled = handled && ok
		if err != nil {
			errs = append(errs, err)
		}
	}
	return handled, errors.Join(errs...)
}

// handlePubSubEvent unwraps a MUC-Sub offline notification.
func (p *Plugin) handlePubSubEvent(event *stanza.Element) (bool, error) {
	items := event.Child("items")
	if items == nil {
		return false, nil
	}
	handled := true
	var errs []error
	matched := false
	for _, item := range items.ChildrenNamed("item") {
		inner := item.Child("message")
		if inner == nil {
			continue
		}
		matched = true
		ts, delayed := forwardTimestamp(item, inner)
		ok, err := p.normalize(inner, ts, delayed, false, true)
		handled = handled && ok
		if err != nil {
			errs = append(errs, err)
		}
	}
	if !matched {
		return false, nil
	}
	return handled, errors.Join(errs...)
}

// normalize classifies one unwrapped message and folds it into the right
// store. wrapped marks messages extracted from a carbon, archive, or pubsub
// envelope: the room plugin never sees those on the stream, so its handler
// is invoked here instead of by dispatch.
func (p *Plugin) normalize(el *stanza.Element, ts time.Time, delayed, fromArchive, wrapped bool) (bool, error) {
	if stanza.MessageType(el.Type()) == stanza.ErrorMessage {
		return true, nil
	}
	// A forwarded message may itself be a MUC-Sub notification.
	if event := el.ChildNS(nsPubSubEvent, "event"); event != nil {
		return p.handlePubSubEvent(event)
	}
	if isRoomTraffic(el) {
		if wrapped {
			return p.rooms.HandleRoomMessage(el, ts, delayed, fromArchive)
		}
		// Live room traffic is the muc plugin's to handle directly.
		return false, nil
	}
	return p.handleDirect(el, ts, delayed, fromArchive)
}

// isRoomTraffic reports whether the message belongs to the room plugin:
// groupchat typed, muc#user tagged, or an invitation.
func isRoomTraffic(el *stanza.Element) bool {
	if stanza.MessageType(el.Type()) == stanza.GroupChatMessage {
		return true
	}
	return el.HasChildNS(nsMUCUser, "x") || el.HasChildNS(nsConference, "x")
}

// handleDirect folds one 1:1 message into its contact's timeline.
// Direction follows the to attribute: addressed to the current user means
// inbound, anything else is an echo of an own message from another device.
func (p *Plugin) handleDirect(el *stanza.Element, ts time.Time, delayed, fromArchive bool) (bool, error) {
	body := el.ChildText("body")
	if body == "" {
		// Chat state or receipt only, nothing to store.
		return true, nil
	}

	self := p.conn.LocalAddr().Bare()
	to, toErr := jid.Parse(el.Attribute("to"))
	from, fromErr := jid.Parse(el.Attribute("from"))

	var direction chat.Direction
	var other jid.JID
	switch {
	case toErr == nil && to.Bare().Equal(self):
		if fromErr != nil {
			return false, errors.New("messages: inbound message with malformed from")
		}
		direction = chat.DirectionIn
		other = from
	case toErr == nil:
		direction = chat.DirectionOut
		other = to
	default:
		return false, errors.New("messages: message with malformed to")
	}

	contact := p.contacts.GetOrCreateContact(other, "")
	id := el.ID()
	if id == "" {
		id = uuid.NewString()
	} else if contact.Messages().Contains(id) {
		// Carbon or server echo of a message already stored locally.
		return true, nil
	}

	msg := chat.Message{
		ID:          id,
		Direction:   direction,
		Body:        body,
		Time:        ts,
		Delayed:     delayed,
		FromArchive: fromArchive,
	}
	if err := contact.Messages().Add(msg); err != nil {
		return false, err
	}
	if direction == chat.DirectionIn && !fromArchive {
		p.received.Publish(ContactMessage{Contact: contact, Message: msg})
	}
	return true, nil
}

// forwardTimestamp reads the delay stamp attached to a forwarded message,
// checking the wrapper first, then the message itself.
func forwardTimestamp(wrapper, inner *stanza.Element) (time.Time, bool) {
	for _, el := range []*stanza.Element{wrapper, inner} {
		if delay := el.ChildNS(stanza.NSDelay, "delay"); delay != nil {
			if ts, err := time.Parse(time.RFC3339, delay.Attribute("stamp")); err == nil {
				return ts, true
			}
		}
	}
	return time.Now(), false
}

// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package muc implements the multi-user chat plugin.
//
// It maintains one Room per bare room JID, runs the per-occupant state
// machine from muc#user presence, routes groupchat messages and invitations,
// and exposes the XEP-0045 management operations.
package muc

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	ngxchat "github.com/pazznetwork/ngx-chat-sub002"
	"github.com/pazznetwork/ngx-chat-sub002/chat"
	"github.com/pazznetwork/ngx-chat-sub002/jid"
	"github.com/pazznetwork/ngx-chat-sub002/obs"
)

// Multi-user chat namespaces.
const (
	NS      = "http://jabber.org/protocol/muc"
	NSUser  = NS + "#user"
	NSAdmin = NS + "#admin"
	NSOwner = NS + "#owner"
)

var (
	// ErrNotInRoom is returned for room operations that need an established
	// occupant, such as leaving.
	ErrNotInRoom = errors.New("muc: not an occupant of the room")

	// ErrNoService is returned when no chat service is known for the session.
	ErrNoService = errors.New("muc: no chat service discovered")
)

// RoomMessage is one message delivered into a room.
type RoomMessage struct {
	Room    *chat.Room
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

// Plugin is the multi-user chat plugin.
type Plugin struct {
	conn   ngxchat.Connection
	logger *slog.Logger

	mu           sync.Mutex
	service      jid.JID
	rooms        map[string]*chat.Room
	joinWaiters  map[string][]chan struct{}
	leaveWaiters map[string][]chan struct{}

	roomsV   *obs.Value[[]*chat.Room]
	messages *obs.Stream[RoomMessage]
	invites  *obs.Stream[chat.RoomInvitation]
}

// New creates the plugin; register it on a session with AddPlugin.
func New(opts ...Option) *Plugin {
	p := &Plugin{
		logger:       slog.Default(),
		rooms:        make(map[string]*chat.Room),
		joinWaiters:  make(map[string][]chan struct{}),
		leaveWaiters: make(map[string][]chan struct{}),
		roomsV:       obs.NewValue[[]*chat.Room](nil),
		messages:     obs.NewStream[RoomMessage](),
		invites:      obs.NewStream[chat.RoomInvitation](),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register implements ngxchat.Plugin.
func (p *Plugin) Register(conn ngxchat.Connection) {
	p.conn = conn
	conn.Handle(ngxchat.Filter{Local: "presence", Space: NSUser}, p.handleOccupantPresence)
	conn.Handle(ngxchat.Filter{Local: "message"}, p.handleMessage)
}

// OnOnline implements ngxchat.Plugin: it discovers the chat service and the
// rooms it advertises.
// A server without a chat service is not an error.
func (p *Plugin) OnOnline(ctx context.Context) error {
	service, err := p.discoverService(ctx)
	if err != nil {
		p.logger.Debug("no chat service discovered", "error", err)
		return nil
	}
	p.mu.Lock()
	p.service = service
	p.mu.Unlock()
	_, err = p.QueryAllRooms(ctx)
	return err
}

// OnOffline implements ngxchat.Plugin: the room cache resets and every
// waiter unblocks.
func (p *Plugin) OnOffline() {
	p.mu.Lock()
	joins, leaves := p.joinWaiters, p.leaveWaiters
	p.service = jid.JID{}
	p.rooms = make(map[string]*chat.Room)
	p.joinWaiters = make(map[string][]chan struct{})
	p.leaveWaiters = make(map[string][]chan struct{})
	p.mu.Unlock()
	for _, chs := range joins {
		for _, ch := range chs {
			close(ch)
		}
	}
	for _, chs := range leaves {
		for _, ch := range chs {
			close(ch)
		}
	}
	p.roomsV.Set(nil)
}

// Rooms is the reactive set of known rooms.
func (p *Plugin) Rooms() *obs.Value[[]*chat.Room] { return p.roomsV }

// Messages is the stream of messages delivered into any known room.
func (p *Plugin) Messages() *obs.Stream[RoomMessage] { return p.messages }

// Invitations is the stream of received room invitations, mediated and
// direct.
func (p *Plugin) Invitations() *obs.Stream[chat.RoomInvitation] { return p.invites }

// Service returns the discovered chat service address, zero when none is
// known.
func (p *Plugin) Service() jid.JID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.service
}

// Room looks up a room by the bare form of addr.
func (p *Plugin) Room(addr jid.JID) (*chat.Room, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.rooms[addr.Bare().String()]
	return r, ok
}

// GetOrCreateRoom returns the room for the bare form of addr, creating it
// lazily on first reference.
func (p *Plugin) GetOrCreateRoom(addr jid.JID) *chat.Room {
	p.mu.Lock()
	key := addr.Bare().String()
	r, ok := p.rooms[key]
	if !ok {
		r = chat.NewRoom(addr)
		p.rooms[key] = r
	}
	p.mu.Unlock()
	if !ok {
		p.refresh()
	}
	return r
}

func (p *Plugin) forgetRoom(addr jid.JID) {
	p.mu.Lock()
	delete(p.rooms, addr.Bare().String())
	p.mu.Unlock()
	p.refresh()
}

func (p *Plugin) refresh() {
	p.mu.Lock()
	all := make([]*chat.Room, 0, len(p.rooms))
	for _, r := range p.rooms {
		all = append(all, r)
	}
	p.mu.Unlock()
	sort.Slice(all, func(i, j int) bool {
		return all[i].JID().String() < all[j].JID().String()
	})
	p.roomsV.Set(all)
}

// addWaiter registers a presence round-trip waiter for the bare room key.
func addWaiter(m map[string][]chan struct{}, key string) chan struct{} {
	ch := make(chan struct{}, 1)
	m[key] = append(m[key], ch)
	return ch
}

// dropWaiter deregisters a single waiter that gave up, such as after a
// timed-out join; reflections arriving later must not pile up stale
// channels.
func dropWaiter(m map[string][]chan struct{}, key string, ch chan struct{}) {
	chs := m[key]
	for i, c := range chs {
		if c == ch {
			chs = append(chs[:i], chs[i+1:]...)
			break
		}
	}
	if len(chs) == 0 {
		delete(m, key)
		return
	}
	m[key] = chs
}

// notifyWaiters unblocks and drops every waiter for the bare room key.
func notifyWaiters(m map[string][]chan struct{}, key string) []chan struct{} {
	chs := m[key]
	delete(m, key)
	return chs
}

// await blocks on a presence round-trip; the session IQ timeout applies when
// the context carries no deadline.
func await(ctx context.Context, ch <-chan struct{}) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ngxchat.DefaultIQTimeout)
		defer cancel()
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.New("muc: timed out awaiting room presence")
		}
		return ctx.Err()
	}
}

// delayTimestamp reports the delay stamp on a message, or now.
func delayTimestamp(stamp string) (time.Time, bool) {
	if stamp == "" {
		return time.Now(), false
	}
	ts, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return time.Now(), false
	}
	return ts, true
}

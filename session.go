// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package ngxchat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pazznetwork/ngx-chat-sub002/jid"
	"github.com/pazznetwork/ngx-chat-sub002/obs"
	"github.com/pazznetwork/ngx-chat-sub002/stanza"
)

// Errors returned by the session.
var (
	// ErrNotConnected is returned when sending while disconnected.
	ErrNotConnected = errors.New("ngxchat: not connected")

	// ErrDisconnected rejects pending IQ responses when the connection is
	// torn down before the response arrives.
	ErrDisconnected = errors.New("ngxchat: disconnected while awaiting response")

	// ErrIQTimeout rejects an IQ request that was never answered.
	ErrIQTimeout = errors.New("ngxchat: iq request timed out")

	// ErrNotIQ is returned by SendIQ for stanzas that are not iq elements.
	ErrNotIQ = errors.New("ngxchat: stanza is not an iq")
)

// DefaultIQTimeout bounds how long SendIQ waits for a response when the
// caller's context carries no deadline.
// An unanswered IQ must eventually reject rather than leak forever.
const DefaultIQTimeout = 15 * time.Second

// ConnectionState is the lifecycle state of the session.
type ConnectionState uint8

const (
	// StateDisconnected means no stream is established.
	StateDisconnected ConnectionState = iota

	// StateConnecting means a stream exists and plugins are initializing.
	StateConnecting

	// StateOnline means the session is fully established.
	StateOnline
)

// String returns the lifecycle state name.
func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOnline:
		return "online"
	}
	return "disconnected"
}

// Connection is the narrow session interface plugins are constructed
// against.
type Connection interface {
	// Send serializes the stanza onto the transport without waiting for any
	// reply.
	Send(el *stanza.Element) error

	// SendIQ assigns a request ID if the stanza has none, sends it, and
	// blocks until the correlated result arrives.
	// An error-typed response is returned as a stanza.Error.
	SendIQ(ctx context.Context, el *stanza.Element) (*stanza.Element, error)

	// Handle registers a handler invoked for every inbound stanza matching
	// the filter, in registration order.
	// The returned function removes the handler.
	Handle(f Filter, h HandlerFunc) (cancel func())

	// LocalAddr is the current user's address, zero while disconnected.
	LocalAddr() jid.JID
}

// Plugin is a protocol plugin layered over the session.
type Plugin interface {
	// Register is called once when the plugin is added and should install
	// its stanza handlers.
	Register(conn Connection)

	// OnOnline is called on the transition to online so the plugin can
	// fetch its server-side state.
	OnOnline(ctx context.Context) error

	// OnOffline is called on the transition away from online and must reset
	// all per-session caches.
	OnOffline()
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the structured logger used for dispatch diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithIQTimeout overrides DefaultIQTimeout.
func WithIQTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.iqTimeout = d
	}
}

// WithIDPrefix replaces the random per-session prefix of generated stanza
// IDs, e.g. to make protocol traces stable.
func WithIDPrefix(prefix string) Option {
	return func(s *Session) {
		s.idPrefix = prefix
	}
}

type handlerReg struct {
	id     uint64
	filter Filter
	fn     HandlerFunc
}

type iqResult struct {
	// el is nil when the request is rejected by connection teardown.
	el *stanza.Element
}

// Session owns one ordered stanza stream.
// All inbound dispatch for a single stanza is synchronous and sequential
// across handlers so side effects observe each other in order; concurrent
// outgoing IQs are correlated by ID, not by arrival order.
type Session struct {
	transport Transport
	logger    *slog.Logger
	iqTimeout time.Duration

	idPrefix string
	idSeq    atomic.Uint64

	state *obs.Value[ConnectionState]

	mu          sync.Mutex
	addr        jid.JID
	handlers    []handlerReg
	nextHandler uint64
	pending     map[string]chan iqResult
	plugins     []Plugin
}

// NewSession creates a session over the given transport.
func NewSession(t Transport, opts ...Option) *Session {
	s := &Session{
		transport: t,
		logger:    slog.Default(),
		iqTimeout: DefaultIQTimeout,
		idPrefix:  strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		state:     obs.NewValue(StateDisconnected),
		pending:   make(map[string]chan iqResult),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State is the reactive connection lifecycle state.
func (s *Session) State() *obs.Value[ConnectionState] {
	return s.state
}

// LocalAddr returns the current user's address, zero while disconnected.
func (s *Session) LocalAddr() jid.JID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// AddPlugin registers the plugin's handlers and includes it in the online
// and offline lifecycle, in registration order.
func (s *Session) AddPlugin(p Plugin) {
	p.Register(s)
	s.mu.Lock()
	s.plugins = append(s.plugins, p)
	s.mu.Unlock()
}

// Handle implements Connection.
func (s *Session) Handle(f Filter, h HandlerFunc) (cancel func()) {
	s.mu.Lock()
	id := s.nextHandler
	s.nextHandler++
	s.handlers = append(s.handlers, handlerReg{id: id, filter: f, fn: h})
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, reg := range s.handlers {
			if reg.id == id {
				s.handlers = append(s.handlers[:i], s.handlers[i+1:]...)
				return
			}
		}
	}
}

// Send implements Connection.
func (s *Session) Send(el *stanza.Element) error {
	if s.state.Get() == StateDisconnected {
		return ErrNotConnected
	}
	return s.transport.WriteElement(el)
}

// nextID returns a fresh stanza ID, unique and monotonically increasing
// within the session.
func (s *Session) nextID() string {
	return fmt.Sprintf("%s-%d", s.idPrefix, s.idSeq.Add(1))
}

// SendIQ implements Connection.
//
// Result- or error-typed IQs are responses themselves: they are sent without
// waiting and the returned element is nil.
// If the context has no deadline the session's IQ timeout applies.
func (s *Session) SendIQ(ctx context.Context, el *stanza.Element) (*stanza.Element, error) {
	if el.Kind() != stanza.KindIQ {
		return nil, ErrNotIQ
	}
	switch stanza.IQType(el.Type()) {
	case stanza.GetIQ, stanza.SetIQ:
	default:
		return nil, s.Send(el)
	}

	id := el.ID()
	if id == "" {
		id = s.nextID()
		el.SetAttr("id", id)
	}
	ch := make(chan iqResult, 1)
	s.mu.Lock()
	s.pending[id] = ch
	s.mu.Unlock()

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, s.iqTimeout)
		defer cancelTimeout()
	}

	if err := s.Send(el); err != nil {
		s.forget(id)
		return nil, err
	}

	select {
	case res := <-ch:
		if res.el == nil {
			return nil, ErrDisconnected
		}
		if stanza.IQType(res.el.Type()) == stanza.ErrorIQ {
			if stErr, ok := stanza.UnmarshalError(res.el); ok {
				return nil, stErr
			}
			return nil, fmt.Errorf("ngxchat: malformed error response for iq %q", id)
		}
		return res.el, nil
	case <-ctx.Done():
		s.forget(id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: id %q", ErrIQTimeout, id)
		}
		return nil, ctx.Err()
	}
}

func (s *Session) forget(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// Receive feeds one inbound stanza into the session; the transport owner
// calls it in stream order.
//
// IQ responses are matched against the pending request table first; every
// other stanza is dispatched to all matching handlers in registration
// order. A handler error is logged and does not stop later handlers.
func (s *Session) Receive(el *stanza.Element) {
	if s.state.Get() == StateDisconnected {
		s.logger.Debug("dropping stanza received while disconnected", "name", el.Name.Local)
		return
	}

	if el.Kind() == stanza.KindIQ {
		switch stanza.IQType(el.Type()) {
		case stanza.ResultIQ, stanza.ErrorIQ:
			s.mu.Lock()
			ch, ok := s.pending[el.ID()]
			if ok {
				delete(s.pending, el.ID())
			}
			s.mu.Unlock()
			if ok {
				ch <- iqResult{el: el}
				return
			}
		}
	}

	s.mu.Lock()
	regs := make([]handlerReg, len(s.handlers))
	copy(regs, s.handlers)
	s.mu.Unlock()

	handled := false
	for _, reg := range regs {
		if !reg.filter.Match(el) {
			continue
		}
		ok, err := reg.fn(el)
		if err != nil {
			s.logger.Warn("stanza handler failed",
				"name", el.Name.Local, "type", el.Type(), "error", err)
		}
		handled = handled || ok
	}
	if !handled {
		s.logger.Debug("unhandled stanza", "name", el.Name.Local, "type", el.Type())
	}
}

// Online transitions the session to online for the given user address:
// every plugin initializes in registration order, then availability is
// announced.
// Plugin initialization errors are collected, not fatal; the session still
// comes online so that a partially synchronized client remains usable.
func (s *Session) Online(ctx context.Context, addr jid.JID) error {
	s.mu.Lock()
	s.addr = addr
	plugins := make([]Plugin, len(s.plugins))
	copy(plugins, s.plugins)
	s.mu.Unlock()
	s.state.Set(StateConnecting)

	var errs []error
	for _, p := range plugins {
		if err := p.OnOnline(ctx); err != nil {
			s.logger.Warn("plugin initialization failed", "error", err)
			errs = append(errs, err)
		}
	}
	if err := s.Send(stanza.NewPresence(stanza.AvailablePresence, jid.JID{})); err != nil {
		errs = append(errs, err)
	}
	s.state.Set(StateOnline)
	return errors.Join(errs...)
}

// Logout announces unavailability best-effort and tears the session down.
func (s *Session) Logout() {
	if s.state.Get() == StateOnline {
		if err := s.Send(stanza.NewPresence(stanza.UnavailablePresence, jid.JID{})); err != nil {
			s.logger.Debug("could not announce unavailability", "error", err)
		}
	}
	s.Offline()
}

// Offline tears the session down: the state transitions to disconnected, no
// further handler runs, every pending IQ rejects with ErrDisconnected, and
// every plugin resets its per-session caches.
// A subsequent Online starts from a clean slate.
func (s *Session) Offline() {
	if s.state.Get() == StateDisconnected {
		return
	}
	s.state.Set(StateDisconnected)

	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[string]chan iqResult)
	s.addr = jid.JID{}
	plugins := make([]Plugin, len(s.plugins))
	copy(plugins, s.plugins)
	s.mu.Unlock()

	for _, ch := range pending {
		ch <- iqResult{}
	}
	for _, p := range plugins {
		p.OnOffline()
	}
}

// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package chat

// ContactSubscription is the roster subscription state between the current
// user and a contact.
// The four values form a small lattice: none sits at the bottom, to and from
// are incomparable, and both is the join of to and from.
type ContactSubscription uint8

const (
	// SubscriptionNone means neither side receives the other's presence.
	SubscriptionNone ContactSubscription = iota

	// SubscriptionTo means the current user receives the contact's presence.
	SubscriptionTo

	// SubscriptionFrom means the contact receives the current user's
	// presence.
	SubscriptionFrom

	// SubscriptionBoth means presence flows in both directions.
	SubscriptionBoth
)

// ParseSubscription maps a roster item subscription attribute onto a
// ContactSubscription.
func ParseSubscription(s string) (ContactSubscription, bool) {
	switch s {
	case "none", "":
		return SubscriptionNone, true
	case "to":
		return SubscriptionTo, true
	case "from":
		return SubscriptionFrom, true
	case "both":
		return SubscriptionBoth, true
	}
	return SubscriptionNone, false
}

// String returns the wire form of the subscription state.
func (s ContactSubscription) String() string {
	switch s {
	case SubscriptionTo:
		return "to"
	case SubscriptionFrom:
		return "from"
	case SubscriptionBoth:
		return "both"
	}
	return "none"
}

// WithFrom advances the lattice after the current user accepted the
// contact's subscription request: none becomes from, to becomes both.
// Both and unmatched states are unchanged.
func (s ContactSubscription) WithFrom() ContactSubscription {
	switch s {
	case SubscriptionNone:
		return SubscriptionFrom
	case SubscriptionTo:
		return SubscriptionBoth
	}
	return s
}

// WithTo advances the lattice after the contact accepted the current user's
// subscription request: none becomes to, from becomes both.
// Both and unmatched states are unchanged.
func (s ContactSubscription) WithTo() ContactSubscription {
	switch s {
	case SubscriptionNone:
		return SubscriptionTo
	case SubscriptionFrom:
		return SubscriptionBoth
	}
	return s
}

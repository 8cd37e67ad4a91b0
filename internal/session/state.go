// Package session owns the authentication state of the agent: who is logged
// in, with which role, and whether the startup restore has finished. It is
// the only writer of the durable token and role slots.
package session

import (
	"context"

	"planner-agent/internal/auth"
)

// Status is the session state machine.
//
//	uninitialized   --Initialize, profile ok-->   authenticated
//	uninitialized   --Initialize, no token/err--> unauthenticated
//	any             --Login ok-->                 authenticated
//	any             --Logout / Expire-->          unauthenticated
type Status int

const (
	StatusUninitialized Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "uninitialized"
	}
}

// State is a point-in-time copy of the session.
type State struct {
	Status  Status
	Token   string
	User    *auth.User
	Role    auth.Role
	Loading bool
}

// Reason says why an auth transition fired.
type Reason string

const (
	ReasonLogin   Reason = "login"
	ReasonLogout  Reason = "logout"
	ReasonExpired Reason = "expired"
)

// Transition is delivered to listeners after the session state and the
// durable slots have been fully updated.
type Transition struct {
	Authenticated bool
	User          *auth.User
	Reason        Reason
}

// Listener receives auth transitions in the order they happen. Listeners run
// synchronously on the goroutine that caused the transition and must not call
// Login, Logout or Expire.
type Listener interface {
	OnAuthTransition(ctx context.Context, t Transition)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, t Transition)

func (f ListenerFunc) OnAuthTransition(ctx context.Context, t Transition) {
	f(ctx, t)
}

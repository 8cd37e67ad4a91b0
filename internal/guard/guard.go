// Package guard decides whether a protected page may render for the current
// session.
package guard

import "planner-agent/internal/auth"

type Decision int

const (
	Render Decision = iota
	RedirectToLogin
	Loading
)

func (d Decision) String() string {
	switch d {
	case Render:
		return "render"
	case RedirectToLogin:
		return "redirect"
	case Loading:
		return "loading"
	default:
		return "unknown"
	}
}

const LoginPath = "/login"

// State is the slice of the session a guard decision depends on.
type State struct {
	Loading       bool
	Authenticated bool
	Role          auth.Role
}

// Decide returns Loading while the session is still being restored, whatever
// else is set. An unauthenticated session, or a role missing from a non-empty
// allow-list, is sent to the login page. There is no forbidden outcome.
func Decide(st State, allowed ...auth.Role) Decision {
	if st.Loading {
		return Loading
	}
	if !st.Authenticated {
		return RedirectToLogin
	}
	if len(allowed) == 0 {
		return Render
	}
	for _, r := range allowed {
		if r == st.Role {
			return Render
		}
	}
	return RedirectToLogin
}

// HomePath is where a freshly logged in user lands.
func HomePath(role auth.Role) string {
	switch role {
	case auth.RoleVendor:
		return "/vendor/dashboard"
	case auth.RoleAdmin:
		return "/admin/dashboard"
	default:
		return "/couple/dashboard"
	}
}

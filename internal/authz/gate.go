// Package authz decides what a view may show given the session state.
package authz

import (
	"fmt"

	"github.com/felixgeelhaar/eventify/internal/auth"
	"github.com/felixgeelhaar/eventify/internal/domain"
	apperrors "github.com/felixgeelhaar/eventify/internal/errors"
)

// Requirement is what a protected view demands of the viewer.
type Requirement int

const (
	// RequireNone admits any authenticated viewer.
	RequireNone Requirement = iota
	// RequireAttendee admits attendees and admins.
	RequireAttendee
	// RequireAdmin admits admins only.
	RequireAdmin
)

func (r Requirement) String() string {
	switch r {
	case RequireAttendee:
		return "attendee"
	case RequireAdmin:
		return "admin"
	default:
		return "none"
	}
}

// Decision is the outcome of the gate.
type Decision int

const (
	RenderLoading Decision = iota
	RedirectLogin
	RenderContent
	RenderDenied
)

func (d Decision) String() string {
	switch d {
	case RenderLoading:
		return "loading"
	case RedirectLogin:
		return "redirect-login"
	case RenderContent:
		return "content"
	case RenderDenied:
		return "denied"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Decide is a pure function of session status, requirement and role. It
// never mutates the session and never redirects an authenticated viewer.
func Decide(status auth.Status, req Requirement, role domain.Role) Decision {
	switch status {
	case auth.StatusUninitialized, auth.StatusLoading:
		return RenderLoading
	case auth.StatusAnonymous:
		return RedirectLogin
	case auth.StatusAuthenticated:
	default:
		return RenderLoading
	}

	switch req {
	case RequireNone:
		return RenderContent
	case RequireAttendee:
		switch role {
		case domain.RoleAdmin, domain.RoleAttendee:
			return RenderContent
		}
		return RenderDenied
	case RequireAdmin:
		switch role {
		case domain.RoleAdmin:
			return RenderContent
		case domain.RoleAttendee:
			return RenderDenied
		}
		return RenderDenied
	default:
		return RenderDenied
	}
}

// DecideState applies Decide to a resolver state.
func DecideState(st auth.State, req Requirement) Decision {
	return Decide(st.Status, req, st.Role())
}

// Guard maps the decision for st to an error for non-interactive callers.
func Guard(st auth.State, req Requirement) error {
	switch DecideState(st, req) {
	case RenderContent:
		return nil
	case RenderDenied:
		return apperrors.NewAuthorizationError(req.String())
	case RedirectLogin:
		return apperrors.NewAuthRequiredError()
	default:
		return apperrors.New(apperrors.ErrCodeSessionPending, "session is still being resolved")
	}
}

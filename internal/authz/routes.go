package authz

// Route names the views of the client.
type Route string

const (
	RoutePublicEvents Route = "public-events"
	RouteLogin        Route = "login"
	RouteSignup       Route = "signup"
	RouteAdminEvents  Route = "admin-events"
	RouteAttendees    Route = "admin-attendees"
)

// Protection describes how a route is gated.
type Protection struct {
	Protected   bool
	Requirement Requirement
}

var routes = map[Route]Protection{
	RoutePublicEvents: {},
	RouteLogin:        {},
	RouteSignup:       {},
	RouteAdminEvents:  {Protected: true, Requirement: RequireAdmin},
	RouteAttendees:    {Protected: true, Requirement: RequireAdmin},
}

// ProtectionFor returns the gate for route. Unknown routes are admin-only.
func ProtectionFor(r Route) Protection {
	p, ok := routes[r]
	if !ok {
		return Protection{Protected: true, Requirement: RequireAdmin}
	}
	return p
}

package auth

import "fmt"

// Route is a view path.
type Route string

const (
	RouteBoot           Route = "/boot"
	RouteLogin          Route = "/login"
	RouteLogout         Route = "/logout"
	RouteDashboard      Route = "/dashboard"
	RouteChangePassword Route = "/change-password"
	RouteSIM            Route = "/sim"
	RouteEthernet       Route = "/ethernet"
	RouteWiFi           Route = "/wifi"
	RoutePower          Route = "/power"
	RouteStorage        Route = "/storage"
	RouteSoftware       Route = "/software"
	RouteDiagnostics    Route = "/diagnostics"
)

// PublicRoutes need no session.
var PublicRoutes = []Route{RouteBoot, RouteLogin, RouteLogout}

// ProtectedRoutes need a session.
var ProtectedRoutes = []Route{
	RouteDashboard, RouteChangePassword, RouteSIM, RouteEthernet, RouteWiFi,
	RoutePower, RouteStorage, RouteSoftware, RouteDiagnostics,
}

// Protected reports whether r needs a session. Unknown routes are treated as
// protected.
func (r Route) Protected() bool {
	for _, p := range PublicRoutes {
		if p == r {
			return false
		}
	}
	return true
}

// ParseRoute validates a route path.
func ParseRoute(s string) (Route, error) {
	r := Route(s)
	for _, known := range append(append([]Route{}, PublicRoutes...), ProtectedRoutes...) {
		if known == r {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown route %q", s)
}

package guard

import (
	"sync"

	"github.com/lshigami/iqtester/internal/model"
	"github.com/rs/zerolog/log"
)

type State int

const (
	Restoring State = iota
	Authorized
	Unauthorized
)

func (s State) String() string {
	switch s {
	case Restoring:
		return "restoring"
	case Authorized:
		return "authorized"
	case Unauthorized:
		return "unauthorized"
	}
	return "unknown"
}

type Route string

const (
	RouteLogin    Route = "/login"
	RouteRegister Route = "/register"
	RouteHome     Route = "/"
	RouteTest     Route = "/test"
	RouteResults  Route = "/results"
	RouteHistory  Route = "/history"
)

// Protected reports whether the route requires a signed-in user.
func (r Route) Protected() bool {
	return r != RouteLogin && r != RouteRegister
}

// Decision is the outcome of a navigation request.
type Decision struct {
	// Wait means the session is still being restored; nothing should be
	// shown but a neutral waiting indication.
	Wait  bool
	Route Route
}

// Redirected reports whether the decision differs from the requested route.
func (d Decision) Redirected(requested Route) bool {
	return !d.Wait && d.Route != requested
}

// SessionSource is the part of the session store the guard reads.
type SessionSource interface {
	Loading() bool
	CurrentIdentity() (model.Identity, bool)
}

// Guard gates protected routes on the session state.
type Guard struct {
	session SessionSource

	mu       sync.Mutex
	restored bool
}

func New(session SessionSource) *Guard {
	return &Guard{session: session}
}

// State leaves Restoring exactly once, the first time it is observed after
// the session store finished loading.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.restored {
		if g.session.Loading() {
			return Restoring
		}
		g.restored = true
		log.Debug().Msg("Route guard: session restore finished")
	}

	if _, ok := g.session.CurrentIdentity(); ok {
		return Authorized
	}
	return Unauthorized
}

// Resolve decides where a navigation to route lands.
func (g *Guard) Resolve(route Route) Decision {
	switch g.State() {
	case Restoring:
		return Decision{Wait: true}
	case Unauthorized:
		if route.Protected() {
			log.Debug().Str("route", string(route)).Msg("Route guard: redirecting to login")
			return Decision{Route: RouteLogin}
		}
	}
	return Decision{Route: route}
}

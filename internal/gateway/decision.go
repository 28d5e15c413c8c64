// ABOUTME: Decision table mapping a route class and principal to an outcome
// ABOUTME: API routes answer 401/403; page routes redirect to /login or /library

package gateway

import (
	"fmt"
	"net/http"

	"github.com/2389/shelf-gateway/internal/auth"
)

// Redirect targets for page routes.
const (
	LoginPath   = "/login"
	LibraryPath = "/library"
)

// Outcome is the kind of decision the gateway reaches.
type Outcome int

const (
	Continue Outcome = iota
	Redirect
	Status
)

// Decision is the gateway's verdict for one request.
type Decision struct {
	Outcome    Outcome
	Location   string // set when Outcome is Redirect
	StatusCode int    // set when Outcome is Status
}

func (d Decision) String() string {
	switch d.Outcome {
	case Continue:
		return "continue"
	case Redirect:
		return "redirect " + d.Location
	case Status:
		return fmt.Sprintf("status %d", d.StatusCode)
	}
	return "unknown"
}

// Decide returns the decision for a request of class c made by p (nil when anonymous).
func Decide(c RouteClass, p *auth.Principal) Decision {
	switch c {
	case ClassPublicPage, ClassSharePage, ClassIdentity, ClassShareAPI, ClassDesktopAPI:
		return Decision{Outcome: Continue}

	case ClassAPI, ClassAdminAPI:
		if p == nil {
			return Decision{Outcome: Status, StatusCode: http.StatusUnauthorized}
		}
		if c == ClassAdminAPI && !p.IsAdmin() {
			return Decision{Outcome: Status, StatusCode: http.StatusForbidden}
		}
		return Decision{Outcome: Continue}

	default:
		if p == nil {
			return Decision{Outcome: Redirect, Location: LoginPath}
		}
		if c == ClassAdminPage && !p.IsAdmin() {
			return Decision{Outcome: Redirect, Location: LibraryPath}
		}
		return Decision{Outcome: Continue}
	}
}

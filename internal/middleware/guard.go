package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dermassist/client/internal/service"
)

type Policy int

const (
	// Protected pages need a verified session.
	Protected Policy = iota
	// GuestOnly pages (login, register) are for signed-out users.
	GuestOnly
)

type Action int

const (
	Wait Action = iota
	Allow
	Redirect
)

type Decision struct {
	Action Action
	Path   string
}

// Decide is the whole guard rule. While the session is still being verified
// no decision is made; afterwards protected pages send guests to /register
// and guest-only pages send signed-in users home.
func Decide(snap service.SessionSnapshot, policy Policy) Decision {
	if snap.Loading {
		return Decision{Action: Wait}
	}
	switch policy {
	case Protected:
		if !snap.IsLoggedIn {
			return Decision{Action: Redirect, Path: "/register"}
		}
	case GuestOnly:
		if snap.IsLoggedIn {
			return Decision{Action: Redirect, Path: "/"}
		}
	}
	return Decision{Action: Allow}
}

type SessionSource interface {
	Snapshot() service.SessionSnapshot
}

const (
	SessionKey      = "session"
	LoadingTemplate = "loading.html"
)

// Guard applies Decide to a page route. The snapshot is stored on the
// context for the handler.
func Guard(sessions SessionSource, policy Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := sessions.Snapshot()
		decision := Decide(snap, policy)

		// Only page loads wait. A submitted guest form still runs; its
		// result supersedes the verification in flight.
		if decision.Action == Wait && !isPageLoad(c.Request.Method) {
			if policy == Protected {
				c.Header("Retry-After", "1")
				c.AbortWithStatus(http.StatusServiceUnavailable)
				return
			}
			decision = Decision{Action: Allow}
		}

		switch decision.Action {
		case Wait:
			c.Header("Cache-Control", "no-store")
			c.HTML(http.StatusOK, LoadingTemplate, gin.H{"Path": c.Request.URL.RequestURI()})
			c.Abort()
		case Redirect:
			c.Redirect(http.StatusSeeOther, decision.Path)
			c.Abort()
		default:
			c.Set(SessionKey, snap)
			c.Next()
		}
	}
}

// RequireSession guards JSON endpoints that need a signed-in user.
func RequireSession(sessions SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := sessions.Snapshot()
		if snap.Loading {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session_loading"})
			return
		}
		if !snap.IsLoggedIn {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(SessionKey, snap)
		c.Next()
	}
}

// CurrentSession returns the snapshot a guard stored, or the live one.
func CurrentSession(c *gin.Context, sessions SessionSource) service.SessionSnapshot {
	if v, ok := c.Get(SessionKey); ok {
		if snap, ok := v.(service.SessionSnapshot); ok {
			return snap
		}
	}
	return sessions.Snapshot()
}

func isPageLoad(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

package handlers

import (
	"net/http"

	"github.com/DanielPopoola/razorpay-reconciler/internal/application"
	"github.com/google/uuid"
)

// checkoutSession returns the buyer's session store, starting a new session
// if the request carries none.
func (h *Handlers) checkoutSession(w http.ResponseWriter, r *http.Request) application.SessionStore {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return h.sessions.Scoped(c.Value)
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	})
	return h.sessions.Scoped(id)
}

// existingSession returns nil when the request has no checkout session.
func (h *Handlers) existingSession(r *http.Request) application.SessionStore {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	return h.sessions.Scoped(c.Value)
}

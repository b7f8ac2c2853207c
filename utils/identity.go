package utils

import (
	"net/http"
	"time"

	"vastra/globals"
	"vastra/models"
)

const sessionCookieName = "sessionId"

// GetUserIDFromRequest returns the authenticated user id, or "" for guests.
func GetUserIDFromRequest(r *http.Request) string {
	if userID, ok := r.Context().Value(globals.UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// GetIdentity resolves who the request acts as without minting anything.
func GetIdentity(r *http.Request) models.Identity {
	if userID := GetUserIDFromRequest(r); userID != "" {
		return models.Identity{UserID: userID}
	}
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		return models.Identity{SessionID: c.Value}
	}
	return models.Identity{}
}

// EnsureIdentity is GetIdentity, but assigns a session cookie on the first
// anonymous cart interaction so the guest cart has a stable identity.
func EnsureIdentity(w http.ResponseWriter, r *http.Request) models.Identity {
	id := GetIdentity(r)
	if !id.IsZero() {
		return id
	}
	sessionID := GetUUID()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
		MaxAge:   int(24 * time.Hour / time.Second),
	})
	return models.Identity{SessionID: sessionID}
}

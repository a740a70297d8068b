// Package session derives a stable identity for each inbound cart signal.
// Anonymous shoppers are keyed by an opaque cookie-carried id; the cookie
// is minted here on first contact. Authenticated identity, when present,
// rides alongside the session id and takes precedence for contact
// resolution in the recorder.
package session

import (
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DefaultCookieName is the session cookie used when none is configured.
const DefaultCookieName = "cart_session_id"

// DefaultCookieTTL is the default session cookie lifetime.
const DefaultCookieTTL = 30 * 24 * time.Hour

const fallbackAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Resolve returns the session id for the request, minting a fresh one when
// the cookie is absent or blank. The second return value reports whether a
// new id was minted (the caller is then responsible for setting the cookie
// on the response once the record is actually persisted).
//
// Id minting never fails: when UUID generation cannot read entropy, a
// lower-entropy time-seeded id is used instead. A degraded session id is
// strictly better than a blocked storefront request.
func Resolve(c *gin.Context, cookieName string) (string, bool) {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if v, err := c.Cookie(cookieName); err == nil {
		if v = strings.TrimSpace(v); v != "" {
			return v, false
		}
	}
	return MintID(), true
}

// MintID generates an opaque session identifier. UUIDv4 when entropy is
// available, otherwise a time-seeded random string.
func MintID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	return fallbackID()
}

// fallbackID builds a "sess_<unix-nano>_<9 random chars>" identifier. Low
// entropy is acceptable here: the id only needs to be unique enough to key
// a shopping session, and collisions degrade to merged tracking records,
// not data loss.
func fallbackID() string {
	var b strings.Builder
	b.WriteString("sess_")
	b.WriteString(strconv.FormatInt(time.Now().UnixNano(), 36))
	b.WriteByte('_')
	for i := 0; i < 9; i++ {
		b.WriteByte(fallbackAlphabet[rand.Intn(len(fallbackAlphabet))])
	}
	return b.String()
}

// SetCookie writes the session cookie on the response. The cookie is
// intentionally not HTTP-only: the storefront script reads it to attach
// the session id to heartbeat posts. SameSite=Lax keeps it off cross-site
// subrequests without breaking top-level navigation back to the shop.
func SetCookie(c *gin.Context, cookieName, sessionID string, ttl time.Duration) {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if ttl <= 0 {
		ttl = DefaultCookieTTL
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     cookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	})
}

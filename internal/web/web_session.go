package web

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/go-while/pugboard/internal/models"
)

const (
	sessionCookieName = "pugboard_session"
	sessionContextKey = "session"

	// last_seen is written at most this often per session
	sessionTouchInterval = time.Minute
)

// SessionMiddleware attaches the visitor's session to the request when the
// cookie names a live one. Sessions are only created by ensureSession, when
// a page with a form is rendered.
func (s *WebServer) SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var session *models.Session

		if cookie, err := c.Cookie(sessionCookieName); err == nil {
			if id, ok := s.verifySessionCookie(cookie); ok {
				got, err := s.DB.GetSession(ctx, id, s.Config.SessionTimeout)
				switch {
				case err == nil:
					session = got
				case !errors.Is(err, models.ErrSessionNotFound):
					s.Logger.Warn("[WEB]: session lookup failed", zap.Error(err))
				}
			}
		}

		if session != nil {
			if time.Since(session.LastSeen) > sessionTouchInterval {
				if err := s.DB.TouchSession(ctx, session.ID); err != nil {
					s.Logger.Warn("[WEB]: failed to extend session", zap.Error(err))
				} else {
					// the browser expires the cookie MaxAge after it was last set
					s.setSessionCookie(c, session.ID)
				}
			}
			c.Set(sessionContextKey, session)
		}
		c.Next()
	}
}

// ensureSession returns the request's session, starting a new one with a
// fresh anti-forgery token if the visitor has none yet
func (s *WebServer) ensureSession(c *gin.Context) (*models.Session, error) {
	if session := sessionFrom(c); session != nil {
		return session, nil
	}
	session, err := s.DB.CreateSession(c.Request.Context())
	if err != nil {
		return nil, err
	}
	s.setSessionCookie(c, session.ID)
	c.Set(sessionContextKey, session)
	return session, nil
}

// sessionFrom returns the session stored by SessionMiddleware
func sessionFrom(c *gin.Context) *models.Session {
	v, ok := c.Get(sessionContextKey)
	if !ok {
		return nil
	}
	session, _ := v.(*models.Session)
	return session
}

// validToken compares a submitted anti-forgery token with the session's in constant time
func validToken(session *models.Session, submitted string) bool {
	if session == nil || session.CSRFToken == "" || submitted == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(session.CSRFToken), []byte(submitted)) == 1
}

// sessionMAC is a keyed BLAKE2b-256 over the session id
func (s *WebServer) sessionMAC(id string) string {
	h, err := blake2b.New256(s.sessionKey)
	if err != nil {
		// key length is checked in loadSessionKey
		panic(err)
	}
	h.Write([]byte(id))
	return hex.EncodeToString(h.Sum(nil))
}

func (s *WebServer) signSessionID(id string) string {
	return id + "." + s.sessionMAC(id)
}

// verifySessionCookie returns the session id if the cookie's MAC matches
func (s *WebServer) verifySessionCookie(value string) (string, bool) {
	id, mac, ok := strings.Cut(value, ".")
	if !ok || id == "" || mac == "" {
		return "", false
	}
	want := s.sessionMAC(id)
	if subtle.ConstantTimeCompare([]byte(mac), []byte(want)) != 1 {
		return "", false
	}
	return id, true
}

// Helper function to set session cookie
func (s *WebServer) setSessionCookie(c *gin.Context, sessionID string) {
	// Detect HTTPS from the current request perspective only
	// Prefer actual TLS on the request or trusted reverse proxy header
	isHTTPS := c.Request != nil && (c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https"))

	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    s.signSessionID(sessionID),
		Path:     "/",
		MaxAge:   int(s.Config.SessionTimeout.Seconds()),
		HttpOnly: true,
		Secure:   isHTTPS,
		SameSite: http.SameSiteLaxMode,
	}
	http.SetCookie(c.Writer, cookie)
}

package httpserver

import (
	"errors"
	"log"
	"net/http"

	"shopcart/internal/session"

	"github.com/gin-gonic/gin"
)

const sessionCtxKey = "session"

// sessionMiddleware loads the visitor session named by the cookie. Unknown or
// expired ids get a fresh session which is only persisted once modified.
func sessionMiddleware(store session.Store, cookieName string, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sess *session.Session
		if id, err := c.Cookie(cookieName); err == nil && id != "" {
			loaded, err := store.Load(c.Request.Context(), id)
			switch {
			case err == nil:
				sess = loaded
			case errors.Is(err, session.ErrNotFound):
			default:
				logger.Printf("session: load error=%v", err)
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
				return
			}
		}
		if sess == nil {
			sess = session.New(session.NewID())
		}
		c.Set(sessionCtxKey, sess)
		c.Next()
	}
}

func sessionFrom(c *gin.Context) *session.Session {
	v, ok := c.Get(sessionCtxKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*session.Session)
	return sess
}

// flushSession persists a modified session and refreshes the cookie. It must
// run before the response body is written. On failure it writes the error
// response and returns false.
func (h *cartHandlers) flushSession(c *gin.Context, sess *session.Session) bool {
	if !sess.Modified() {
		return true
	}
	if err := h.sessions.Save(c.Request.Context(), sess); err != nil {
		if errors.Is(err, session.ErrConflict) {
			h.metrics.SessionSave("conflict")
			h.logger.Printf("session: save id=%s conflict", sess.ID())
			c.JSON(http.StatusConflict, gin.H{"error": "cart was modified by another request, retry"})
			return false
		}
		h.metrics.SessionSave("error")
		h.logger.Printf("session: save id=%s error=%v", sess.ID(), err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
		return false
	}
	h.metrics.SessionSave("ok")

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, sess.ID(), int(h.cookie.TTL.Seconds()), "/", "", h.cookie.Secure, true)
	return true
}

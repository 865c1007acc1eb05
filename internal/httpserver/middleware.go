package httpserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"petapt/internal/session"
)

const (
	sessionHeader = "X-Session-Token"
	sessionCtxKey = "session"
)

func sessionMiddleware(tokens *SessionTokens, sessions SessionRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := sessionToken(c.Request)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("missing session token"))
			return
		}
		id, err := tokens.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(err.Error()))
			return
		}
		sess, err := sessions.Get(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}
		c.Set(sessionCtxKey, sess)
		c.Next()
	}
}

func sessionToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get(sessionHeader))
}

func currentSession(c *gin.Context) *session.Session {
	return c.MustGet(sessionCtxKey).(*session.Session)
}

package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "

	// AccessCookie and RefreshCookie are the browser transport for the
	// token pair. Both are httpOnly; max-age matches the token TTL.
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

// extractor pulls a candidate access token from one transport.
// Extractors are tried in fixed priority order; the first non-empty
// candidate wins.
type extractor func(*gin.Context) string

var accessExtractors = []extractor{fromBearerHeader, fromAccessCookie}

func fromBearerHeader(c *gin.Context) string {
	raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
	if !strings.HasPrefix(raw, bearerPrefix) {
		return ""
	}
	return strings.TrimPrefix(raw, bearerPrefix)
}

func fromAccessCookie(c *gin.Context) string {
	v, err := c.Cookie(AccessCookie)
	if err != nil {
		return ""
	}
	return v
}

// RequireSession verifies an access token and injects the caller identity
// into the request context. Missing, malformed, and expired tokens all
// produce the same 401 body; the cause is never distinguished to the caller.
func RequireSession(codec *Codec) gin.HandlerFunc {
	return func(c *gin.Context) {
		var raw string
		for _, ex := range accessExtractors {
			if raw = ex(c); raw != "" {
				break
			}
		}
		if raw == "" {
			abortUnauthenticated(c)
			return
		}

		claims, ok := codec.Verify(raw, TokenKindAccess, time.Now())
		if !ok {
			abortUnauthenticated(c)
			return
		}

		id := claims.Identity()
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))

		// Also store on gin context for handler convenience.
		c.Set("user_id", id.UserID)

		c.Next()
	}
}

func abortUnauthenticated(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
}

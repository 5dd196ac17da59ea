package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"codelink-platform/internal/auth"
	"codelink-platform/internal/config"
	"codelink-platform/internal/github"
	"codelink-platform/internal/session"
	"codelink-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups the session HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Issuer   *session.Issuer
	States   *session.StateStore
	Provider *github.Client
	Codec    *auth.Codec

	Web        config.WebConfig
	Production bool
}

// Login starts the OAuth flow: issue a one-time state and redirect the
// browser to the provider's authorize page.
func (h Handlers) Login(c *gin.Context) {
	state, err := h.States.Issue(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("state issue failed", "err", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "login unavailable"})
		return
	}
	c.Redirect(http.StatusFound, h.Provider.AuthorizeURL(state))
}

// Callback is the redirect-with-cookies variant of the code exchange:
// the browser lands here from the provider, gets session cookies, and is
// sent back to the frontend.
func (h Handlers) Callback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing code parameter"})
		return
	}

	ok, err := h.States.Consume(c.Request.Context(), c.Query("state"))
	if err != nil {
		logger.FromGin(c).Error("state consume failed", "err", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "login unavailable"})
		return
	}
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid or expired state"})
		return
	}

	pair, _, err := h.Issuer.Login(c.Request.Context(), code)
	if err != nil {
		h.abortWithTaxonomy(c, err)
		return
	}

	h.setSessionCookies(c, pair)
	c.Redirect(http.StatusFound, strings.TrimSuffix(h.Web.FrontendURL, "/")+"/auth/callback")
}

type exchangeRequest struct {
	Code string `json:"code"`
}

// Exchange is the JSON variant of the code exchange for API clients that
// carry tokens in headers instead of cookies.
func (h Handlers) Exchange(c *gin.Context) {
	var req exchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "code required"})
		return
	}

	pair, u, err := h.Issuer.Login(c.Request.Context(), req.Code)
	if err != nil {
		h.abortWithTaxonomy(c, err)
		return
	}

	h.setSessionCookies(c, pair)
	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"user":          u,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh trades a valid refresh token for a brand-new pair. The token is
// taken from the refresh cookie first, then the Authorization header,
// then the JSON body.
func (h Handlers) Refresh(c *gin.Context) {
	raw := refreshTokenFrom(c)
	if raw == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing refresh token"})
		return
	}

	pair, err := h.Issuer.Refresh(raw)
	if err != nil {
		h.abortWithTaxonomy(c, err)
		return
	}

	h.setSessionCookies(c, pair)
	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// Logout clears the transport-level credential storage. Issued tokens
// stay valid until natural expiry; there is no server-side revocation.
func (h Handlers) Logout(c *gin.Context) {
	h.clearSessionCookies(c)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Current returns the account behind the authenticated request.
func (h Handlers) Current(c *gin.Context) {
	id, err := auth.IdentityFrom(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	u, err := h.Issuer.CurrentUser(c.Request.Context(), id.UserID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func refreshTokenFrom(c *gin.Context) string {
	if v, err := c.Cookie(auth.RefreshCookie); err == nil && v != "" {
		return v
	}
	if raw := strings.TrimSpace(c.GetHeader("Authorization")); strings.HasPrefix(raw, "Bearer ") {
		return strings.TrimPrefix(raw, "Bearer ")
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err == nil {
		return req.RefreshToken
	}
	return ""
}

func (h Handlers) setSessionCookies(c *gin.Context, pair auth.TokenPair) {
	h.applyCookiePolicy(c)
	c.SetCookie(auth.AccessCookie, pair.AccessToken, int(h.Codec.AccessTTL().Seconds()), "/", h.Web.CookieDomain, h.Production, true)
	c.SetCookie(auth.RefreshCookie, pair.RefreshToken, int(h.Codec.RefreshTTL().Seconds()), "/", h.Web.CookieDomain, h.Production, true)
}

func (h Handlers) clearSessionCookies(c *gin.Context) {
	h.applyCookiePolicy(c)
	c.SetCookie(auth.AccessCookie, "", -1, "/", h.Web.CookieDomain, h.Production, true)
	c.SetCookie(auth.RefreshCookie, "", -1, "/", h.Web.CookieDomain, h.Production, true)
}

func (h Handlers) applyCookiePolicy(c *gin.Context) {
	// Cross-site frontends need SameSite=None, which requires Secure.
	if h.Production {
		c.SetSameSite(http.SameSiteNoneMode)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
}

// abortWithTaxonomy maps session errors to HTTP outcomes. Only taxonomy
// kinds cross this boundary; raw provider detail stays in the logs.
func (h Handlers) abortWithTaxonomy(c *gin.Context, err error) {
	log := logger.FromGin(c)
	switch {
	case errors.Is(err, session.ErrProviderExchange):
		log.Warn("code exchange rejected", "err", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
	case errors.Is(err, session.ErrIdentityIncomplete):
		log.Warn("identity incomplete", "err", err)
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "account has no verified email"})
	case errors.Is(err, session.ErrRefreshRejected):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "refresh rejected"})
	case errors.Is(err, session.ErrUpstreamUnavailable):
		log.Error("identity provider unavailable", "err", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "identity provider unavailable"})
	default:
		log.Error("authentication failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

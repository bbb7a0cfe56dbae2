package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jack/url-shortener-platform/internal/config"
	"github.com/jack/url-shortener-platform/internal/model"
)

// Gateway terminates client HTTP and fans out to the shortener, redirector
// and user service. One HTTP client per downstream for connection reuse.
type Gateway struct {
	auth  *Authenticator
	cache *TokenCache

	shortenerClient  *http.Client
	redirectorClient *http.Client
	userClient       *http.Client

	shortenerURL   string
	redirectorURL  string
	userServiceURL string
}

func New(cfg *config.GatewayConfig, cache *TokenCache) *Gateway {
	userClient := &http.Client{Timeout: 10 * time.Second}
	return &Gateway{
		auth:             NewAuthenticator(cache, userClient, cfg.UserServiceURL, cfg.JWTSecret),
		cache:            cache,
		shortenerClient:  &http.Client{Timeout: 10 * time.Second},
		redirectorClient: &http.Client{Timeout: 10 * time.Second},
		userClient:       userClient,
		shortenerURL:     strings.TrimRight(cfg.ShortenerURL, "/"),
		redirectorURL:    strings.TrimRight(cfg.RedirectorURL, "/"),
		userServiceURL:   strings.TrimRight(cfg.UserServiceURL, "/"),
	}
}

// Routes registers every gateway route on the engine.
func (g *Gateway) Routes(r *gin.Engine) {
	r.GET("/health", g.Health)

	r.POST("/shorten", g.RequireAuth("access"), g.Shorten)
	r.GET("/r/:shortcode", g.Redirect)
	r.POST("/lookup/user/", g.RequireAuth("access"), g.LookupUserURLs)

	r.GET("/users", g.ListUsers)
	r.POST("/users", g.RegisterUser)
	r.GET("/users/:user_id", g.RequireAuth("access"), g.GetUser)
	r.PUT("/users/:user_id", g.RequireAuth("access"), g.UpdateUser)
	r.DELETE("/users/:user_id", g.RequireAuth("access"), g.DeleteUser)
	r.PUT("/users/:user_id/password", g.RequireAuth("access"), g.ChangePassword)

	r.POST("/auth/login", g.Login)
	r.POST("/auth/logout", g.Logout)
	r.POST("/auth/refresh", g.Refresh)
	r.POST("/auth/validate-token", g.ValidateToken)
}

func respondUpstreamError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, model.Fail(message))
}

// RequireAuth gates a route on a valid bearer token of the given type. The
// reason string in the 401 body is diagnostic, not contractual.
func (g *Gateway) RequireAuth(tokenType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := g.auth.ValidateToken(c.Request.Context(), c.Request.Header, tokenType)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.Fail(err.Error()))
			return
		}
		c.Set("claims", claims)
		c.Next()
	}
}

func (g *Gateway) Health(c *gin.Context) {
	c.String(http.StatusOK, "API Gateway is healthy")
}

// Shorten forwards the request to the shortener and wraps its response in
// the gateway envelope.
func (g *Gateway) Shorten(c *gin.Context) {
	resp, payload, err := g.forward(c, g.shortenerClient, http.MethodPost, g.shortenerURL+"/shorten")
	if err != nil {
		respondUpstreamError(c, "Failed to connect to shortener service")
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.JSON(resp.StatusCode, model.Fail("Shortener service error"))
		return
	}

	var data model.ShortenResponse
	if err := json.Unmarshal(payload, &data); err != nil {
		respondUpstreamError(c, "Failed to parse shortener service response")
		return
	}

	c.JSON(http.StatusOK, model.OK(data))
}

// Redirect resolves a short code through the redirector.
func (g *Gateway) Redirect(c *gin.Context) {
	shortcode := c.Param("shortcode")

	resp, payload, err := g.forward(c, g.redirectorClient, http.MethodGet, g.redirectorURL+"/"+shortcode)
	if err != nil {
		respondUpstreamError(c, "Failed to connect to redirect service")
		return
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var data model.RedirectResponse
		if err := json.Unmarshal(payload, &data); err != nil {
			respondUpstreamError(c, "Failed to parse redirect service response")
			return
		}
		c.JSON(http.StatusOK, model.OK(data))
	case resp.StatusCode == http.StatusNotFound:
		c.JSON(http.StatusNotFound, model.Fail("Shortcode not found"))
	case resp.StatusCode == http.StatusGone:
		c.JSON(http.StatusGone, model.Fail("Short URL has expired"))
	default:
		c.JSON(http.StatusInternalServerError, model.Fail("Redirect service error"))
	}
}

// LookupUserURLs forwards the owner lookup to the shortener.
func (g *Gateway) LookupUserURLs(c *gin.Context) {
	target := g.shortenerURL + "/lookup/user/?" + c.Request.URL.RawQuery

	resp, payload, err := g.forward(c, g.shortenerClient, http.MethodPost, target)
	if err != nil {
		respondUpstreamError(c, "Failed to connect to shortener service")
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.JSON(resp.StatusCode, model.Fail("Shortener service error"))
		return
	}

	var data []model.URLInfoResponse
	if err := json.Unmarshal(payload, &data); err != nil {
		respondUpstreamError(c, "Failed to parse shortener service response")
		return
	}

	c.JSON(http.StatusOK, model.OK(data))
}

// User service passthroughs. Bodies already carry the envelope.

func (g *Gateway) ListUsers(c *gin.Context) {
	g.passthrough(c, g.userClient, http.MethodGet, g.userServiceURL+"/users")
}

func (g *Gateway) RegisterUser(c *gin.Context) {
	g.passthrough(c, g.userClient, http.MethodPost, g.userServiceURL+"/users")
}

func (g *Gateway) GetUser(c *gin.Context) {
	g.passthrough(c, g.userClient, http.MethodGet, g.userServiceURL+"/users/"+c.Param("user_id"))
}

func (g *Gateway) UpdateUser(c *gin.Context) {
	g.passthrough(c, g.userClient, http.MethodPut, g.userServiceURL+"/users/"+c.Param("user_id"))
}

func (g *Gateway) DeleteUser(c *gin.Context) {
	g.passthrough(c, g.userClient, http.MethodDelete, g.userServiceURL+"/users/"+c.Param("user_id"))
}

func (g *Gateway) ChangePassword(c *gin.Context) {
	g.passthrough(c, g.userClient, http.MethodPut, g.userServiceURL+"/users/"+c.Param("user_id")+"/password")
}

// Login proxies to the user service and, on success, primes the token cache
// with the freshly issued access token.
func (g *Gateway) Login(c *gin.Context) {
	g.proxyAuthIssuing(c, g.userServiceURL+"/auth/login")
}

// Refresh behaves like Login for the refresh flow.
func (g *Gateway) Refresh(c *gin.Context) {
	g.proxyAuthIssuing(c, g.userServiceURL+"/auth/refresh")
}

func (g *Gateway) proxyAuthIssuing(c *gin.Context, target string) {
	resp, payload, err := g.forward(c, g.userClient, http.MethodPost, target)
	if err != nil {
		respondUpstreamError(c, "Failed to connect to user service")
		return
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var body struct {
			Data model.LoginResult `json:"data"`
		}
		if err := json.Unmarshal(payload, &body); err == nil &&
			body.Data.AccessToken != "" && body.Data.UserID != "" {
			expiresAt := g.auth.CacheExpiry(body.Data.AccessToken)
			g.cache.Store(body.Data.AccessToken, body.Data.UserID, expiresAt)
		}
	}

	c.Data(resp.StatusCode, "application/json", payload)
}

// Logout invalidates the token locally before forwarding. The local cache is
// the only security-relevant state the gateway controls, so the client sees
// success even when the user service is unreachable.
func (g *Gateway) Logout(c *gin.Context) {
	token, err := BearerToken(c.Request.Header)
	if err != nil {
		c.JSON(http.StatusUnauthorized, model.Fail(err.Error()))
		return
	}

	g.cache.Invalidate(token)

	if _, _, err := g.forward(c, g.userClient, http.MethodPost, g.userServiceURL+"/auth/logout"); err != nil {
		log.Printf("logout forward failed: err=%v", err)
	}

	c.JSON(http.StatusOK, model.Response{Success: true, Message: "Logout successful"})
}

// ValidateToken answers from the cache when possible and otherwise defers to
// the user service, caching only positive verdicts.
func (g *Gateway) ValidateToken(c *gin.Context) {
	var req model.ValidateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		c.JSON(http.StatusBadRequest, model.Fail("token is required"))
		return
	}
	if req.TokenType == "" {
		req.TokenType = "access"
	}

	if info, ok := g.cache.Get(req.Token); ok {
		c.JSON(http.StatusOK, model.OK(model.ValidateTokenResponse{Valid: true, UserID: info.UserID}))
		return
	}

	valid, userID, err := g.auth.remoteValidate(c.Request.Context(), req.Token, req.TokenType)
	if err != nil {
		respondUpstreamError(c, "Failed to validate token with user service")
		return
	}

	if valid {
		g.cache.Store(req.Token, userID, g.auth.CacheExpiry(req.Token))
	}

	c.JSON(http.StatusOK, model.OK(model.ValidateTokenResponse{Valid: valid, UserID: userID}))
}

package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/nostrauth/core"
	"github.com/layer-3/nostrauth/service"
)

const protocolName = "NIP-42"

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

type userResponse struct {
	ID       string  `json:"id"`
	Npub     string  `json:"npub"`
	Nip05    *string `json:"nip05,omitempty"`
	Role     string  `json:"role"`
	IsActive bool    `json:"is_active"`
}

type signInData struct {
	User          userResponse `json:"user"`
	Authenticated bool         `json:"authenticated"`
	SessionToken  string       `json:"sessionToken"`
}

type signInMeta struct {
	Timestamp        time.Time `json:"timestamp"`
	Protocol         string    `json:"protocol"`
	PrivacyCompliant bool      `json:"privacyCompliant"`
}

type signInResponse struct {
	Success           bool                   `json:"success"`
	Data              signInData             `json:"data"`
	SovereigntyStatus core.SovereigntyStatus `json:"sovereigntyStatus"`
	Meta              signInMeta             `json:"meta"`
}

// Challenge issues a fresh sign-in challenge
func (h *AuthHandlers) Challenge(c *gin.Context) {
	var req struct {
		Domain string `json:"domain" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, core.StateStructureInvalid.Message())
		return
	}

	ch, err := h.authService.CreateChallenge(c.Request.Context(), c.ClientIP(), req.Domain)
	if err != nil {
		var authErr *core.AuthError
		if errors.As(err, &authErr) {
			fail(c, authErr.State.HTTPStatus(), authErr.State.Message())
			return
		}
		fail(c, http.StatusInternalServerError, "Failed to create challenge")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"sessionId": ch.SessionID,
			"nonce":     ch.Nonce,
			"challenge": ch.Text,
			"domain":    ch.Domain,
			"expiresAt": ch.ExpiresAt.UTC(),
		},
	})
}

// SignIn runs the signed-event authentication protocol
func (h *AuthHandlers) SignIn(c *gin.Context) {
	// A body that does not decode is passed on as nil; the orchestrator
	// rejects it only after the caller rate limit.
	var req *core.AuthRequest
	var body core.AuthRequest
	if err := c.ShouldBindJSON(&body); err == nil {
		req = &body
	}

	res, err := h.authService.Authenticate(c.Request.Context(), c.ClientIP(), req)
	if err != nil {
		var authErr *core.AuthError
		if !errors.As(err, &authErr) {
			fail(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		fail(c, authErr.State.HTTPStatus(), authErr.State.Message())
		return
	}

	setCookie(c, res.Session.RefreshCookie)
	c.JSON(http.StatusOK, signInResponse{
		Success: true,
		Data: signInData{
			User: userResponse{
				ID:       res.Account.ID,
				Npub:     res.Account.Npub,
				Nip05:    res.Account.Nip05,
				Role:     res.Account.Role.String(),
				IsActive: res.Account.IsActive,
			},
			Authenticated: true,
			SessionToken:  res.Session.AccessToken,
		},
		SovereigntyStatus: res.Sovereignty,
		Meta: signInMeta{
			Timestamp:        res.At.UTC(),
			Protocol:         protocolName,
			PrivacyCompliant: true,
		},
	})
}

// Refresh rotates the refresh cookie and returns a new access token
func (h *AuthHandlers) Refresh(c *gin.Context) {
	refreshToken, err := c.Cookie(service.RefreshCookieName)
	if err != nil || refreshToken == "" {
		fail(c, http.StatusUnauthorized, "Missing refresh token")
		return
	}

	issued, err := h.authService.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrTokenExpired):
			fail(c, http.StatusUnauthorized, "Refresh token expired")
		case errors.Is(err, core.ErrTokenInvalidated):
			fail(c, http.StatusUnauthorized, "Refresh token has been invalidated")
		case errors.Is(err, core.ErrInvalidToken):
			fail(c, http.StatusUnauthorized, "Invalid refresh token")
		default:
			fail(c, http.StatusInternalServerError, "Failed to refresh tokens")
		}
		return
	}

	setCookie(c, issued.RefreshCookie)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"sessionToken": issued.AccessToken,
			"expiresAt":    issued.Session.AccessExpiry.UTC(),
		},
	})
}

// Logout revokes the refresh cookie's session and clears the cookie
func (h *AuthHandlers) Logout(c *gin.Context) {
	refreshToken, err := c.Cookie(service.RefreshCookieName)
	if err == nil && refreshToken != "" {
		if err := h.authService.Logout(c.Request.Context(), refreshToken); err != nil {
			if errors.Is(err, core.ErrInvalidToken) {
				fail(c, http.StatusUnauthorized, "Invalid refresh token")
			} else {
				fail(c, http.StatusInternalServerError, "Failed to logout")
			}
			return
		}
	}

	setCookie(c, h.authService.ClearRefreshCookie())
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}

// Me returns information about the authenticated user
func (h *AuthHandlers) Me(c *gin.Context) {
	// Session is set by the auth middleware
	session, ok := sessionFrom(c)
	if !ok {
		fail(c, http.StatusInternalServerError, "Session not found in context")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"id":          session.Subject,
			"role":        session.Role.String(),
			"nip05":       session.Nip05,
			"sovereignty": session.Role.Sovereignty(),
			"expiresAt":   session.AccessExpiry.UTC(),
		},
	})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

func setCookie(c *gin.Context, ck core.Cookie) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     ck.Name,
		Value:    ck.Value,
		Path:     ck.Path,
		MaxAge:   ck.MaxAge,
		HttpOnly: ck.HTTPOnly,
		Secure:   ck.Secure,
		SameSite: ck.SameSite,
	})
}

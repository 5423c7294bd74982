package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/blockfall/backend/pkg/auth"
	"github.com/iamasit07/blockfall/backend/pkg/httputil"
	"github.com/rs/zerolog/log"
)

const maxUsernameLength = 20

type TicketIssuer interface {
	Issue(username string) (string, *auth.Claims, error)
	ValidateTicket(token string) (*auth.Claims, error)
}

type AuthHandler struct {
	Tickets      TicketIssuer
	TicketTTL    time.Duration
	SecureCookie bool
}

func NewAuthHandler(tickets TicketIssuer, ttl time.Duration, secureCookie bool) *AuthHandler {
	return &AuthHandler{Tickets: tickets, TicketTTL: ttl, SecureCookie: secureCookie}
}

type guestRequest struct {
	Username string `json:"username"`
}

type guestResponse struct {
	Token     string    `json:"token"`
	GuestID   string    `json:"guestId"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func validateUsername(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("username is required")
	}
	if len([]rune(name)) > maxUsernameLength {
		return "", errors.New("username must be at most 20 characters")
	}
	return name, nil
}

// GuestLogin issues a signed ticket the client presents in its websocket init frame.
func (h *AuthHandler) GuestLogin(c *gin.Context) {
	var req guestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	username, err := validateUsername(req.Username)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, claims, err := h.Tickets.Issue(username)
	if err != nil {
		log.Error().Err(err).Str("component", "http").Msg("failed to issue ticket")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue ticket"})
		return
	}

	httputil.SetTicketCookie(c.Writer, token, h.TicketTTL, h.SecureCookie)
	c.JSON(http.StatusOK, guestResponse{
		Token:     token,
		GuestID:   claims.GuestID,
		Username:  claims.Username,
		ExpiresAt: claims.ExpiresAt.Time,
	})
}

// Me reports who the presented ticket belongs to.
func (h *AuthHandler) Me(c *gin.Context) {
	token, err := httputil.GetTicketFromRequest(c.Request)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
		return
	}

	claims, err := h.Tickets.ValidateTicket(token)
	if err != nil {
		httputil.ClearTicketCookie(c.Writer)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid ticket"})
		return
	}

	c.JSON(http.StatusOK, guestResponse{
		Token:     token,
		GuestID:   claims.GuestID,
		Username:  claims.Username,
		ExpiresAt: claims.ExpiresAt.Time,
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	httputil.ClearTicketCookie(c.Writer)
	c.Status(http.StatusNoContent)
}

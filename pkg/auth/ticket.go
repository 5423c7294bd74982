package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/iamasit07/blockfall/backend/internal/domain"
	"github.com/iamasit07/blockfall/backend/pkg/uid"
)

// Claims identify a guest for the lifetime of a ticket.
type Claims struct {
	GuestID  string `json:"guest_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TicketIssuer signs and checks the guest tickets a websocket must present on init.
type TicketIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTicketIssuer(secret string, ttl time.Duration) *TicketIssuer {
	return &TicketIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue creates a ticket for a new guest called username.
func (t *TicketIssuer) Issue(username string) (string, *Claims, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", nil, domain.ErrMissingField
	}

	now := t.now()
	claims := &Claims{
		GuestID:  uid.GenerateGuestID(),
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// ValidateTicket checks the signature and expiry of a ticket and returns its claims.
func (t *TicketIssuer) ValidateTicket(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, errors.Join(domain.ErrInvalidTicket, err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, domain.ErrInvalidTicket
}

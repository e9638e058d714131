package server

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/cloudx-io/slotauction/core"
)

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

const claimsContextKey = "user"

// Claims carried by every bearer token. The subject is the bidder id.
type Claims struct {
	Username string  `json:"username,omitempty"`
	Role     string  `json:"role,omitempty"`
	Weight   float64 `json:"weight,omitempty"`
	jwt.RegisteredClaims
}

func NewClaims(userID, username, role string, weight float64, now time.Time, ttl time.Duration) Claims {
	return Claims{
		Username: username,
		Role:     role,
		Weight:   weight,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

// SignToken signs claims with HS256.
func SignToken(secret string, claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Bidder returns the bidder the claims identify. A missing weight counts as 1.0. The public
// display name is the masked username, or the masked id when there is none.
func (c *Claims) Bidder() core.Bidder {
	weight := c.Weight
	if weight == 0 {
		weight = 1.0
	}
	bidder := core.Bidder{ID: c.Subject, Weight: weight}
	if c.Username != "" {
		bidder.DisplayName = core.RedactBidderName(c.Username)
	}
	return bidder
}

// jwtAuth builds the bearer middleware. lookup selects where the token is read from.
func jwtAuth(secret, lookup string) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:  []byte(secret),
		ContextKey:  claimsContextKey,
		TokenLookup: lookup,
		NewClaimsFunc: func(echo.Context) jwt.Claims {
			return new(Claims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return fail(c, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "A valid token is required", nil)
		},
	})
}

func requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, ok := claimsFrom(c)
		if !ok || claims.Role != RoleAdmin {
			return fail(c, http.StatusForbidden, "FORBIDDEN", "Admin role required", nil)
		}
		return next(c)
	}
}

func claimsFrom(c echo.Context) (*Claims, bool) {
	token, ok := c.Get(claimsContextKey).(*jwt.Token)
	if !ok {
		return nil, false
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return nil, false
	}
	return claims, true
}

package middleware

import (
	"errors"
	"strings"
	"time"

	"csx-backend/internal/pkg/constants"
	"csx-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const userLocal = "user"

// Caller is the authenticated identity attached to a request.
type Caller struct {
	AccountID uuid.UUID  `json:"accountId"`
	Role      string     `json:"role"`
	CompanyID *uuid.UUID `json:"companyId,omitempty"`
}

// Claims is the bearer token payload. Subject holds the account id.
type Claims struct {
	Role      string `json:"role"`
	CompanyID string `json:"companyId,omitempty"`
	jwt.RegisteredClaims
}

var errBadClaims = errors.New("invalid token claims")

// GenerateToken signs an HS256 token for caller.
func GenerateToken(secret string, caller Caller, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: caller.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.AccountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if caller.CompanyID != nil {
		claims.CompanyID = caller.CompanyID.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates signature, expiry and role, and returns the caller.
func ParseToken(tokenString, secret string) (*Caller, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil || !constants.IsValidRole(claims.Role) {
		return nil, errBadClaims
	}
	caller := &Caller{AccountID: id, Role: claims.Role}
	if claims.CompanyID != "" {
		cid, err := uuid.Parse(claims.CompanyID)
		if err != nil {
			return nil, errBadClaims
		}
		caller.CompanyID = &cid
	}
	return caller, nil
}

// Authenticate attaches the Caller for a valid "Authorization: Bearer" header. Requests without
// the header pass through anonymous; a present but invalid token is rejected with 401.
func Authenticate(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return c.Next()
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			return response.Unauthorized(c, "Unauthorized")
		}
		caller, err := ParseToken(raw, secret)
		if err != nil {
			log.Debug().Err(err).Str("trace_id", GetTraceID(c)).Msg("rejected bearer token")
			return response.Unauthorized(c, "Unauthorized")
		}
		c.Locals(userLocal, caller)
		return c.Next()
	}
}

// RequireAuth ensures a caller is attached. Returns 401 with standard error format if not.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if GetCaller(c) == nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		return c.Next()
	}
}

// GetCaller returns the authenticated caller (nil if anonymous).
func GetCaller(c *fiber.Ctx) *Caller {
	caller, _ := c.Locals(userLocal).(*Caller)
	return caller
}

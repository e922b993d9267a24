// Package auth issues and validates bearer tokens and resolves the
// authenticated user of an HTTP request.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/promptvault/internal/apperr"
	"github.com/thebtf/promptvault/pkg/models"
)

// DefaultTTL is the token lifetime when none is configured.
const DefaultTTL = 24 * time.Hour

const issuer = "promptvault"

// Claims are the token claims. The subject is the user id.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Token is a signed bearer token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Issuer signs and validates HS256 tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer. The secret must not be empty.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is not configured")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for u.
func (i *Issuer) Issue(u *models.User) (*Token, error) {
	now := i.now()
	expires := now.Add(i.ttl)
	claims := Claims{
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, apperr.Internal("sign token", err)
	}
	log.Debug().Str("user_id", u.ID).Time("expires_at", expires).Msg("Token issued")
	return &Token{AccessToken: signed, TokenType: "Bearer", ExpiresAt: expires}, nil
}

// Validate parses a token and returns its claims. Every failure is an
// authentication error.
func (i *Issuer) Validate(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !token.Valid {
		log.Debug().Err(err).Msg("Token rejected")
		return nil, apperr.Unauthenticated("invalid or expired token")
	}
	if claims.Subject == "" {
		return nil, apperr.Unauthenticated("token has no subject")
	}
	return claims, nil
}

// Middleware rejects requests without a valid bearer token through onError
// and stores the user id of valid ones in the request context. The token is
// read from the Authorization header, or from the access_token query
// parameter for clients that cannot set headers (EventSource).
func (i *Issuer) Middleware(onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				onError(w, r, apperr.Unauthenticated("authentication required"))
				return
			}
			claims, err := i.Validate(raw)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.Subject)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

type ctxKey struct{}

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

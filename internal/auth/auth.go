package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims bind a token to one seat of one match.
type Claims struct {
	MatchID  string `json:"match_id"`
	PlayerID string `json:"player_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies player tokens with an HMAC secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (i *Issuer) Issue(matchID, playerID, role string) (string, error) {
	now := i.now()
	claims := Claims{
		MatchID:  matchID,
		PlayerID: playerID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.MatchID == "" || claims.PlayerID == "" {
		return nil, fmt.Errorf("%w: missing match or player", ErrInvalidToken)
	}
	return claims, nil
}

// TokenFromRequest reads a bearer token from the Authorization header, or
// from the token query parameter for websocket clients that cannot set
// headers.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}

// PlayerFromRequest resolves the player id a request acts for. A valid token
// for the same match wins over the fallback id taken from the request body or
// path. Without an issuer only the fallback is used.
func (i *Issuer) PlayerFromRequest(r *http.Request, matchID, fallback string) (string, error) {
	if i == nil {
		return fallback, nil
	}
	token := TokenFromRequest(r)
	if token == "" {
		return fallback, nil
	}
	claims, err := i.Parse(token)
	if err != nil {
		return "", err
	}
	if claims.MatchID != matchID {
		return "", fmt.Errorf("%w: token belongs to another match", ErrInvalidToken)
	}
	return claims.PlayerID, nil
}

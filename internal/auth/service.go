package auth

import (
	"fmt"
	"net/http"
	"strings"

	"collab-server/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// Service validates handshake tokens. Token issuance lives in the web
// application; this process only ever verifies.
type Service struct {
	cfg *config.Config
}

func NewService(cfg *config.Config) *Service {
	return &Service{cfg: cfg}
}

func (s *Service) ValidateToken(tokenString string) (*jwt.MapClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.cfg.JWT.Secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// UserIDFromToken verifies the token and extracts the userId claim.
func (s *Service) UserIDFromToken(tokenString string) (string, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}

	userID, ok := (*claims)["userId"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("invalid user ID in token")
	}
	return userID, nil
}

// TokenFromRequest pulls the JWT out of the websocket handshake. The
// Authorization header is preferred; browser clients that cannot set headers
// on a WebSocket send it through the subprotocol list as "bearer, <token>".
// A bare token query parameter is accepted as a legacy fallback.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimPrefix(h, "Bearer ")
		}
	}

	for _, proto := range websocketProtocols(r) {
		if proto != "bearer" {
			return proto
		}
	}

	return r.URL.Query().Get("token")
}

// BearerSubprotocol reports whether the client offered the "bearer"
// subprotocol, so the upgrade response can echo it back.
func BearerSubprotocol(r *http.Request) bool {
	for _, proto := range websocketProtocols(r) {
		if proto == "bearer" {
			return true
		}
	}
	return false
}

func websocketProtocols(r *http.Request) []string {
	raw := r.Header.Get("Sec-WebSocket-Protocol")
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	protocols := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			protocols = append(protocols, trimmed)
		}
	}
	return protocols
}

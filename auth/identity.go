package auth

import (
	"group-chat/domain"
	"group-chat/errors"
	"net/http"
	"strings"
)

// IdentityResolver turns the credentials of an upgrade request into a user id.
type IdentityResolver struct {
	tokens *TokenManager
}

func NewIdentityResolver(tokens *TokenManager) *IdentityResolver {
	return &IdentityResolver{tokens: tokens}
}

// Resolve reads the token from the "Authorization: Bearer" header, or from the
// access_token query parameter for browser clients that cannot set headers on a WebSocket.
func (i *IdentityResolver) Resolve(r *http.Request) (domain.UserID, error) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("access_token")
	}
	if token == "" {
		return "", errors.ErrMissingToken
	}

	claims, err := i.tokens.ValidateToken(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

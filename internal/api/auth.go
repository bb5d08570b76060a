package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	operatorKey contextKey = "operator"
	terminalKey contextKey = "terminal"
)

// Authenticator resolves the operator of a request from a bearer token issued
// by the external auth service. Without a secret it trusts X-Operator-ID,
// which is only meant for local development.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates an authenticator verifying HS256 tokens with secret
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Middleware rejects requests without an operator identity
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operator, err := a.operator(r)
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, err.Error())
			return
		}

		// one terminal per operator unless the client says otherwise
		terminal := r.Header.Get("X-Terminal-ID")
		if terminal == "" {
			terminal = operator
		}

		ctx := context.WithValue(r.Context(), operatorKey, operator)
		ctx = context.WithValue(ctx, terminalKey, terminal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) operator(r *http.Request) (string, error) {
	if len(a.secret) == 0 {
		if id := strings.TrimSpace(r.Header.Get("X-Operator-ID")); id != "" {
			return id, nil
		}
		return "", fmt.Errorf("missing operator")
	}

	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" || raw == r.Header.Get("Authorization") {
		// browsers cannot set headers on a websocket handshake
		raw = r.URL.Query().Get("access_token")
	}
	if raw == "" {
		return "", fmt.Errorf("missing bearer token")
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("invalid token")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}

func operatorFrom(ctx context.Context) string {
	id, _ := ctx.Value(operatorKey).(string)
	return id
}

func terminalFrom(ctx context.Context) string {
	id, _ := ctx.Value(terminalKey).(string)
	return id
}

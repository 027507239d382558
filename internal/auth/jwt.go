package auth

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Middleware requires an HMAC-signed bearer token and stores its subject as the request actor.
func Middleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				unauthorized(w, "invalid_request", "missing bearer token")
				return
			}
			a, err := ParseToken(secret, strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				unauthorized(w, "invalid_token", "invalid jwt")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), a)))
		})
	}
}

func ParseToken(secret []byte, raw string) (Actor, error) {
	var c claims
	tok, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	}, jwt.WithLeeway(30*time.Second))
	if err != nil || !tok.Valid {
		return Actor{}, jwt.ErrTokenInvalidClaims
	}
	sub, err := c.GetSubject()
	if err != nil || sub == "" {
		return Actor{}, jwt.ErrTokenInvalidSubject
	}
	role := RoleCustomer
	if Role(c.Role) == RoleStaff {
		role = RoleStaff
	}
	return Actor{ID: sub, Role: role}, nil
}

func unauthorized(w http.ResponseWriter, code, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "error_description": desc})
}

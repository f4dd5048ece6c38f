package auth

import (
	"context"
	"os"

	"github.com/golang-jwt/jwt/v4"
)

var JWTKey = []byte(jwtKeyFromEnv())

func jwtKeyFromEnv() string {
	if key := os.Getenv("JWT_KEY"); key != "" {
		return key
	}
	return "bookstore-dev-key"
}

type Claims struct {
	Profile struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"profile"`
	jwt.RegisteredClaims
}

type ctxKey int

const (
	emailKey ctxKey = iota
	roleKey
)

func SetAuthContext(ctx context.Context, email, role string) context.Context {
	ctx = context.WithValue(ctx, emailKey, email)
	return context.WithValue(ctx, roleKey, role)
}

func EmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(emailKey).(string)
	return email
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleKey).(string)
	return role
}

package apitest

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var signingKey = []byte("apitest-signing-key")

// NewAccessToken signs an access token carrying the claims the client decodes.
// userID may be a number or a string.
func NewAccessToken(userID any, username, email string, exp time.Time) string {
	return sign(jwt.MapClaims{
		"token_type": "access",
		"user_id":    userID,
		"username":   username,
		"email":      email,
		"exp":        exp.Unix(),
	})
}

// NewTokenWithoutExpiry signs an access token that has no exp claim.
func NewTokenWithoutExpiry(userID any, username, email string) string {
	return sign(jwt.MapClaims{
		"token_type": "access",
		"user_id":    userID,
		"username":   username,
		"email":      email,
	})
}

func newRefreshToken(userID any, exp time.Time) string {
	return sign(jwt.MapClaims{
		"token_type": "refresh",
		"user_id":    userID,
		"exp":        exp.Unix(),
	})
}

func sign(claims jwt.MapClaims) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(fmt.Sprintf("apitest: sign token: %v", err))
	}
	return token
}

// parseAccessToken verifies signature and expiry and returns the username.
func parseAccessToken(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["token_type"] != "access" {
		return "", errors.New("not an access token")
	}
	username, _ := claims["username"].(string)
	if username == "" {
		return "", errors.New("token has no username")
	}
	return username, nil
}

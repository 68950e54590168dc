// Package auth carries the authenticated principal across the HTTP boundary.
// Identity provisioning (registration, OAuth, OTP) lives outside this
// service; a configured credential list stands in for the external identity
// provider.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/snipd/snipd/internal"
)

const (
	cookieName  = "auth_token"
	tokenExpiry = 30 * 24 * time.Hour
)

type authClaims struct {
	jwt.RegisteredClaims
}

type Credentials struct {
	Email    string
	Password string
}

// ParseCredentialList parses "email:password" pairs separated by commas.
func ParseCredentialList(s string) ([]Credentials, error) {
	var out []Credentials
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		email, password, ok := strings.Cut(pair, ":")
		if !ok || email == "" || password == "" {
			return nil, fmt.Errorf("invalid credentials entry %q", pair)
		}
		out = append(out, Credentials{Email: email, Password: password})
	}
	if len(out) == 0 {
		return nil, errors.New("no credentials configured")
	}
	return out, nil
}

// Users is the slice of the user store the authenticator needs.
type Users interface {
	GetOrCreateByEmail(ctx context.Context, email string) (*internal.User, error)
}

type Authenticator struct {
	credentials []Credentials
	users       Users
	jwtSecret   string
}

func NewAuthenticator(credentials []Credentials, users Users, jwtSecret string) *Authenticator {
	return &Authenticator{credentials: credentials, users: users, jwtSecret: jwtSecret}
}

// Login checks the supplied pair against the configured list, provisions the
// user row on first sight and returns a session cookie whose value is a
// signed token carrying the user id as subject.
func (a *Authenticator) Login(ctx context.Context, email, password string) (*http.Cookie, error) {
	if !a.checkCredentials(email, password) {
		return nil, internal.ErrUnauthorized
	}

	user, err := a.users.GetOrCreateByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	return a.generateCookie(user.ID)
}

func (a *Authenticator) checkCredentials(email, password string) bool {
	for _, c := range a.credentials {
		if c.Email == email && c.Password == password {
			return true
		}
	}
	return false
}

func (a *Authenticator) signJWT(userID string) (string, error) {
	now := jwt.NewNumericDate(time.Now())
	claims := &authClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  now,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenExpiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (a *Authenticator) checkJWT(tokenStr string) (*authClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &authClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(a.jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*authClaims)
	if !ok || claims.Subject == "" {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

func (a *Authenticator) generateCookie(userID string) (*http.Cookie, error) {
	token, err := a.signJWT(userID)
	if err != nil {
		return nil, err
	}

	cookie := &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   false, // Set to true in production with HTTPS
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(tokenExpiry / time.Second),
	}
	return cookie, nil
}

func ExpireCookie() *http.Cookie {
	return &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	}
}

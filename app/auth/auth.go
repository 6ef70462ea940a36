// Package auth decides whether a request may change posts. Credentials are
// a single configured username with a bcrypt password hash; clients trade
// them for short lived HS256 bearer tokens.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Token types carried in the typ claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	ErrInvalidCredentials = errors.New("no active account found with the given credentials")
	ErrMissingToken       = errors.New("authentication credentials were not provided")
	ErrInvalidToken       = errors.New("token is invalid or expired")
	ErrWrongTokenType     = errors.New("token has wrong type")
)

// Authenticator yields a per-request decision: the authenticated subject,
// or an error explaining why the request is anonymous.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(r *http.Request) (string, error)

func (f AuthenticatorFunc) Authenticate(r *http.Request) (string, error) {
	return f(r)
}

// Credentials holds the one account allowed to sign in.
type Credentials struct {
	Username     string
	PasswordHash string
}

// Check compares username and password against the configured account.
func (c Credentials) Check(username, password string) error {
	if c.Username == "" || c.PasswordHash == "" {
		return ErrInvalidCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.Username)) == 1
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil || !userOK {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword returns a bcrypt hash suitable for Credentials.PasswordHash.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Claims are the JWT claims issued by Tokens.
type Claims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair is returned when signing in.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Tokens issues and verifies signed bearer tokens.
type Tokens struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokens signs with key. Zero TTLs fall back to five minutes for access
// tokens and one day for refresh tokens.
func NewTokens(key []byte, accessTTL, refreshTTL time.Duration) *Tokens {
	if accessTTL <= 0 {
		accessTTL = 5 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 24 * time.Hour
	}
	return &Tokens{key: key, accessTTL: accessTTL, refreshTTL: refreshTTL, now: time.Now}
}

// Issue returns a fresh access/refresh pair for subject.
func (t *Tokens) Issue(subject string) (TokenPair, error) {
	access, err := t.sign(subject, TypeAccess, t.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := t.sign(subject, TypeRefresh, t.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh trades a valid refresh token for a new access token.
func (t *Tokens) Refresh(refreshToken string) (string, error) {
	claims, err := t.Verify(refreshToken, TypeRefresh)
	if err != nil {
		return "", err
	}
	return t.sign(claims.Subject, TypeAccess, t.accessTTL)
}

// Verify parses token and checks its signature, expiry and type.
func (t *Tokens) Verify(token, typ string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Type != typ {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// Authenticate accepts requests carrying "Authorization: Bearer <access>".
func (t *Tokens) Authenticate(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrInvalidToken
	}

	claims, err := t.Verify(strings.TrimSpace(token), TypeAccess)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (t *Tokens) sign(subject, typ string, ttl time.Duration) (string, error) {
	now := t.now()
	claims := Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

type subjectKey struct{}

// WithSubject returns a copy of ctx carrying the authenticated subject.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFrom returns the subject stored by WithSubject.
func SubjectFrom(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey{}).(string)
	return s, ok
}

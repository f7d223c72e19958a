// Package auth is the identity provider: email/password accounts with
// bcrypt hashes, Google federated sign-in, and JWT session tokens. The
// current identity is republished on a feed topic so in-process
// consumers can react to sign-in and sign-out.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/api/idtoken"

	"finledger/internal/feed"
	"finledger/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid session token")
	ErrWeakPassword       = errors.New("password too short (min 6)")
	ErrInvalidEmail       = errors.New("invalid email address")
)

// Identity is the authenticated principal passed explicitly into every
// ledger operation. A nil *Identity means "not signed in".
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
}

type Provider struct {
	store          store.Store
	secret         []byte
	tokenTTL       time.Duration
	googleClientID string

	current *feed.Topic[*Identity]
}

func NewProvider(st store.Store, secret []byte, tokenTTL time.Duration, googleClientID string) *Provider {
	return &Provider{
		store:          st,
		secret:         secret,
		tokenTTL:       tokenTTL,
		googleClientID: googleClientID,
		current:        feed.NewTopic[*Identity](),
	}
}

// SignUp registers a new account and signs it in.
func (p *Provider) SignUp(ctx context.Context, name, email, password string) (*Identity, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if !strings.Contains(email, "@") {
		return nil, "", ErrInvalidEmail
	}
	if len(password) < 6 {
		return nil, "", ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	u := store.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  strings.TrimSpace(name),
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := p.store.InsertUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, "", ErrEmailTaken
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	return p.establishSession(u)
}

// SignIn authenticates an email/password pair.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*Identity, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	u, err := p.store.UserByEmail(ctx, email)
	if err != nil {
		return nil, "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}
	return p.establishSession(u)
}

// SignInWithGoogleToken validates a Google ID token and signs the
// account in, creating it on first federated login. Federated accounts
// carry no usable password hash.
func (p *Provider) SignInWithGoogleToken(ctx context.Context, rawToken string) (*Identity, string, error) {
	payload, err := idtoken.Validate(ctx, rawToken, p.googleClientID)
	if err != nil {
		return nil, "", fmt.Errorf("validate google token: %w", ErrInvalidToken)
	}

	email, _ := payload.Claims["email"].(string)
	name, _ := payload.Claims["name"].(string)
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, "", ErrInvalidToken
	}

	u, err := p.store.UserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		u = store.User{
			ID:          uuid.NewString(),
			Email:       email,
			DisplayName: name,
			CreatedAt:   time.Now(),
		}
		if err := p.store.InsertUser(ctx, u); err != nil && !errors.Is(err, store.ErrDuplicateEmail) {
			return nil, "", fmt.Errorf("create federated user: %w", err)
		}
	} else if err != nil {
		return nil, "", fmt.Errorf("lookup federated user: %w", err)
	}

	return p.establishSession(u)
}

// SignOut clears the observable current identity. Session tokens are
// stateless and simply expire.
func (p *Provider) SignOut() {
	p.current.Publish(nil)
}

// CurrentUser returns the most recently established identity, or nil.
func (p *Provider) CurrentUser() *Identity {
	ident, _ := p.current.Last()
	return ident
}

// Watch subscribes to identity changes; a nil value means signed out.
func (p *Provider) Watch() (<-chan *Identity, func()) {
	return p.current.Subscribe()
}

// VerifyToken parses and validates a session token, returning the
// identity it was issued for.
func (p *Provider) VerifyToken(token string) (*Identity, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrInvalidToken
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)

	return &Identity{UserID: sub, Email: email, DisplayName: name}, nil
}

func (p *Provider) establishSession(u store.User) (*Identity, string, error) {
	ident := &Identity{UserID: u.ID, Email: u.Email, DisplayName: u.DisplayName}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   u.ID,
		"email": u.Email,
		"name":  u.DisplayName,
		"iat":   now.Unix(),
		"exp":   now.Add(p.tokenTTL).Unix(),
	})
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return nil, "", fmt.Errorf("sign session token: %w", err)
	}

	p.current.Publish(ident)
	return ident, signed, nil
}

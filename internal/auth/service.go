package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service provides registration and login on top of the user store and the
// token issuer. All dependencies are passed explicitly at construction.
type Service struct {
	users  UserStore
	issuer *Issuer
	now    func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithServiceClock overrides the time source (useful for tests).
func WithServiceClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the auth service.
func NewService(users UserStore, issuer *Issuer, opts ...ServiceOption) *Service {
	s := &Service{users: users, issuer: issuer, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterRequest carries the fields required to create an account.
type RegisterRequest struct {
	Name     string
	Surname  string
	Email    string
	Password string
}

// Session is the result of a successful registration or login.
type Session struct {
	Token     string
	ExpiresIn int64
	ExpiresAt time.Time
	User      *User
}

// Register creates a new account with the default FREE role and issues its
// first token. An existing active account with the same email fails with
// ErrAlreadyExists.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" || strings.TrimSpace(req.Name) == "" {
		return nil, ErrInvalidInput
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("auth: check existing account: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyExists
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	user := &User{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(req.Name),
		Surname:      strings.TrimSpace(req.Surname),
		Email:        email,
		PasswordHash: hash,
		Role:         RoleFree,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("auth: create user: %w", err)
	}
	return s.session(user)
}

// Login authenticates email/password credentials. Missing accounts and wrong
// passwords fail identically with ErrUnauthorized so the response does not
// leak which one happened.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrUnauthorized
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("auth: find user: %w", err)
	}
	if user.PasswordHash == "" {
		// Account was provisioned externally and has no local password.
		return nil, ErrUnauthorized
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, ErrUnauthorized
	}
	return s.session(user)
}

func (s *Service) session(user *User) (*Session, error) {
	token, expiresAt, err := s.issuer.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:     token,
		ExpiresIn: int64(s.issuer.TTL().Seconds()),
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}

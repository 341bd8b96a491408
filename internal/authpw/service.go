// Package authpw handles password sign-in and signing PINs. Both secrets are
// stored as bcrypt hashes only.
package authpw

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"eboard/api/internal/store"
	"eboard/api/internal/util"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidPIN         = errors.New("signing pin must be 4 to 8 digits")
	ErrPINNotSet          = errors.New("signing pin not set")
	ErrPINMismatch        = errors.New("signing pin does not match")
)

type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	InsertUser(ctx context.Context, user store.User) error
	UpdateSigningPinHash(ctx context.Context, userID, pinHash string) error
}

type Service struct {
	store UserStore
	cost  int
}

func NewService(store UserStore) *Service {
	return &Service{store: store, cost: bcrypt.DefaultCost}
}

type SignInRequest struct {
	Email    string
	Password string
}

// SignIn authenticates a user. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (store.User, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return store.User{}, ErrInvalidCredentials
	}
	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, fmt.Errorf("load user: %w", err)
	}
	if user.PasswordHash == "" {
		return store.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}

type EnsureUserRequest struct {
	Email       string
	Password    string
	DisplayName string
	Roles       []string
}

// EnsureUser creates the user unless the email is already registered. It is
// used to provision the bootstrap administrator on startup.
func (s *Service) EnsureUser(ctx context.Context, req EnsureUserRequest) (store.User, bool, error) {
	existing, err := s.store.GetUserByEmail(ctx, req.Email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return store.User{}, false, fmt.Errorf("load user: %w", err)
	}
	if len(req.Password) < 8 {
		return store.User{}, false, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return store.User{}, false, fmt.Errorf("hash password: %w", err)
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = req.Email
	}
	user := store.User{
		ID:           util.NewID("usr"),
		DisplayName:  displayName,
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: string(hash),
		Roles:        req.Roles,
	}
	if err := s.store.InsertUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			existing, getErr := s.store.GetUserByEmail(ctx, req.Email)
			return existing, false, getErr
		}
		return store.User{}, false, err
	}
	return user, true, nil
}

// SetSigningPIN stores the bcrypt hash of a numeric PIN.
func (s *Service) SetSigningPIN(ctx context.Context, userID, pin string) error {
	if !validPIN(pin) {
		return ErrInvalidPIN
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), s.cost)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}
	return s.store.UpdateSigningPinHash(ctx, userID, string(hash))
}

// VerifySigningPIN checks a PIN against the user's stored hash.
func VerifySigningPIN(user store.User, pin string) error {
	if user.SigningPinHash == "" {
		return ErrPINNotSet
	}
	if pin == "" {
		return ErrPINMismatch
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.SigningPinHash), []byte(pin)); err != nil {
		return ErrPINMismatch
	}
	return nil
}

func validPIN(pin string) bool {
	if len(pin) < 4 || len(pin) > 8 {
		return false
	}
	for _, r := range pin {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

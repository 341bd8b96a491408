package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"eboard/api/internal/auth"
	"eboard/api/internal/authpw"
	"eboard/api/internal/rbac"
	"eboard/api/internal/store"
	"eboard/api/internal/util"

	"go.uber.org/zap"
)

type SignInInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserView struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	HasPIN      bool     `json:"hasSigningPin"`
}

type SessionView struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      UserView  `json:"user"`
}

func userView(u store.User) UserView {
	return UserView{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Roles:       rbac.Actor{Roles: rbac.NormalizeAll(u.Roles)}.RoleStrings(),
		HasPIN:      u.SigningPinHash != "",
	}
}

func actorFor(u store.User) rbac.Actor {
	return rbac.Actor{UserID: u.ID, Name: u.DisplayName, Roles: rbac.NormalizeAll(u.Roles)}
}

func (s *Service) SignIn(ctx context.Context, input SignInInput) (SessionView, error) {
	user, err := s.passwords.SignIn(ctx, authpw.SignInRequest{Email: input.Email, Password: input.Password})
	if err != nil {
		return SessionView{}, err
	}
	now := s.now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.DisplayName, user.Roles, util.NewID("tok"), now, s.cfg.AccessTTL)
	if err != nil {
		return SessionView{}, err
	}
	return SessionView{Token: token, ExpiresAt: expiresAt, User: userView(user)}, nil
}

// ActorFromToken resolves a bearer token to the acting user. Roles come from
// the user record, not the token.
func (s *Service) ActorFromToken(ctx context.Context, token string) (rbac.Actor, error) {
	claims, err := auth.ParseTokenAt([]byte(s.cfg.JWTSecret), strings.TrimSpace(token), s.now())
	if err != nil {
		return rbac.Actor{}, err
	}
	user, err := s.store.GetUserByID(ctx, claims.Subject)
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.Actor{}, auth.ErrInvalidToken
	}
	if err != nil {
		return rbac.Actor{}, err
	}
	return actorFor(user), nil
}

func (s *Service) Session(ctx context.Context, actor rbac.Actor) (UserView, error) {
	user, err := s.store.GetUserByID(ctx, actor.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return UserView{}, errNotFound("User")
	}
	if err != nil {
		return UserView{}, err
	}
	return userView(user), nil
}

func (s *Service) SetSigningPIN(ctx context.Context, actor rbac.Actor, pin string) error {
	if actor.UserID == "" {
		return domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	}
	return s.passwords.SetSigningPIN(ctx, actor.UserID, strings.TrimSpace(pin))
}

// EnsureBootstrapAdmin provisions the configured administrator account.
func (s *Service) EnsureBootstrapAdmin(ctx context.Context) error {
	email := strings.TrimSpace(s.cfg.BootstrapAdminEmail)
	if email == "" || s.cfg.BootstrapAdminPassword == "" {
		return nil
	}
	user, created, err := s.passwords.EnsureUser(ctx, authpw.EnsureUserRequest{
		Email:       email,
		Password:    s.cfg.BootstrapAdminPassword,
		DisplayName: s.cfg.BootstrapAdminName,
		Roles:       []string{string(rbac.RoleAdmin)},
	})
	if err != nil {
		return err
	}
	if created {
		s.log.Info("bootstrap admin created", zap.String("user_id", user.ID), zap.String("email", user.Email))
	}
	return nil
}

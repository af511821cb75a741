package admin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yuutasakka/zeroshin-verify/internal/application/session"
	"github.com/yuutasakka/zeroshin-verify/internal/application/tokens"
	"github.com/yuutasakka/zeroshin-verify/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	DeviceID string `json:"device_id"`
}

type LoginResult struct {
	User    *domain.AdminUser
	Pair    *domain.TokenPair
	Session session.Created
}

// UserStore is the persistence contract for admin accounts.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.AdminUser, error)
	TouchLastLogin(ctx context.Context, userID string) error
}

type Service interface {
	Login(ctx context.Context, req LoginRequest, clientIP string) (*LoginResult, error)
}

type service struct {
	users    UserStore
	tokenMgr *tokens.Manager
	sessions *session.Manager
}

func NewService(users UserStore, tokenMgr *tokens.Manager, sessions *session.Manager) Service {
	return &service{users: users, tokenMgr: tokenMgr, sessions: sessions}
}

// Login authenticates an operator and issues a session plus token pair.
// Every failure collapses to the same generic error: which half of the
// credential pair was wrong must not be observable to the caller. The
// distinct reasons are still logged for operators.
func (s *service) Login(ctx context.Context, req LoginRequest, clientIP string) (*LoginResult, error) {
	fail := fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)

	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		slog.Warn("admin login: unknown email", "email", req.Email)
		return nil, fail
	}
	if !u.Enable {
		slog.Warn("admin login: account disabled", "user_id", u.UserID)
		return nil, fail
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		slog.Warn("admin login: bad password", "user_id", u.UserID)
		return nil, fail
	}
	if u.Role != domain.RoleAdmin {
		slog.Warn("admin login: non-admin role", "user_id", u.UserID, "role", u.Role)
		return nil, fmt.Errorf("admin role required: %w", domain.ErrForbidden)
	}

	created, err := s.sessions.Create("", u.UserID)
	if err != nil {
		return nil, err
	}
	pair, err := s.tokenMgr.GeneratePair(u.UserID, u.Email, created.SessionToken, req.DeviceID, clientIP, []string{"admin"})
	if err != nil {
		return nil, err
	}
	if err := s.users.TouchLastLogin(ctx, u.UserID); err != nil {
		slog.Warn("admin login: failed to stamp last login", "user_id", u.UserID, "err", err)
	}
	return &LoginResult{User: u, Pair: pair, Session: created}, nil
}

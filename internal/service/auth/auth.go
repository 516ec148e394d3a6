// internal/service/auth/auth.go
package auth

import (
	"context"
	"errors"
	"fmt"

	"telecrm-service/internal/domain/user"
	xerrors "telecrm-service/internal/pkg/errors"
	"telecrm-service/internal/pkg/jwt"
	"telecrm-service/internal/pkg/session"
	"telecrm-service/internal/repository/postgres"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthService issues and validates actor tokens. It is deliberately thin:
// the engine consumes an Actor value, not this service.
type AuthService struct {
	users    *postgres.UserRepository
	jwt      *jwt.Manager
	sessions *session.Manager
	logger   *zap.Logger
}

func NewAuthService(users *postgres.UserRepository, jwtManager *jwt.Manager, sessions *session.Manager, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:    users,
		jwt:      jwtManager,
		sessions: sessions,
		logger:   logger,
	}
}

// Login verifies credentials and returns a signed token.
func (s *AuthService) Login(ctx context.Context, req *user.LoginRequest) (*user.LoginResponse, error) {
	u, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", xerrors.ErrUnauthorized)
		}
		return nil, xerrors.Wrap(err, "failed to look up user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", xerrors.ErrUnauthorized)
	}

	var managerID *int64
	if u.ManagerID.Valid {
		id := u.ManagerID.Int64
		managerID = &id
	}

	token, jti, err := s.jwt.Generate(u.ID, string(u.Role), managerID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	claims, err := s.jwt.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("failed to verify freshly issued token: %w", err)
	}
	if err := s.sessions.Track(ctx, u.ID, jti, claims.ExpiresAt.Time); err != nil {
		s.logger.Warn("failed to track session", zap.Int64("user_id", u.ID), zap.Error(err))
	}

	s.logger.Info("user logged in", zap.Int64("user_id", u.ID), zap.String("role", string(u.Role)))

	return &user.LoginResponse{Token: token, User: u}, nil
}

// ValidateToken turns a bearer token into the Actor the engine operates as,
// plus the token's jti for logout.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*user.Actor, string, error) {
	claims, err := s.jwt.Verify(token)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", xerrors.ErrUnauthorized, err)
	}

	active, err := s.sessions.IsActive(ctx, claims.UserID, claims.ID)
	if err != nil {
		return nil, "", xerrors.Wrap(err, "session lookup failed")
	}
	if !active {
		return nil, "", xerrors.ErrSessionExpired
	}

	actor := &user.Actor{
		ID:        claims.UserID,
		Role:      user.Role(claims.Role),
		ManagerID: claims.ManagerID,
	}
	return actor, claims.ID, nil
}

// Me returns the fresh directory record for the authenticated actor.
func (s *AuthService) Me(ctx context.Context, actorID int64) (*user.User, error) {
	return s.users.GetUser(ctx, actorID)
}

// Logout revokes the presented token's session.
func (s *AuthService) Logout(ctx context.Context, userID int64, jti string) error {
	return s.sessions.Revoke(ctx, userID, jti)
}

// CreateUser registers a directory user. Admin only; employees must name
// their manager.
func (s *AuthService) CreateUser(ctx context.Context, actor user.Actor, req *user.CreateUserRequest) (*user.User, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: user creation is admin only", xerrors.ErrUnauthorized)
	}

	role := user.Role(req.Role)
	if role == user.RoleEmployee && req.ManagerID == nil {
		return nil, fmt.Errorf("%w: employees require a manager_id", xerrors.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &user.User{
		FullName:     req.FullName,
		Email:        req.Email,
		Phone:        req.Phone,
		Role:         role,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	if req.ManagerID != nil {
		u.ManagerID.Int64 = *req.ManagerID
		u.ManagerID.Valid = true
	}

	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("user created",
		zap.Int64("user_id", u.ID),
		zap.String("role", string(u.Role)),
		zap.Int64("created_by", actor.ID),
	)

	return u, nil
}
